package lifecycle

import (
	"strings"

	"github.com/erazemk/najdeno/internal/model"
)

// Group is the coarse status filter offered in the feed.
type Group string

// Feed groups.
const (
	GroupFound    Group = "Found"
	GroupClaimed  Group = "Claimed"
	GroupReturned Group = "Returned"
)

// GroupOf returns the feed group a status belongs to.
func GroupOf(s model.Status) Group {
	switch s {
	case model.StatusClaimed, model.StatusVerified:
		return GroupClaimed
	case model.StatusReturned:
		return GroupReturned
	default:
		return GroupFound
	}
}

// ParseGroup matches s case-insensitively. An empty string or "All" means
// no group filter and returns ok with an empty group.
func ParseGroup(s string) (Group, bool) {
	if s == "" || strings.EqualFold(s, string(model.CategoryAll)) {
		return "", true
	}
	for _, g := range []Group{GroupFound, GroupClaimed, GroupReturned} {
		if strings.EqualFold(string(g), s) {
			return g, true
		}
	}
	return "", false
}

// Statuses lists the statuses in the group.
func (g Group) Statuses() []model.Status {
	var out []model.Status
	for _, s := range model.Statuses {
		if GroupOf(s) == g {
			out = append(out, s)
		}
	}
	return out
}
