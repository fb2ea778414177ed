package feed

import (
	"slices"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

// DefaultWindow is how far back the feed looks.
const DefaultWindow = 7 * 24 * time.Hour

// Query selects feed items. Zero fields do not filter.
type Query struct {
	Search   string
	Category model.Category
	Group    lifecycle.Group
	// Window keeps items created within this long before Now.
	Window time.Duration
	Now    time.Time
	Limit  int
}

// Since returns the oldest creation time the query accepts, or the zero
// time when there is no window.
func (q Query) Since() time.Time {
	if q.Window <= 0 || q.Now.IsZero() {
		return time.Time{}
	}
	return q.Now.Add(-q.Window)
}

// Match reports whether item belongs in the feed. Hidden items never do.
func (q Query) Match(item model.Item) bool {
	if item.Hidden {
		return false
	}
	if q.Category != "" && q.Category != model.CategoryAll && item.Category != q.Category {
		return false
	}
	if q.Group != "" && lifecycle.GroupOf(item.Status) != q.Group {
		return false
	}
	if since := q.Since(); !since.IsZero() && item.CreatedAt.Before(since) {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		if !strings.Contains(strings.ToLower(item.Name), term) &&
			!strings.Contains(strings.ToLower(string(item.Category)), term) {
			return false
		}
	}
	return true
}

// Filter returns the matching items, keeping order and applying the limit.
func (q Query) Filter(items []model.Item) []model.Item {
	var out []model.Item
	for _, item := range items {
		if !q.Match(item) {
			continue
		}
		out = append(out, item)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out
}

// Matcher returns a subscription filter for a live view. Every item event
// passes, so a subscriber can also drop items that left its view;
// notifications and chat messages pass only for recipient.
func Matcher(recipient string) func(Event) bool {
	return func(e Event) bool {
		switch e.Kind {
		case KindItem:
			return true
		case KindNotification:
			return recipient != "" && e.Recipient == recipient
		case KindMessage:
			return recipient != "" && slices.Contains(e.Parties, recipient)
		}
		return false
	}
}

// Visible reports whether an item event should be shown rather than
// removed from a view built with q.
func (q Query) Visible(e Event) bool {
	return e.Kind == KindItem && !e.Removed && e.Item != nil && q.Match(*e.Item)
}
