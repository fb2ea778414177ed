package model

import (
	"slices"
	"strings"
	"time"
)

// Status is an item's position in the return lifecycle.
type Status string

// Item statuses.
const (
	StatusFound           Status = "found"
	StatusPendingApproval Status = "pending_approval"
	StatusClaimed         Status = "claimed"
	StatusVerified        Status = "verified"
	StatusReturned        Status = "returned"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusFound,
	StatusPendingApproval,
	StatusClaimed,
	StatusVerified,
	StatusReturned,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// HasClaimant reports whether an item in this status must carry a claimant.
func (s Status) HasClaimant() bool {
	switch s {
	case StatusPendingApproval, StatusClaimed, StatusVerified, StatusReturned:
		return true
	}
	return false
}

// Category classifies a found item.
type Category string

// Item categories.
const (
	CategoryElectronics Category = "Electronics"
	CategoryClothing    Category = "Clothing"
	CategoryKeys        Category = "Keys"
	CategoryPets        Category = "Pets"
	CategoryBooks       Category = "Books"
	CategoryOthers      Category = "Others"
)

// CategoryAll matches every category in alerts and feed filters.
const CategoryAll Category = "All"

// Categories lists the categories an item can be posted under.
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryKeys,
	CategoryPets,
	CategoryBooks,
	CategoryOthers,
}

// ParseCategory matches s case-insensitively against the known categories.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// ClaimProof is what a claimant offers to show the item is theirs.
type ClaimProof struct {
	Description      string `json:"description"`
	IdentifyingMarks string `json:"identifying_marks,omitempty"`
}

// Item is a found-object report.
type Item struct {
	ID               string    `json:"id"`
	ReporterID       string    `json:"reporter_id"`
	ReporterName     string    `json:"reporter_name"`
	Name             string    `json:"name"`
	Category         Category  `json:"category"`
	Description      string    `json:"description,omitempty"`
	Location         string    `json:"location"`
	DateFound        time.Time `json:"date_found"`
	PhotoID          string    `json:"-"`
	PhotoURL         string    `json:"photo_url"`
	SecurityQuestion string    `json:"security_question,omitempty"`
	NeedsReview      bool      `json:"needs_review,omitempty"`

	Status         Status      `json:"status"`
	ClaimantID     string      `json:"claimant_id,omitempty"`
	ClaimantName   string      `json:"claimant_name,omitempty"`
	ClaimProof     *ClaimProof `json:"claim_proof,omitempty"`
	ClaimantAnswer string      `json:"claimant_answer,omitempty"`
	ClaimedAt      *time.Time  `json:"claimed_at,omitempty"`
	ReturnedAt     *time.Time  `json:"returned_at,omitempty"`

	ReportedBy []string `json:"-"`
	Hidden     bool     `json:"hidden"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Version increases with every committed change to the item.
	Version int64 `json:"version"`
}

// HasSecurityQuestion reports whether the finder set a challenge question.
func (i *Item) HasSecurityQuestion() bool {
	return strings.TrimSpace(i.SecurityQuestion) != ""
}

// IsOwner reports whether actorID is the user who posted the item.
func (i *Item) IsOwner(actorID string) bool {
	return actorID != "" && actorID == i.ReporterID
}

// IsClaimant reports whether actorID holds the active claim.
func (i *Item) IsClaimant(actorID string) bool {
	return actorID != "" && actorID == i.ClaimantID
}

// HasReported reports whether actorID is already in the reporter set.
func (i *Item) HasReported(actorID string) bool {
	return slices.Contains(i.ReportedBy, actorID)
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	if i.ClaimProof != nil {
		p := *i.ClaimProof
		i.ClaimProof = &p
	}
	if i.ClaimedAt != nil {
		t := *i.ClaimedAt
		i.ClaimedAt = &t
	}
	if i.ReturnedAt != nil {
		t := *i.ReturnedAt
		i.ReturnedAt = &t
	}
	i.ReportedBy = slices.Clone(i.ReportedBy)
	return i
}

// RedactedFor returns a copy safe to show to viewerID. The claim proof and
// the answer to the security question are only visible to the two parties.
func (i Item) RedactedFor(viewerID string) Item {
	c := i.Clone()
	if !c.IsOwner(viewerID) && !c.IsClaimant(viewerID) {
		c.ClaimProof = nil
		c.ClaimantAnswer = ""
	}
	return c
}
