package model

import "time"

// Report is an immutable audit record of a community report against an item.
type Report struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name"`
	ReporterID string    `json:"reporter_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportReasons are the reasons offered to reporters.
var ReportReasons = []string{
	"Inappropriate content / NSFW",
	"Spam or Scam",
	"Fake Item / Misleading",
	"Harassment or Abusive",
	"Other",
}

// Alert is a saved search matched against newly published items.
type Alert struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Keyword   string    `json:"keyword"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}
