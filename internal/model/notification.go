package model

import "time"

// NotificationType says which event produced a notification.
type NotificationType string

// Notification types.
const (
	NotifyClaimRequest  NotificationType = "claim_request"
	NotifyClaimAlert    NotificationType = "claim_alert"
	NotifyClaimApproved NotificationType = "claim_approved"
	NotifyAlertMatch    NotificationType = "alert_match"
)

// Notification is a one-way message from the system to a user.
type Notification struct {
	ID            string           `json:"id"`
	RecipientID   string           `json:"recipient_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	RelatedItemID string           `json:"related_item_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Read          bool             `json:"read"`
}
