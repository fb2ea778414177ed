package model

import "time"

// Message is one entry in an item's chat log.
type Message struct {
	ItemID     string    `json:"item_id"`
	Seq        int64     `json:"seq"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transition records one committed lifecycle change.
type Transition struct {
	ID      int64     `json:"id"`
	ItemID  string    `json:"item_id"`
	Event   string    `json:"event"`
	From    Status    `json:"from"`
	To      Status    `json:"to"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}
