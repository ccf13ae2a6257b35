package model

import "time"

// SupportMessage is a row of admin_messages addressed to an admin.
// ReadAt moves from nil to a timestamp once and never goes back.
type SupportMessage struct {
	ID          string          `json:"id"`
	SenderID    string          `json:"sender_id"`
	RecipientID string          `json:"recipient_id"`
	Subject     string          `json:"subject"`
	Message     string          `json:"message"`
	ReadAt      *time.Time      `json:"read_at"`
	CreatedAt   time.Time       `json:"created_at"`
	Sender      ProfileSnapshot `json:"sender"`
}

func (m SupportMessage) Unread() bool {
	return m.ReadAt == nil
}

// Reply is an outgoing message from an admin back to a user.
type Reply struct {
	SenderID    string
	RecipientID string
	Subject     string
	Message     string
}
