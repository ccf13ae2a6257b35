package model

import "time"

// DeadLetterMessage is a reminder job the email worker gave up on.
type DeadLetterMessage struct {
	ID               string    `db:"id"`
	SubscriptionName string    `db:"subscription_name"`
	MessageID        string    `db:"message_id"`
	UserID           *string   `db:"user_id"`
	Payload          string    `db:"payload"`    // JSON string
	Attributes       *string   `db:"attributes"` // JSON string, nullable
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
}
