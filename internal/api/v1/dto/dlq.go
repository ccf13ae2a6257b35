package dto

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// DeadLetterPush is the envelope Pub/Sub posts when a reminder job exhausts its
// delivery attempts on the worker subscription.
type DeadLetterPush struct {
	Message      PushedMessage `json:"message"`
	Subscription string        `json:"subscription"`
	// DeliveryAttempt is only set when the subscription has a dead-letter policy.
	DeliveryAttempt int `json:"deliveryAttempt,omitempty"`
}

type PushedMessage struct {
	Data        string            `json:"data"`
	MessageID   string            `json:"messageId"`
	PublishTime time.Time         `json:"publishTime"`
	Attributes  map[string]string `json:"attributes"`
}

// Payload is the message body. Data that is not base64 is returned as sent.
func (m PushedMessage) Payload() []byte {
	b, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		return []byte(m.Data)
	}
	return b
}

// DeadReminder is the part of a reminder job the dead-letter store indexes on.
type DeadReminder struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
	Type   string `json:"type"`
}

// Reminder decodes the payload as a reminder job. ok is false for anything else.
func (m PushedMessage) Reminder() (DeadReminder, bool) {
	var r DeadReminder
	if err := json.Unmarshal(m.Payload(), &r); err != nil || r.UserID == "" {
		return DeadReminder{}, false
	}
	return r, true
}
