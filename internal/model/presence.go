package model

import "time"

// OnlineUser is a presence heartbeat row with the user's profile.
type OnlineUser struct {
	UserID           string          `json:"user_id"`
	LastSeen         time.Time       `json:"last_seen"`
	Status           string          `json:"status"`
	SessionStartedAt *time.Time      `json:"session_started_at,omitempty"`
	CurrentPage      string          `json:"current_page"`
	DeviceInfo       string          `json:"device_info"`
	Profile          ProfileSnapshot `json:"profile"`
}

// Heartbeat is written by signed-in users to keep their presence row alive.
type Heartbeat struct {
	UserID      string
	Status      string
	CurrentPage string
	DeviceInfo  string
	SeenAt      time.Time
}
