package dto

import "admindash/internal/model"

// ReplyRequest is the body of a support reply.
type ReplyRequest struct {
	Message string `json:"message" validate:"required,max=5000"`
}

// OpenMessageResponse is a message opened in the reply panel.
type OpenMessageResponse struct {
	Message    model.SupportMessage `json:"message"`
	MarkedRead bool                 `json:"marked_read"`
	Warning    string               `json:"warning,omitempty"`
}

// ReminderRequest queues one email for the user in the path.
type ReminderRequest struct {
	Type string `json:"type" validate:"required,oneof=reminder offer"`
}

// BulkReminderRequest queues one email per listed user.
type BulkReminderRequest struct {
	Type    string   `json:"type" validate:"required,oneof=reminder offer"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=100,dive,uuid"`
}

// ReminderResponse lists the queued job IDs in request order.
type ReminderResponse struct {
	JobIDs []string `json:"job_ids"`
}

// TrialFilterQuery is the query string of the trial pipeline.
type TrialFilterQuery struct {
	Status     string `validate:"omitempty,oneof=all active ending_today ending_tomorrow expired subscribed"`
	Role       string `validate:"max=64"`
	Engagement string `validate:"omitempty,oneof=all hot warm cold"`
	Search     string `validate:"max=200"`
}

// HeartbeatRequest reports that the caller is on a page.
type HeartbeatRequest struct {
	Status      string `json:"status" validate:"omitempty,oneof=online away"`
	CurrentPage string `json:"current_page" validate:"max=512"`
}
