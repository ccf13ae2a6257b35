package model

import "time"

// User is a profile joined with its auth record. This is the "base users" row shared
// by the dashboard stats and the trial pipeline.
type User struct {
	ID                string     `db:"id" json:"id"`
	FullName          string     `db:"full_name" json:"full_name"`
	Username          string     `db:"username" json:"username"`
	Email             string     `db:"email" json:"email"`
	Role              string     `db:"role" json:"role"`
	Subscribed        bool       `db:"subscribed" json:"subscribed"`
	FreeAccessGranted bool       `db:"free_access_granted" json:"free_access_granted"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	LastSignInAt      *time.Time `db:"last_sign_in_at" json:"last_sign_in_at,omitempty"`
}

// UserSummary is the snapshot shown in the recent signups list.
type UserSummary struct {
	ID         string    `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	Subscribed bool      `json:"subscribed"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		Role:       u.Role,
		CreatedAt:  u.CreatedAt,
		Subscribed: u.Subscribed,
	}
}

// ProfileSnapshot is the subset of a profile embedded in presence and message rows.
type ProfileSnapshot struct {
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	AvatarURL string `json:"avatar_url"`
}
