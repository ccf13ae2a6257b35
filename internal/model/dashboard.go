package model

// DashboardStats holds the headline user counts.
type DashboardStats struct {
	TotalUsers      int           `json:"totalUsers"`
	SignupsToday    int           `json:"signupsToday"`
	SignupsThisWeek int           `json:"signupsThisWeek"`
	ActiveToday     int           `json:"activeToday"`
	TrialUsers      int           `json:"trialUsers"`
	RecentSignups   []UserSummary `json:"recentSignups"`
}

// PendingCounts are the items waiting on an admin.
// PendingDocuments has no source yet and is always zero.
type PendingCounts struct {
	UnreadMessages   int `json:"unreadMessages"`
	ExpiringTrials   int `json:"expiringTrials"`
	PendingDocuments int `json:"pendingDocuments"`
}
