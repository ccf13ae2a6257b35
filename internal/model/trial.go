package model

import "time"

type TrialStatus string

const (
	TrialActive         TrialStatus = "active"
	TrialEndingToday    TrialStatus = "ending_today"
	TrialEndingTomorrow TrialStatus = "ending_tomorrow"
	TrialExpired        TrialStatus = "expired"
	TrialSubscribed     TrialStatus = "subscribed"
)

// Engagement is the per-user activity used to score trial leads.
type Engagement struct {
	UserID              string     `json:"user_id"`
	Points              int        `json:"points"`
	Streak              int        `json:"streak"`
	LastActiveDate      *time.Time `json:"last_active_date,omitempty"`
	StudySessions       int        `json:"study_sessions"`
	Quotes              int        `json:"quotes_count"`
	EICs                int        `json:"eic_count"`
	LoginCount          int        `json:"login_count"`
	PageViewCount       int        `json:"page_view_count"`
	FeatureUseCount     int        `json:"feature_use_count"`
	ActiveDays          int        `json:"active_days"`
	TotalSecondsTracked int        `json:"total_seconds_tracked"`
	UniquePagesVisited  int        `json:"unique_pages_visited"`
	LastActivity        *time.Time `json:"last_activity,omitempty"`
}

// TrialUser is a user placed on the trial pipeline.
type TrialUser struct {
	ID              string      `json:"id"`
	FullName        string      `json:"full_name"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	Role            string      `json:"role"`
	Subscribed      bool        `json:"subscribed"`
	CreatedAt       time.Time   `json:"created_at"`
	LastSignInAt    *time.Time  `json:"last_sign_in_at,omitempty"`
	SignupDate      string      `json:"signup_date"`
	TrialEnds       string      `json:"trial_ends"`
	Status          TrialStatus `json:"trial_status"`
	DaysRemaining   int         `json:"days_remaining"`
	EngagementScore int         `json:"engagement_score"`
	LastActiveAt    *time.Time  `json:"last_active_date,omitempty"`
	Engagement      Engagement  `json:"engagement"`
}

// TrialStats summarises the pipeline.
type TrialStats struct {
	TotalTrials    int     `json:"total_trials"`
	EndingToday    int     `json:"ending_today"`
	EndingTomorrow int     `json:"ending_tomorrow"`
	Expired        int     `json:"expired"`
	Active         int     `json:"active"`
	Converted      int     `json:"converted"`
	ConversionRate float64 `json:"conversion_rate"`
	HotLeads       int     `json:"hot_leads"`
	WarmLeads      int     `json:"warm_leads"`
	ColdLeads      int     `json:"cold_leads"`
}

// ActivityRecord is one raw row from a user's activity sources: quotes, EIC
// schedules, study sessions, time tracking or tracked events.
type ActivityRecord struct {
	Source    string
	ID        string
	Kind      string // quote status, study activity, time activity type or event type
	Label     string // quote number, address, course slug or event name
	Path      string
	Amount    float64
	Minutes   int
	CreatedAt time.Time
}

// ActivityItem is one line on a trial user's timeline.
type ActivityItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"action_type"`
	Detail    string    `json:"action_detail"`
	Extra     string    `json:"extra_info,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreBreakdown is the engagement score split into its weighted parts.
type ScoreBreakdown struct {
	Points          int `json:"points"`
	Streak          int `json:"streak"`
	StreakBonus     int `json:"streak_bonus"`
	StudySessions   int `json:"study_sessions"`
	StudyBonus      int `json:"study_bonus"`
	Quotes          int `json:"quotes"`
	QuotesBonus     int `json:"quotes_bonus"`
	EICs            int `json:"eics"`
	EICsBonus       int `json:"eics_bonus"`
	LoginCount      int `json:"login_count"`
	LoginBonus      int `json:"login_bonus"`
	PageViews       int `json:"page_views"`
	PageViewBonus   int `json:"page_view_bonus"`
	TimeMinutes     int `json:"time_spent_minutes"`
	TimeBonus       int `json:"time_bonus"`
	FeatureUseCount int `json:"feature_use_count"`
	FeatureBonus    int `json:"feature_bonus"`
	ActiveDays      int `json:"active_days"`
	Total           int `json:"total"`
}

// UserActivity is the drill-down for one trial user.
type UserActivity struct {
	UserID           string         `json:"user_id"`
	Activities       []ActivityItem `json:"activities"`
	FirstAction      *ActivityItem  `json:"first_action"`
	TimeToFirstValue string         `json:"time_to_first_value,omitempty"`
	Breakdown        ScoreBreakdown `json:"score_breakdown"`
}
