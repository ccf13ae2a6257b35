package dashboard

import (
	"fmt"
	"math"
	"time"

	"admindash/internal/model"
)

// OnlineWindow is how recently a heartbeat must have landed for a user to count as
// online.
const OnlineWindow = 5 * time.Minute

// ARRDecimalThreshold is the ARR at and above which the display drops its decimal.
const ARRDecimalThreshold = 100_000.0

func IsOnline(now, lastSeen time.Time) bool {
	return now.Sub(lastSeen) < OnlineWindow
}

// LiveUserCount counts online presence rows against a single now.
func LiveUserCount(now time.Time, users []model.OnlineUser) int {
	n := 0
	for _, u := range users {
		if IsOnline(now, u.LastSeen) {
			n++
		}
	}
	return n
}

func UnreadSupportCount(messages []model.SupportMessage) int {
	n := 0
	for _, m := range messages {
		if m.Unread() {
			n++
		}
	}
	return n
}

// TotalPendingActions sums the pending counters. A nil value counts as zero.
func TotalPendingActions(p *model.PendingCounts) int {
	if p == nil {
		return 0
	}
	return p.UnreadMessages + p.ExpiringTrials + p.PendingDocuments
}

func ARR(mrr float64) float64 {
	return mrr * 12
}

// FormatARR renders ARR in thousands of pounds, e.g. £54.0k or £180k.
func FormatARR(arr float64) string {
	if arr < ARRDecimalThreshold {
		return fmt.Sprintf("£%.1fk", arr/1000)
	}
	return fmt.Sprintf("£%.0fk", arr/1000)
}

// ConversionRate is the share of users holding an active subscription, as a
// percentage rounded to one decimal place.
func ConversionRate(active, totalUsers int) float64 {
	if totalUsers <= 0 {
		return 0
	}
	return math.Round(float64(active)/float64(totalUsers)*1000) / 10
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ExpiringTrialWindow is [today-7d, today-6d): signups in it reach the end of their
// seven day trial today.
func ExpiringTrialWindow(today time.Time) (from, to time.Time) {
	return today.AddDate(0, 0, -7), today.AddDate(0, 0, -6)
}

// IsExpiringTrial is the in-memory form of UserRepository.CountExpiringTrials, which
// the pending-actions unit uses. The two must agree.
func IsExpiringTrial(today time.Time, u model.User) bool {
	if u.Subscribed || u.FreeAccessGranted {
		return false
	}
	from, to := ExpiringTrialWindow(today)
	return !u.CreatedAt.Before(from) && u.CreatedAt.Before(to)
}

// InTrial reports whether u is inside the seven day trial window and has not paid.
func InTrial(today time.Time, u model.User) bool {
	if u.Subscribed || u.FreeAccessGranted {
		return false
	}
	return !u.CreatedAt.Before(today.AddDate(0, 0, -7))
}

// Derived holds the values computed from the cached sections.
type Derived struct {
	LiveUsers           int     `json:"liveUsers"`
	UnreadSupport       int     `json:"unreadSupport"`
	TotalPendingActions int     `json:"totalPendingActions"`
	ARR                 float64 `json:"arr"`
	ARRDisplay          string  `json:"arrDisplay"`
	ConversionRate      float64 `json:"conversionRate"`
}

func derive(now time.Time, s *Snapshot) Derived {
	d := Derived{
		LiveUsers:           LiveUserCount(now, s.OnlineUsers.Data),
		UnreadSupport:       UnreadSupportCount(s.Messages.Data),
		TotalPendingActions: TotalPendingActions(s.Pending.Data),
	}
	if s.StripeStats.Data != nil {
		d.ARR = ARR(s.StripeStats.Data.MRR)
		d.ARRDisplay = FormatARR(d.ARR)
		if s.Stats.Data != nil {
			d.ConversionRate = ConversionRate(s.StripeStats.Data.ActiveSubscriptions, s.Stats.Data.TotalUsers)
		}
	}
	return d
}
