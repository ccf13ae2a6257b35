package trial

import (
	"fmt"
	"math"
	"sort"
	"time"

	"admindash/internal/model"
)

// Breakdown splits the engagement score into its weighted parts. Total is Score.
func Breakdown(e model.Engagement) model.ScoreBreakdown {
	minutes := e.TotalSecondsTracked / 60
	b := model.ScoreBreakdown{
		Points:          e.Points,
		Streak:          e.Streak,
		StreakBonus:     e.Streak * 5,
		StudySessions:   e.StudySessions,
		StudyBonus:      e.StudySessions * 3,
		Quotes:          e.Quotes,
		QuotesBonus:     e.Quotes * 8,
		EICs:            e.EICs,
		EICsBonus:       e.EICs * 10,
		LoginCount:      e.LoginCount,
		LoginBonus:      min(10, e.LoginCount*2),
		PageViews:       e.UniquePagesVisited,
		PageViewBonus:   min(20, e.UniquePagesVisited),
		TimeMinutes:     minutes,
		TimeBonus:       min(30, int(math.Floor(float64(minutes)*0.5))),
		FeatureUseCount: e.FeatureUseCount,
		FeatureBonus:    e.FeatureUseCount * 3,
		ActiveDays:      e.ActiveDays,
	}
	b.Total = b.Points + b.StreakBonus + b.StudyBonus + b.QuotesBonus + b.EICsBonus +
		b.TimeBonus + b.PageViewBonus + b.LoginBonus + b.FeatureBonus
	return b
}

// Item types derived from the activity summary rather than a dated action.
const (
	ItemPoints = "points"
	ItemStreak = "streak"
)

func recordItem(r model.ActivityRecord) (model.ActivityItem, bool) {
	it := model.ActivityItem{ID: r.Source + "-" + r.ID, CreatedAt: r.CreatedAt}
	switch r.Source {
	case "quote":
		it.Type = "quote"
		noun := "quote"
		if r.Kind == "approved" {
			noun = "invoice"
		}
		it.Detail = fmt.Sprintf("Created %s #%s", noun, r.Label)
		it.Extra = fmt.Sprintf("£%.2f", r.Amount)
	case "eic":
		it.Type = "eic"
		it.Detail = "Created EIC certificate"
		it.Extra = truncate(r.Label, 30)
		if it.Extra == "" {
			it.Extra = "No address"
		}
	case "study":
		it.Type = "study"
		it.Detail = r.Kind
		if it.Detail == "" {
			it.Detail = "Study session"
		}
		if r.Label != "" {
			it.Extra = "Course: " + r.Label
		}
	case "time_track":
		it.ID = "time-" + r.ID
		it.Type = "time_track"
		it.Detail = fmt.Sprintf("Logged %d mins", r.Minutes)
		it.Extra = r.Kind
		if it.Extra == "" {
			it.Extra = r.Label
		}
	case "event":
		it.ID = "event-" + r.ID
		it.Extra = r.Path
		switch r.Kind {
		case "login":
			it.Type, it.Detail = "login", "Logged in"
		case "page_view":
			it.Type, it.Detail = "page_view", "Visited page"
		case "feature_use":
			it.Type, it.Detail = "feature", r.Label
			if it.Detail == "" {
				it.Detail = "Used feature"
			}
		case "session_start":
			it.Type, it.Detail = "session", "Started session"
		default:
			return it, false
		}
	default:
		return it, false
	}
	return it, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Timeline merges summary items and dated records, newest first.
func Timeline(u model.TrialUser, records []model.ActivityRecord, loc *time.Location) []model.ActivityItem {
	e := u.Engagement
	var items []model.ActivityItem
	summaryAt := u.CreatedAt
	if e.LastActiveDate != nil {
		summaryAt = *e.LastActiveDate
	}
	if e.Points > 0 {
		it := model.ActivityItem{
			ID:        "points-" + u.ID,
			Type:      ItemPoints,
			Detail:    fmt.Sprintf("Earned %d points", e.Points),
			CreatedAt: summaryAt,
		}
		if e.LastActiveDate != nil {
			it.Extra = "Last active: " + e.LastActiveDate.In(loc).Format("02 Jan")
		}
		items = append(items, it)
	}
	if e.Streak > 0 {
		items = append(items, model.ActivityItem{
			ID:        "streak-" + u.ID,
			Type:      ItemStreak,
			Detail:    fmt.Sprintf("%d day streak", e.Streak),
			Extra:     fmt.Sprintf("+%d bonus points", e.Streak*5),
			CreatedAt: summaryAt,
		})
	}
	for _, r := range records {
		if it, ok := recordItem(r); ok {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items
}

// FirstAction is the oldest dated action, ignoring summary items.
func FirstAction(items []model.ActivityItem) *model.ActivityItem {
	var first *model.ActivityItem
	for i := range items {
		it := &items[i]
		if it.Type == ItemPoints || it.Type == ItemStreak {
			continue
		}
		if first == nil || it.CreatedAt.Before(first.CreatedAt) {
			first = it
		}
	}
	if first == nil {
		return nil
	}
	out := *first
	return &out
}

// TimeToFirstValue renders the gap from signup to the first action in the largest
// whole unit: minutes under an hour, hours under a day, days otherwise.
func TimeToFirstValue(signup, first time.Time) string {
	mins := int(math.Round(first.Sub(signup).Minutes()))
	switch {
	case mins < 60:
		return plural(mins, "min")
	case mins < 1440:
		return plural(int(math.Round(float64(mins)/60)), "hour")
	default:
		return plural(int(math.Round(float64(mins)/1440)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Drilldown builds the activity view for one trial user.
func Drilldown(u model.TrialUser, records []model.ActivityRecord, loc *time.Location) *model.UserActivity {
	items := Timeline(u, records, loc)
	out := &model.UserActivity{
		UserID:      u.ID,
		Activities:  items,
		FirstAction: FirstAction(items),
		Breakdown:   Breakdown(u.Engagement),
	}
	if out.Activities == nil {
		out.Activities = []model.ActivityItem{}
	}
	if out.FirstAction != nil {
		out.TimeToFirstValue = TimeToFirstValue(u.CreatedAt, out.FirstAction.CreatedAt)
	}
	return out
}
