// Package trial places users on the seven day trial pipeline and scores how engaged
// each one is, so admins can decide who to nudge before the trial runs out.
package trial

import (
	"math"
	"sort"
	"strings"
	"time"

	"admindash/internal/model"
)

const (
	LengthDays = 7
	// MaxExpiredDays drops trials that ended longer ago than this, unless the user
	// went on to subscribe.
	MaxExpiredDays = 365

	HotScore  = 15
	WarmScore = 5

	dateLayout = "2006-01-02"
)

type Lead string

const (
	LeadHot  Lead = "hot"
	LeadWarm Lead = "warm"
	LeadCold Lead = "cold"
)

func Temperature(score int) Lead {
	switch {
	case score >= HotScore:
		return LeadHot
	case score >= WarmScore:
		return LeadWarm
	default:
		return LeadCold
	}
}

// Score weights engagement signals. Time, page and login bonuses are capped so
// passive browsing cannot outrank real work.
func Score(e model.Engagement) int {
	return Breakdown(e).Total
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts calendar days from a to b, ignoring DST length changes.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Build places users on the pipeline relative to now in loc.
func Build(now time.Time, loc *time.Location, users []model.User, engagement map[string]model.Engagement) []model.TrialUser {
	today := dayOf(now, loc)
	out := make([]model.TrialUser, 0, len(users))
	for _, u := range users {
		trialEnds := u.CreatedAt.In(loc).AddDate(0, 0, LengthDays)
		remaining := daysBetween(today, dayOf(trialEnds, loc))
		if !u.Subscribed && remaining < -MaxExpiredDays {
			continue
		}

		status := model.TrialActive
		switch {
		case u.Subscribed:
			status = model.TrialSubscribed
		case remaining < 0:
			status = model.TrialExpired
		case remaining == 0:
			status = model.TrialEndingToday
		case remaining == 1:
			status = model.TrialEndingTomorrow
		}

		e := engagement[u.ID]
		e.UserID = u.ID
		lastActive := e.LastActivity
		if lastActive == nil {
			lastActive = e.LastActiveDate
		}
		if lastActive == nil {
			lastActive = u.LastSignInAt
		}

		out = append(out, model.TrialUser{
			ID:              u.ID,
			FullName:        u.FullName,
			Username:        u.Username,
			Email:           u.Email,
			Role:            u.Role,
			Subscribed:      u.Subscribed,
			CreatedAt:       u.CreatedAt,
			LastSignInAt:    u.LastSignInAt,
			SignupDate:      u.CreatedAt.In(loc).Format(dateLayout),
			TrialEnds:       trialEnds.Format(dateLayout),
			Status:          status,
			DaysRemaining:   max(0, remaining),
			EngagementScore: Score(e),
			LastActiveAt:    lastActive,
			Engagement:      e,
		})
	}
	return out
}

// Stats summarises the pipeline. Lead temperatures only count trials that are
// neither expired nor converted.
func Stats(users []model.TrialUser) model.TrialStats {
	var s model.TrialStats
	for _, u := range users {
		if u.Subscribed {
			s.Converted++
			continue
		}
		s.TotalTrials++
		switch u.Status {
		case model.TrialEndingToday:
			s.EndingToday++
		case model.TrialEndingTomorrow:
			s.EndingTomorrow++
		case model.TrialExpired:
			s.Expired++
		case model.TrialActive:
			s.Active++
		}
		if u.Status == model.TrialExpired {
			continue
		}
		switch Temperature(u.EngagementScore) {
		case LeadHot:
			s.HotLeads++
		case LeadWarm:
			s.WarmLeads++
		default:
			s.ColdLeads++
		}
	}
	if len(users) > 0 {
		s.ConversionRate = math.Round(float64(s.Converted)/float64(len(users))*1000) / 10
	}
	return s
}

// Filter narrows the pipeline. Empty fields and "all" match everything. Status
// "subscribed" switches the view to converted users.
type Filter struct {
	Status     string `json:"status"`
	Role       string `json:"role"`
	Engagement string `json:"engagement"`
	Search     string `json:"search"`
}

func isAll(v string) bool {
	return v == "" || v == "all"
}

func (f Filter) Match(u model.TrialUser) bool {
	if f.Status == string(model.TrialSubscribed) {
		if !u.Subscribed {
			return false
		}
	} else {
		if u.Subscribed {
			return false
		}
		if !isAll(f.Status) && string(u.Status) != f.Status {
			return false
		}
	}
	if !isAll(f.Role) && u.Role != f.Role {
		return false
	}
	if !isAll(f.Engagement) && string(Temperature(u.EngagementScore)) != f.Engagement {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.FullName), q) && !strings.Contains(strings.ToLower(u.Username), q) {
			return false
		}
	}
	return true
}

// Group is the users whose trial ends on one date.
type Group struct {
	TrialEnds string            `json:"trial_ends"`
	Users     []model.TrialUser `json:"users"`
}

// GroupByEndDate applies f and groups by trial end date, soonest first, with the
// most engaged user first within each day.
func GroupByEndDate(users []model.TrialUser, f Filter) []Group {
	byDate := make(map[string][]model.TrialUser)
	for _, u := range users {
		if f.Match(u) {
			byDate[u.TrialEnds] = append(byDate[u.TrialEnds], u)
		}
	}
	groups := make([]Group, 0, len(byDate))
	for date, us := range byDate {
		sort.SliceStable(us, func(i, j int) bool {
			return us[i].EngagementScore > us[j].EngagementScore
		})
		groups = append(groups, Group{TrialEnds: date, Users: us})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].TrialEnds < groups[j].TrialEnds
	})
	return groups
}
