package dashboard

import (
	"context"
	"fmt"
	"time"

	"admindash/internal/model"
	"admindash/internal/querycache"
	"admindash/internal/repository"
	"admindash/internal/service"
	"admindash/internal/trial"

	"golang.org/x/sync/errgroup"
)

const (
	KeyStripeStats     querycache.Key = "admin-stripe-stats"
	KeyDashboardStats  querycache.Key = "admin-dashboard-stats"
	KeyOnlineUsers     querycache.Key = "admin-online-users"
	KeySupportMessages querycache.Key = "admin-support-messages"
	KeyPendingCounts   querycache.Key = "admin-pending-counts"
	KeyBaseUsers       querycache.Key = "admin-base-users"
	KeyTrialUsers      querycache.Key = "admin-trial-users"
)

// ViewKeys are the five units the dashboard view renders.
var ViewKeys = []querycache.Key{
	KeyStripeStats,
	KeyDashboardStats,
	KeyOnlineUsers,
	KeySupportMessages,
	KeyPendingCounts,
}

var (
	defaultPolicy  = querycache.Policy{StaleTime: 30 * time.Second, PollInterval: 60 * time.Second}
	presencePolicy = querycache.Policy{StaleTime: 10 * time.Second, PollInterval: 15 * time.Second}
)

const (
	onlineUsersLimit   = 10
	inboxLimit         = 10
	recentSignupsLimit = 5
	signupWeekDays     = 7
)

// StatsFunction produces the subscription report for a bearer token.
type StatsFunction interface {
	SubscriptionStats(ctx context.Context, bearer string) (*model.StripeStats, error)
}

// AvatarSigner turns a stored avatar reference into a URL a browser can load.
type AvatarSigner interface {
	SignAvatar(ctx context.Context, ref string) (string, error)
}

// Sources are the remote systems the dashboard reads from and writes to.
type Sources struct {
	Users     repository.UserRepository
	Presence  repository.PresenceRepository
	Messages  repository.MessageRepository
	Activity  repository.ActivityRepository
	Stats     StatsFunction
	Reminders service.ReminderService
	// Avatars is optional. Without it avatar references are returned as stored.
	Avatars AvatarSigner
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (d *Dashboard) registerUnits() {
	d.baseUsers = querycache.Register(d.cache, querycache.FuncUnit[[]model.User]{K: KeyBaseUsers, P: defaultPolicy, F: d.fetchBaseUsers})
	d.stats = querycache.Register(d.cache, querycache.FuncUnit[*model.DashboardStats]{K: KeyDashboardStats, P: defaultPolicy, F: d.fetchDashboardStats})
	d.stripe = querycache.Register(d.cache, querycache.FuncUnit[*model.StripeStats]{K: KeyStripeStats, P: defaultPolicy, F: d.fetchStripeStats})
	d.online = querycache.Register(d.cache, querycache.FuncUnit[[]model.OnlineUser]{K: KeyOnlineUsers, P: presencePolicy, F: d.fetchOnlineUsers})
	d.messages = querycache.Register(d.cache, querycache.FuncUnit[[]model.SupportMessage]{K: KeySupportMessages, P: defaultPolicy, F: d.fetchSupportMessages})
	d.pending = querycache.Register(d.cache, querycache.FuncUnit[*model.PendingCounts]{K: KeyPendingCounts, P: defaultPolicy, F: d.fetchPendingCounts})
	d.trials = querycache.Register(d.cache, querycache.FuncUnit[[]model.TrialUser]{K: KeyTrialUsers, P: defaultPolicy, F: d.fetchTrialUsers})
}

func (d *Dashboard) today() time.Time {
	return StartOfDay(d.now(), d.loc)
}

func (d *Dashboard) fetchBaseUsers(ctx context.Context) ([]model.User, error) {
	users, err := d.src.Users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return nonNil(users), nil
}

// fetchDashboardStats reads base users through the cache so the shared lookup runs
// once for every surface that needs it.
func (d *Dashboard) fetchDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	users, err := d.baseUsers.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("base users: %w", err)
	}

	today := d.today()
	stats := &model.DashboardStats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = d.src.Users.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.SignupsToday, err = d.src.Users.CountSignupsSince(gctx, today)
		return err
	})
	g.Go(func() (err error) {
		stats.SignupsThisWeek, err = d.src.Users.CountSignupsSince(gctx, today.AddDate(0, 0, -signupWeekDays))
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveToday, err = d.src.Presence.CountActiveSince(gctx, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.RecentSignups = make([]model.UserSummary, 0, recentSignupsLimit)
	for _, u := range users {
		if InTrial(today, u) {
			stats.TrialUsers++
		}
		if len(stats.RecentSignups) < recentSignupsLimit {
			stats.RecentSignups = append(stats.RecentSignups, u.Summary())
		}
	}
	return stats, nil
}

func (d *Dashboard) fetchStripeStats(ctx context.Context) (*model.StripeStats, error) {
	return d.src.Stats.SubscriptionStats(ctx, d.Token())
}

func (d *Dashboard) fetchOnlineUsers(ctx context.Context) ([]model.OnlineUser, error) {
	users, err := d.src.Presence.ListRecent(ctx, onlineUsersLimit)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Profile.AvatarURL = d.signAvatar(ctx, users[i].Profile.AvatarURL)
	}
	return nonNil(users), nil
}

func (d *Dashboard) fetchSupportMessages(ctx context.Context) ([]model.SupportMessage, error) {
	msgs, err := d.src.Messages.ListInbox(ctx, d.adminID, inboxLimit)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].Sender.AvatarURL = d.signAvatar(ctx, msgs[i].Sender.AvatarURL)
	}
	return nonNil(msgs), nil
}

func (d *Dashboard) fetchPendingCounts(ctx context.Context) (*model.PendingCounts, error) {
	from, to := ExpiringTrialWindow(d.today())
	counts := &model.PendingCounts{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts.UnreadMessages, err = d.src.Messages.CountUnread(gctx, d.adminID)
		return err
	})
	g.Go(func() (err error) {
		counts.ExpiringTrials, err = d.src.Users.CountExpiringTrials(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (d *Dashboard) fetchTrialUsers(ctx context.Context) ([]model.TrialUser, error) {
	users, err := d.baseUsers.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("base users: %w", err)
	}
	engagement, err := d.src.Activity.ListEngagement(ctx)
	if err != nil {
		return nil, err
	}
	return trial.Build(d.now(), d.loc, users, engagement), nil
}

func (d *Dashboard) signAvatar(ctx context.Context, ref string) string {
	if d.src.Avatars == nil || ref == "" {
		return ref
	}
	url, err := d.src.Avatars.SignAvatar(ctx, ref)
	if err != nil {
		d.logger.Warn().Err(err).Str("avatar", ref).Msg("Failed to sign avatar URL")
		return ref
	}
	return url
}
