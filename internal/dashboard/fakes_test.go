package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"admindash/internal/model"
	"admindash/internal/repository"
	"admindash/internal/service"

	"github.com/rs/zerolog"
)

var errTransport = errors.New("connection reset by peer")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeUsers struct {
	mu          sync.Mutex
	users       []model.User
	listCalls   int
	err         error
	expiringErr error
}

func (f *fakeUsers) ListUsers(context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.User(nil), f.users...), nil
}

func (f *fakeUsers) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeUsers) CountUsers(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUsers) CountSignupsSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// CountExpiringTrials mirrors the SQL predicate of the real repository.
func (f *fakeUsers) CountExpiringTrials(_ context.Context, from, to time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.users {
		if !u.CreatedAt.Before(from) && u.CreatedAt.Before(to) && !u.Subscribed && !u.FreeAccessGranted {
			n++
		}
	}
	return n, f.expiringErr
}

func (f *fakeUsers) IsAdmin(context.Context, string) (bool, error) {
	return true, nil
}

type fakePresence struct {
	mu        sync.Mutex
	rows      []model.OnlineUser
	listCalls int
	err       error
}

func (f *fakePresence) ListRecent(_ context.Context, limit int) ([]model.OnlineUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	rows := append([]model.OnlineUser(nil), f.rows...)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakePresence) CountActiveSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if !r.LastSeen.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakePresence) Upsert(context.Context, model.Heartbeat) error {
	return nil
}

type fakeMessages struct {
	mu        sync.Mutex
	msgs      []model.SupportMessage
	writes    int
	listCalls int
	markErr   error
	listErr   error
	replies   []model.Reply
}

func (f *fakeMessages) ListInbox(_ context.Context, recipientID string, limit int) ([]model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.SupportMessage
	for _, m := range f.msgs {
		if m.RecipientID == recipientID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) CountUnread(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.RecipientID == recipientID && m.Unread() {
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) Get(_ context.Context, id string) (*model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, repository.ErrMessageNotFound
}

func (f *fakeMessages) MarkRead(_ context.Context, id string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	for i := range f.msgs {
		if f.msgs[i].ID == id && f.msgs[i].ReadAt == nil {
			f.msgs[i].ReadAt = &at
			f.writes++
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMessages) CreateReply(_ context.Context, reply model.Reply) (*model.SupportMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply)
	return &model.SupportMessage{
		ID:          "reply-1",
		SenderID:    reply.SenderID,
		RecipientID: reply.RecipientID,
		Subject:     reply.Subject,
		Message:     reply.Message,
	}, nil
}

func (f *fakeMessages) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeMessages) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeActivity struct {
	mu         sync.Mutex
	engagement map[string]model.Engagement
	records    map[string][]model.ActivityRecord
	calls      int
}

func (f *fakeActivity) ListActivity(_ context.Context, userID string) ([]model.ActivityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[userID], nil
}

func (f *fakeActivity) ListEngagement(context.Context) (map[string]model.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.engagement, nil
}

func (f *fakeActivity) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStats struct {
	mu     sync.Mutex
	stats  *model.StripeStats
	err    error
	calls  int
	tokens []string
}

func (f *fakeStats) SubscriptionStats(_ context.Context, bearer string) (*model.StripeStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.tokens = append(f.tokens, bearer)
	if bearer == "" {
		return nil, service.ErrUnauthenticated
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func (f *fakeStats) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeReminders struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeReminders) Send(_ context.Context, _ string, _ service.ReminderKind, userIDs ...string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, len(userIDs))
	for i, u := range userIDs {
		f.sent = append(f.sent, u)
		ids[i] = "job-" + u
	}
	return ids, nil
}

type fakeAvatars struct{}

func (fakeAvatars) SignAvatar(_ context.Context, ref string) (string, error) {
	if ref == "broken.png" {
		return "", errors.New("presign failed")
	}
	return "https://cdn.example.com/" + ref + "?sig=1", nil
}

const adminID = "admin-1"

type fixture struct {
	clock     *fakeClock
	users     *fakeUsers
	presence  *fakePresence
	messages  *fakeMessages
	activity  *fakeActivity
	stats     *fakeStats
	reminders *fakeReminders
}

var london = mustLoad("Europe/London")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newFixture() *fixture {
	now := time.Date(2025, 10, 15, 14, 30, 0, 0, london)
	return &fixture{
		clock:     &fakeClock{t: now},
		users:     &fakeUsers{},
		presence:  &fakePresence{},
		messages:  &fakeMessages{},
		activity:  &fakeActivity{engagement: map[string]model.Engagement{}},
		stats:     &fakeStats{stats: &model.StripeStats{TierCounts: map[string]int{}}},
		reminders: &fakeReminders{},
	}
}

func (f *fixture) sources() Sources {
	return Sources{
		Users:     f.users,
		Presence:  f.presence,
		Messages:  f.messages,
		Activity:  f.activity,
		Stats:     f.stats,
		Reminders: f.reminders,
		Avatars:   fakeAvatars{},
	}
}

func (f *fixture) options() Options {
	return Options{
		Location:     london,
		Now:          f.clock.Now,
		FetchTimeout: time.Second,
		Logger:       zerolog.Nop(),
	}
}

func (f *fixture) dashboard(token string) *Dashboard {
	return New(adminID, token, f.sources(), f.options())
}

func ptr[T any](v T) *T {
	return &v
}
