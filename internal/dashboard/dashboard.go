// Package dashboard composes the admin dashboard from independently cached fetch
// units and applies the admin's gestures (refresh, mark read, reply) to them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"admindash/internal/model"
	"admindash/internal/querycache"
	"admindash/internal/service"
	"admindash/internal/trial"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrEmptyReply = errors.New("reply body is empty")

// ErrTrialUserNotFound is returned for a user who is not on the trial pipeline.
var ErrTrialUserNotFound = errors.New("trial user not found")

var replyPolicy = bluemonday.StrictPolicy()

// Options configure every dashboard built by a Manager.
type Options struct {
	Location     *time.Location
	Now          func() time.Time
	FetchTimeout time.Duration
	Logger       zerolog.Logger
}

// Dashboard is one admin's view. It owns a query cache holding every unit the view
// reads, so sessions never share cached state.
type Dashboard struct {
	adminID string
	loc     *time.Location
	now     func() time.Time
	src     Sources
	cache   *querycache.Cache
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	token string

	baseUsers querycache.Handle[[]model.User]
	stats     querycache.Handle[*model.DashboardStats]
	stripe    querycache.Handle[*model.StripeStats]
	online    querycache.Handle[[]model.OnlineUser]
	messages  querycache.Handle[[]model.SupportMessage]
	pending   querycache.Handle[*model.PendingCounts]
	trials    querycache.Handle[[]model.TrialUser]
}

func New(adminID, token string, src Sources, opts Options) *Dashboard {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.With().Str("service", "Dashboard").Str("admin_id", adminID).Logger()
	d := &Dashboard{
		adminID: adminID,
		loc:     opts.Location,
		now:     opts.Now,
		src:     src,
		token:   token,
		timeout: opts.FetchTimeout,
		logger:  logger,
		cache: querycache.New(
			querycache.WithClock(opts.Now),
			querycache.WithFetchTimeout(opts.FetchTimeout),
			querycache.WithLogger(logger),
		),
	}
	d.registerUnits()
	return d
}

func (d *Dashboard) AdminID() string {
	return d.adminID
}

// Token is the bearer token used for privileged reports.
func (d *Dashboard) Token() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.token
}

// SetToken replaces the bearer token, e.g. after the admin signs in again.
func (d *Dashboard) SetToken(token string) {
	d.mu.Lock()
	d.token = token
	d.mu.Unlock()
}

// Start begins background polling of every unit.
func (d *Dashboard) Start(ctx context.Context) {
	d.cache.Start(ctx)
}

// Close stops polling and waits for in-flight fetches to return.
func (d *Dashboard) Close() {
	d.cache.Close()
}

// Section is one rendered part of the dashboard. A failed unit still produces a
// section; it carries the error instead of failing the whole view.
type Section[T any] struct {
	Data      T                `json:"data"`
	State     querycache.State `json:"state"`
	Error     string           `json:"error,omitempty"`
	FetchedAt *time.Time       `json:"fetchedAt,omitempty"`

	err error
}

func (s Section[T]) Err() error {
	return s.err
}

func readSection[T any](ctx context.Context, h querycache.Handle[T]) Section[T] {
	v, err := h.Get(ctx)
	return newSection(h.Peek(), v, err)
}

// peekSection reports what the cache holds without fetching.
func peekSection[T any](h querycache.Handle[T]) Section[T] {
	snap := h.Peek()
	return newSection(snap, snap.Value, snap.Err)
}

func newSection[T any](snap querycache.Snapshot[T], v T, err error) Section[T] {
	sec := Section[T]{State: snap.State}
	switch {
	case err == nil:
		sec.Data = v
	case snap.HasValue:
		sec.Data = snap.Value
	}
	if err != nil {
		sec.err = err
		sec.Error = err.Error()
		if !snap.HasValue {
			sec.State = querycache.StateFailed
		}
	}
	if !snap.FetchedAt.IsZero() {
		t := snap.FetchedAt
		sec.FetchedAt = &t
	}
	return sec
}

// Snapshot is the whole dashboard at one moment.
type Snapshot struct {
	// Ready is false until both stats and the subscription report have data. The
	// view shows its loading skeleton until then.
	Ready       bool                            `json:"ready"`
	Stats       Section[*model.DashboardStats]  `json:"stats"`
	StripeStats Section[*model.StripeStats]     `json:"stripeStats"`
	OnlineUsers Section[[]model.OnlineUser]     `json:"onlineUsers"`
	Messages    Section[[]model.SupportMessage] `json:"supportMessages"`
	Pending     Section[*model.PendingCounts]   `json:"pendingCounts"`
	Derived     Derived                         `json:"derived"`
	GeneratedAt time.Time                       `json:"generatedAt"`
}

// Snapshot reads the five view units concurrently. Failures stay inside their
// section.
func (d *Dashboard) Snapshot(ctx context.Context) *Snapshot {
	s := &Snapshot{}
	var g errgroup.Group
	g.Go(func() error { s.Stats = readSection(ctx, d.stats); return nil })
	g.Go(func() error { s.StripeStats = readSection(ctx, d.stripe); return nil })
	g.Go(func() error { s.OnlineUsers = readSection(ctx, d.online); return nil })
	g.Go(func() error { s.Messages = readSection(ctx, d.messages); return nil })
	g.Go(func() error { s.Pending = readSection(ctx, d.pending); return nil })
	_ = g.Wait()
	return d.finish(s)
}

// View is the dashboard as currently cached. It never waits on a fetch.
func (d *Dashboard) View() *Snapshot {
	return d.finish(&Snapshot{
		Stats:       peekSection(d.stats),
		StripeStats: peekSection(d.stripe),
		OnlineUsers: peekSection(d.online),
		Messages:    peekSection(d.messages),
		Pending:     peekSection(d.pending),
	})
}

func (d *Dashboard) finish(s *Snapshot) *Snapshot {
	now := d.now()
	s.GeneratedAt = now
	s.Ready = s.Stats.Data != nil && s.StripeStats.Data != nil
	s.Derived = derive(now, s)
	return s
}

// RefreshAll invalidates the five view units at once and waits for every refetch.
func (d *Dashboard) RefreshAll(ctx context.Context) error {
	return d.cache.Invalidate(ctx, ViewKeys...)
}

func (d *Dashboard) Inbox(ctx context.Context) ([]model.SupportMessage, error) {
	return d.messages.Get(ctx)
}

func (d *Dashboard) StripeStats(ctx context.Context) (*model.StripeStats, error) {
	return d.stripe.Get(ctx)
}

func (d *Dashboard) cachedMessage(id string) (model.SupportMessage, bool) {
	snap := d.messages.Peek()
	if !snap.HasValue {
		return model.SupportMessage{}, false
	}
	for _, m := range snap.Value {
		if m.ID == id {
			return m, true
		}
	}
	return model.SupportMessage{}, false
}

// MarkRead records that the admin has read a message. A message the cached inbox
// already shows as read is left alone. On success only the inbox is refetched; a
// failed refetch is logged and does not undo the write.
func (d *Dashboard) MarkRead(ctx context.Context, id string) error {
	if m, ok := d.cachedMessage(id); ok && !m.Unread() {
		return nil
	}
	wrote, err := d.src.Messages.MarkRead(ctx, id, d.now())
	if err != nil {
		return fmt.Errorf("mark message %s read: %w", id, err)
	}
	if !wrote {
		// Either already read elsewhere or not there at all.
		if _, err := d.src.Messages.Get(ctx, id); err != nil {
			return err
		}
	}
	if err := d.cache.Invalidate(ctx, KeySupportMessages); err != nil {
		d.logger.Warn().Err(err).Str("message_id", id).Msg("Marked message read but inbox refetch failed")
	}
	return nil
}

// OpenResult is a message opened for reply. MarkReadErr is set when the message
// could be shown but not marked read.
type OpenResult struct {
	Message     model.SupportMessage
	MarkReadErr error
}

// Open returns the message for the reply panel and marks it read. A failed mark-read
// does not stop the message from opening.
func (d *Dashboard) Open(ctx context.Context, id string) (*OpenResult, error) {
	msg, ok := d.cachedMessage(id)
	if !ok {
		m, err := d.src.Messages.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		msg = *m
	}

	res := &OpenResult{Message: msg}
	if err := d.MarkRead(ctx, id); err != nil {
		d.logger.Warn().Err(err).Str("message_id", id).Msg("Opened message without marking it read")
		res.MarkReadErr = err
		return res, nil
	}
	if refreshed, ok := d.cachedMessage(id); ok && !refreshed.Unread() {
		res.Message = refreshed
	} else if res.Message.ReadAt == nil {
		at := d.now()
		res.Message.ReadAt = &at
	}
	return res, nil
}

// Reply sends the admin's answer back to the sender of message id. The body is
// stripped of markup.
func (d *Dashboard) Reply(ctx context.Context, id, body string) (*model.SupportMessage, error) {
	clean := strings.TrimSpace(replyPolicy.Sanitize(body))
	if clean == "" {
		return nil, ErrEmptyReply
	}
	orig, ok := d.cachedMessage(id)
	if !ok {
		m, err := d.src.Messages.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		orig = *m
	}

	subject := orig.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	reply, err := d.src.Messages.CreateReply(ctx, model.Reply{
		SenderID:    d.adminID,
		RecipientID: orig.SenderID,
		Subject:     subject,
		Message:     clean,
	})
	if err != nil {
		return nil, fmt.Errorf("reply to message %s: %w", id, err)
	}
	d.logger.Info().Str("message_id", id).Str("recipient_id", orig.SenderID).Msg("Sent support reply")
	return reply, nil
}

// TrialsView is the trial pipeline after filtering.
type TrialsView struct {
	Stats  model.TrialStats `json:"stats"`
	Groups []trial.Group    `json:"groups"`
}

// Trials returns pipeline stats over every trial user and the filtered groups.
func (d *Dashboard) Trials(ctx context.Context, f trial.Filter) (*TrialsView, error) {
	users, err := d.trials.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &TrialsView{
		Stats:  trial.Stats(users),
		Groups: trial.GroupByEndDate(users, f),
	}, nil
}

// UserActivity is the drill-down for one trial user. The user comes from the cached
// pipeline; the timeline is read fresh on every call.
func (d *Dashboard) UserActivity(ctx context.Context, userID string) (*model.UserActivity, error) {
	users, err := d.trials.Get(ctx)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(users, func(u model.TrialUser) bool { return u.ID == userID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTrialUserNotFound, userID)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	records, err := d.src.Activity.ListActivity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return trial.Drilldown(users[idx], records, d.loc), nil
}

// SendReminders queues reminder or offer emails, then refetches the trial pipeline.
func (d *Dashboard) SendReminders(ctx context.Context, kind service.ReminderKind, userIDs ...string) ([]string, error) {
	jobIDs, err := d.src.Reminders.Send(ctx, d.adminID, kind, userIDs...)
	if err != nil {
		return jobIDs, err
	}
	if err := d.cache.Invalidate(ctx, KeyTrialUsers); err != nil {
		d.logger.Warn().Err(err).Msg("Reminders queued but trial pipeline refetch failed")
	}
	return jobIDs, nil
}
