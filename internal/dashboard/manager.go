package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var ErrManagerClosed = errors.New("dashboard manager closed")

var activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "admindash_dashboard_sessions",
	Help: "Admin dashboard sessions currently holding a query cache.",
})

type session struct {
	d        *Dashboard
	lastUsed time.Time
}

// Manager keeps one Dashboard per admin and tears it down once the admin stops
// using it.
type Manager struct {
	src    Sources
	opts   Options
	idle   time.Duration
	now    func() time.Time
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(src Sources, opts Options, idle time.Duration) *Manager {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		src:      src,
		opts:     opts,
		idle:     idle,
		now:      now,
		logger:   opts.Logger.With().Str("service", "DashboardManager").Logger(),
		sessions: make(map[string]*session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Acquire returns the admin's dashboard, creating and starting it on first use. The
// stored token is replaced so a renewed session clears auth failures on the next poll.
func (m *Manager) Acquire(adminID, token string) (*Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if s, ok := m.sessions[adminID]; ok {
		s.lastUsed = m.now()
		if token != "" && s.d.Token() != token {
			s.d.SetToken(token)
		}
		return s.d, nil
	}

	d := New(adminID, token, m.src, m.opts)
	d.Start(m.ctx)
	m.sessions[adminID] = &session{d: d, lastUsed: m.now()}
	activeSessions.Inc()
	m.logger.Info().Str("admin_id", adminID).Msg("Dashboard session started")
	return d, nil
}

// Evict tears down one admin's dashboard.
func (m *Manager) Evict(adminID string) {
	m.mu.Lock()
	s, ok := m.sessions[adminID]
	if ok {
		delete(m.sessions, adminID)
	}
	m.mu.Unlock()
	if ok {
		m.shutdown(adminID, s)
	}
}

func (m *Manager) shutdown(adminID string, s *session) {
	s.d.Close()
	activeSessions.Dec()
	m.logger.Info().Str("admin_id", adminID).Msg("Dashboard session closed")
}

// EvictIdle closes every session unused for longer than the idle timeout and
// returns how many were closed.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.idle)
	m.mu.Lock()
	stale := make(map[string]*session)
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			stale[id] = s
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for id, s := range stale {
		m.shutdown(id, s)
	}
	return len(stale)
}

// Run evicts idle sessions until ctx is done or the manager is closed.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idle / 2
	if interval <= 0 {
		interval = time.Minute
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				if n := m.EvictIdle(); n > 0 {
					m.logger.Debug().Int("evicted", n).Msg("Evicted idle dashboard sessions")
				}
			}
		}
	}()
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close tears down every session and stops the janitor.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	for id, s := range sessions {
		m.shutdown(id, s)
	}
}
