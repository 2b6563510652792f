// Package session keeps one navigation history and one synchronized
// selection per browser. Sessions live in memory only.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ziadkadry99/apiview/internal/catalog"
	"github.com/ziadkadry99/apiview/internal/history"
	"github.com/ziadkadry99/apiview/internal/journal"
	"github.com/ziadkadry99/apiview/internal/routesync"
	"github.com/ziadkadry99/apiview/internal/selection"
)

// Journal receives every history action of every session.
type Journal interface {
	Log(ctx context.Context, e journal.Entry) error
}

// Snapshot is a consistent view of a session.
type Snapshot struct {
	ID       string
	State    selection.State
	Location history.Location
	Title    string
	// Action is the last history action, empty until the first navigation.
	Action history.Action
}

// Session is one browser's viewer state. Its methods serialize all events,
// so the selection is never mutated concurrently.
type Session struct {
	ID string

	mu       sync.Mutex
	hist     *history.Memory
	sync     *routesync.Synchronizer
	action   history.Action
	lastSeen time.Time
	unlisten func()
	now      func() time.Time
}

// Arrive records an external navigation to loc, such as a page load or a
// browser back/forward. The selection follows the route.
func (s *Session) Arrive(loc history.Location) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.hist.Arrive(loc)
	return s.snapshot()
}

// Select applies an interactive group or document change and pushes the new
// route. A selection made from a page showing from is applied on top of that
// location, so a stale page selects relative to what the user saw.
func (s *Session) Select(from history.Location, ev selection.Event) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if from.Path != "" && from != s.hist.Location() {
		s.hist.Arrive(from)
	}
	if _, err := s.sync.Select(ev); err != nil {
		return s.snapshot(), err
	}
	return s.snapshot(), nil
}

// Replace swaps the current entry for loc, as a redirect does.
func (s *Session) Replace(loc history.Location) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.hist.Replace(loc)
	return s.snapshot()
}

// Back moves one entry back, reporting whether it moved.
func (s *Session) Back() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	ok := s.hist.Back()
	return s.snapshot(), ok
}

// Forward moves one entry forward, reporting whether it moved.
func (s *Session) Forward() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	ok := s.hist.Forward()
	return s.snapshot(), ok
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// LastSeen returns when the session last handled an event.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:       s.ID,
		State:    s.sync.State(),
		Location: s.hist.Location(),
		Title:    s.sync.Title(),
		Action:   s.action,
	}
}

func (s *Session) touch() { s.lastSeen = s.now() }

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlisten != nil {
		s.unlisten()
		s.unlisten = nil
	}
	s.sync.Close()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by sessions.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithJournal records every history action of every session.
func WithJournal(j Journal) Option {
	return func(m *Manager) { m.journal = j }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the live sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
	journal  Journal
	now      func() time.Time
}

// NewManager creates an empty Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Create starts a session whose history begins at initial and whose
// selection resolves against idx.
func (m *Manager) Create(idx catalog.Index, initial history.Location) *Session {
	id := uuid.New().String()
	h := history.NewMemory(initial)
	s := &Session{
		ID:       id,
		hist:     h,
		sync:     routesync.New(idx, h, m.logger.With("session", id)),
		lastSeen: m.now(),
		now:      m.now,
	}
	// Registered after the synchronizer so the logged selection already
	// reflects the replayed route.
	s.unlisten = h.Listen(func(loc history.Location, action history.Action) {
		s.action = action
		m.record(s, loc, action)
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("session created", "session", id, "location", initial.String())
	return s
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops sessions idle for longer than ttl and returns how many were
// dropped.
func (m *Manager) Prune(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	if len(stale) > 0 {
		m.logger.Debug("sessions pruned", "count", len(stale))
	}
	return len(stale)
}

// Reset drops every session. It is called when the index is reloaded, since
// sessions resolve against the index they were created with.
func (m *Manager) Reset() {
	m.mu.Lock()
	old := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range old {
		s.close()
	}
}

// Run prunes idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Prune(ttl)
		}
	}
}

func (m *Manager) record(s *Session, loc history.Location, action history.Action) {
	if m.journal == nil {
		return
	}
	st := s.sync.State()
	err := m.journal.Log(context.Background(), journal.Entry{
		SessionID:  s.ID,
		Action:     action,
		Path:       loc.Path,
		RawQuery:   loc.RawQuery,
		GroupID:    st.Group.ID,
		DocumentID: st.Document.ID,
	})
	if err != nil {
		m.logger.Warn("journal write failed", "session", s.ID, "error", err)
	}
}
