package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/google/uuid"
)

const (
	defaultCompletedGrace = 5 * time.Minute
	defaultIdleTTL        = 30 * time.Minute
)

// SessionManager owns the live sessions of this process. Completed sessions
// are dropped after a grace period and sessions that never start are swept
// after an idle TTL; results stay reachable through the result cache.
type SessionManager struct {
	deps    SessionDeps
	results cache.ResultCache
	logger  utils.Logger

	completedGrace time.Duration
	idleTTL        time.Duration
	sweepInterval  time.Duration
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*managedSession

	stop     chan struct{}
	stopOnce sync.Once
}

type managedSession struct {
	session *ExamSession
	created time.Time
}

type ManagerOption func(*SessionManager)

// WithCompletedGrace sets how long a completed session stays live before it
// is evicted.
func WithCompletedGrace(d time.Duration) ManagerOption {
	return func(m *SessionManager) { m.completedGrace = d }
}

// WithIdleTTL sets how long a session may sit loading, failed or unstarted
// before the sweeper removes it. Zero disables the sweeper.
func WithIdleTTL(ttl time.Duration) ManagerOption {
	return func(m *SessionManager) { m.idleTTL = ttl }
}

func WithSweepInterval(d time.Duration) ManagerOption {
	return func(m *SessionManager) { m.sweepInterval = d }
}

func NewSessionManager(deps SessionDeps, results cache.ResultCache, logger utils.Logger, opts ...ManagerOption) *SessionManager {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	deps.withDefaults()
	if results == nil {
		results = cache.NewMemoryResultCache(24 * time.Hour)
	}

	m := &SessionManager{
		results:        results,
		logger:         logger.With("component", "session_manager"),
		completedGrace: defaultCompletedGrace,
		idleTTL:        defaultIdleTTL,
		now:            time.Now,
		sessions:       make(map[string]*managedSession),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sweepInterval <= 0 {
		m.sweepInterval = m.idleTTL / 2
	}

	onComplete := deps.OnComplete
	deps.OnComplete = func(s *ExamSession, res *models.SessionResult) {
		m.storeResult(s.ID(), res)
		if onComplete != nil {
			onComplete(s, res)
		}
		time.AfterFunc(m.completedGrace, func() { m.evict(s, "completed") })
	}
	m.deps = deps

	if m.idleTTL > 0 {
		go m.sweepLoop()
	}
	return m
}

func (m *SessionManager) Catalog() *models.Catalog {
	return m.deps.Catalog
}

// Create registers a new session and starts loading its content.
func (m *SessionManager) Create(ctx context.Context, level models.Level, module models.Module) (*ExamSession, error) {
	id := uuid.NewString()
	s, err := NewExamSession(id, level, module, m.deps)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = &managedSession{session: s, created: m.now()}
	m.mu.Unlock()

	if err := s.Load(ctx); err != nil {
		m.Remove(id)
		return nil, fmt.Errorf("failed to start loading session %s: %w", id, err)
	}

	m.logger.Info("Session created", "session_id", id, "level", level, "module", module)
	return s, nil
}

func (m *SessionManager) Get(id string) (*ExamSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry.session, nil
}

// Remove closes the session and forgets it. Cached results stay available.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	entry.session.Close()
	return nil
}

// Result returns the result of a live session or, once it is gone, the
// cached copy.
func (m *SessionManager) Result(ctx context.Context, id string) (*models.SessionResult, error) {
	if s, err := m.Get(id); err == nil {
		if res, ok := s.Result(); ok {
			return res, nil
		}
		return nil, ErrResultNotReady
	}

	res, err := m.results.Get(ctx, id)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached result: %w", err)
	}
	return res, nil
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops the sweeper and closes every live session.
func (m *SessionManager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	for _, entry := range sessions {
		entry.session.Close()
	}
	m.logger.Info("Closed live sessions", "count", len(sessions))
}

func (m *SessionManager) storeResult(id string, res *models.SessionResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.results.Set(ctx, id, res); err != nil {
		m.logger.Error("Failed to cache session result", "session_id", id, "error", err)
	}
}

// evict drops s if it is still the session registered under its id.
func (m *SessionManager) evict(s *ExamSession, reason string) {
	m.mu.Lock()
	entry, ok := m.sessions[s.ID()]
	if !ok || entry.session != s {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, s.ID())
	m.mu.Unlock()

	s.Close()
	m.logger.Info("Session evicted", "session_id", s.ID(), "reason", reason)
}

func (m *SessionManager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

// sweepIdle evicts sessions that were never started within the idle TTL.
func (m *SessionManager) sweepIdle() {
	cutoff := m.now().Add(-m.idleTTL)

	var stale []*ExamSession
	m.mu.RLock()
	for _, entry := range m.sessions {
		if entry.created.After(cutoff) {
			continue
		}
		switch entry.session.State() {
		case StateLoading, StateLoadError, StateAwaitingStart:
			stale = append(stale, entry.session)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.evict(s, "idle")
	}
}
