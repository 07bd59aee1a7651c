package services

import (
	"context"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionManagerLifecycle(t *testing.T) {
	client := new(MockContentClient)
	client.On("RequestContent", mock.Anything, models.LevelA1, models.ModuleReading).Return(nil, errBackendDown)
	deps, _ := testDeps(client, newFakeTicker())
	results := cache.NewMemoryResultCache(time.Hour)
	m := NewSessionManager(deps, results, nil)
	ctx := context.Background()

	s, err := m.Create(ctx, models.LevelA1, models.ModuleReading)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.Eventually(t, func() bool { return s.State() == StateAwaitingStart }, 2*time.Second, 5*time.Millisecond)

	_, err = m.Result(ctx, s.ID())
	assert.ErrorIs(t, err, ErrResultNotReady)
	assert.True(t, IsConflict(err))

	require.NoError(t, s.Start())
	require.NoError(t, s.Answer(models.OptionAnswer(1)))
	require.NoError(t, s.Finish(ctx))
	waitDone(t, s)

	require.Eventually(t, func() bool {
		_, err := results.Get(ctx, s.ID())
		return err == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Remove(s.ID()))
	assert.Equal(t, 0, m.Count())
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	res, err := m.Result(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Percentage)
	assert.Equal(t, s.ID(), res.SessionID)

	assert.ErrorIs(t, m.Remove(s.ID()), ErrSessionNotFound)
	_, err = m.Result(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManagerRejectsUnknownLevel(t *testing.T) {
	m := NewSessionManager(SessionDeps{}, nil, nil)

	_, err := m.Create(context.Background(), models.Level("X1"), models.ModuleReading)

	assert.ErrorIs(t, err, ErrUnknownLevel)
	assert.Equal(t, 0, m.Count())
}

func TestSessionManagerShutdownClosesSessions(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	client := new(MockContentClient)
	client.On("RequestContent", mock.Anything, models.LevelB2, models.ModuleListening).
		Run(func(mock.Arguments) { <-release }).
		Return(nil, errBackendDown)
	deps, _ := testDeps(client, newFakeTicker())
	m := NewSessionManager(deps, nil, nil)

	s, err := m.Create(context.Background(), models.LevelB2, models.ModuleListening)
	require.NoError(t, err)

	m.Shutdown()

	assert.Equal(t, 0, m.Count())
	assert.ErrorIs(t, s.Start(), ErrSessionClosed)
}

func TestSessionManagerEvictsCompletedSessions(t *testing.T) {
	client := new(MockContentClient)
	client.On("RequestContent", mock.Anything, models.LevelA1, models.ModuleReading).Return(nil, errBackendDown)
	deps, _ := testDeps(client, newFakeTicker())
	results := cache.NewMemoryResultCache(time.Hour)
	m := NewSessionManager(deps, results, nil, WithCompletedGrace(10*time.Millisecond))
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	var sessions []*ExamSession
	for i := 0; i < 5; i++ {
		s, err := m.Create(ctx, models.LevelA1, models.ModuleReading)
		require.NoError(t, err)
		require.Eventually(t, func() bool { return s.State() == StateAwaitingStart }, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, s.Start())
		require.NoError(t, s.Finish(ctx))
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		waitDone(t, s)
	}

	require.Eventually(t, func() bool { return m.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	for _, s := range sessions {
		_, err := m.Get(s.ID())
		assert.ErrorIs(t, err, ErrSessionNotFound)

		res, err := m.Result(ctx, s.ID())
		require.NoError(t, err)
		assert.Equal(t, s.ID(), res.SessionID)
	}
}

func TestSessionManagerSweepsIdleSessions(t *testing.T) {
	client := new(MockContentClient)
	client.On("RequestContent", mock.Anything, models.LevelA1, models.ModuleReading).Return(nil, errBackendDown)
	client.On("RequestContent", mock.Anything, models.LevelB1, models.ModuleListening).Return(nil, errBackendDown)
	deps, _ := testDeps(client, newFakeTicker())
	m := NewSessionManager(deps, nil, nil, WithIdleTTL(time.Hour), WithSweepInterval(time.Hour))
	t.Cleanup(m.Shutdown)
	ctx := context.Background()

	unstarted, err := m.Create(ctx, models.LevelA1, models.ModuleReading)
	require.NoError(t, err)
	failed, err := m.Create(ctx, models.LevelB1, models.ModuleListening)
	require.NoError(t, err)
	running, err := m.Create(ctx, models.LevelA1, models.ModuleReading)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return unstarted.State() == StateAwaitingStart &&
			failed.State() == StateLoadError &&
			running.State() == StateAwaitingStart
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, running.Start())

	m.sweepIdle()
	assert.Equal(t, 3, m.Count(), "sessions younger than the TTL stay")

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	m.sweepIdle()

	assert.Equal(t, 1, m.Count())
	got, err := m.Get(running.ID())
	require.NoError(t, err)
	assert.Same(t, running, got)
	assert.ErrorIs(t, unstarted.Start(), ErrSessionClosed)
	_, err = m.Get(failed.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
