package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/content"
	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/SAP-F-2025/exam-session-service/internal/examclient"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/scoring"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
)

type SessionState string

const (
	StateLoading       SessionState = "loading"
	StateLoadError     SessionState = "load_error"
	StateAwaitingStart SessionState = "awaiting_start"
	StateInProgress    SessionState = "in_progress"
	StateSubmitting    SessionState = "submitting"
	StateCompleted     SessionState = "completed"
)

// WarningThreshold is the remaining time at which the one-time warning fires.
const WarningThreshold = 300

// ContentClient is the remote side of a session.
type ContentClient interface {
	RequestContent(ctx context.Context, level models.Level, module models.Module) (*examclient.Content, error)
	SubmitResults(ctx context.Context, module models.Module, queueID string, answers []*models.Answer, percentage int, pass bool) error
	EvaluateWriting(ctx context.Context, queueID string, answers []*models.Answer) (*models.WritingEvaluation, error)
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type SessionDeps struct {
	Client        ContentClient
	Builder       *content.Builder
	Scorer        *scoring.Engine
	Catalog       *models.Catalog
	Publisher     events.EventPublisher
	Logger        utils.Logger
	NewTicker     TickerFactory
	SubmitTimeout time.Duration
	// OnComplete runs once after the session reaches completed.
	OnComplete func(s *ExamSession, result *models.SessionResult)
}

func (d *SessionDeps) withDefaults() {
	if d.Catalog == nil {
		d.Catalog = models.DefaultCatalog()
	}
	if d.Logger == nil {
		d.Logger = utils.NewNopLogger()
	}
	if d.Builder == nil {
		d.Builder = content.NewBuilder(d.Catalog, nil, d.Logger)
	}
	if d.Scorer == nil {
		d.Scorer = scoring.NewEngine(d.Catalog)
	}
	if d.NewTicker == nil {
		d.NewTicker = NewTimeTicker
	}
	if d.SubmitTimeout <= 0 {
		d.SubmitTimeout = 6 * time.Minute
	}
}

type audioKey struct{ part, scenario int }

// ExamSession drives one exam attempt through
// loading → (load_error | awaiting_start) → in_progress → submitting → completed.
// The mutex-guarded state decides which of the load, countdown and submission
// tasks may touch the session.
type ExamSession struct {
	id        string
	level     models.Level
	module    models.Module
	config    models.ModuleConfig
	passScore int
	deps      SessionDeps
	logger    utils.Logger

	mu         sync.Mutex
	state      SessionState
	job        *models.ExamJob
	exam       *models.Exam
	answers    models.AnswerMap
	current    int
	remaining  int
	warned     bool
	evaluating bool
	loadErr    error
	result     *models.SessionResult
	closed     bool
	generation uint64
	cancelLoad context.CancelFunc
	stopTimer  chan struct{}
	done       chan struct{}
	audio      map[audioKey]*content.AudioAsset
	subs       map[int]chan Snapshot
	nextSub    int
}

func NewExamSession(id string, level models.Level, module models.Module, deps SessionDeps) (*ExamSession, error) {
	deps.withDefaults()

	lc, ok := deps.Catalog.Level(level)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLevel, level)
	}
	mc, ok := lc.Module(module)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownLevel, level, module)
	}

	return &ExamSession{
		id:        id,
		level:     level,
		module:    module,
		config:    mc,
		passScore: lc.PassScore,
		deps:      deps,
		logger:    deps.Logger.With("component", "exam_session", "session_id", id, "level", level, "module", module),
		state:     StateLoading,
		answers:   models.AnswerMap{},
		remaining: mc.DurationSeconds(),
		done:      make(chan struct{}),
		audio:     make(map[audioKey]*content.AudioAsset),
		subs:      make(map[int]chan Snapshot),
	}, nil
}

func (s *ExamSession) ID() string            { return s.id }
func (s *ExamSession) Level() models.Level   { return s.level }
func (s *ExamSession) Module() models.Module { return s.module }

// Done is closed when the session reaches completed.
func (s *ExamSession) Done() <-chan struct{} {
	return s.done
}

func (s *ExamSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load starts fetching content in the background. It is only valid in the
// loading state, i.e. once per session unless Retry is used.
func (s *ExamSession) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateLoading || s.cancelLoad != nil {
		return fmt.Errorf("%w: load from %s", ErrInvalidTransition, s.state)
	}
	s.startLoadLocked(ctx)
	return nil
}

// Retry moves a failed load back to loading and fetches again.
func (s *ExamSession) Retry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.state != StateLoadError {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, s.state)
	}
	s.logger.Info("Retrying content load")
	s.state = StateLoading
	s.loadErr = nil
	s.startLoadLocked(ctx)
	s.notifyLocked()
	return nil
}

func (s *ExamSession) startLoadLocked(ctx context.Context) {
	s.generation++
	gen := s.generation

	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelLoad = cancel
	s.job = &models.ExamJob{
		Level:       s.level,
		Module:      s.module,
		State:       models.JobRequested,
		RequestedAt: time.Now().UTC(),
	}

	go s.runLoad(loadCtx, gen)
}

func (s *ExamSession) runLoad(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen == s.generation && s.job != nil {
		s.job.State = models.JobPolling
	}
	s.mu.Unlock()

	exam, err := s.fetchExam(ctx)

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale content load", "generation", gen)
		return
	}
	s.cancelLoad = nil

	var event *events.SessionEvent
	if err != nil {
		s.state = StateLoadError
		s.loadErr = err
		s.job.State = models.JobFailed
		if apperrors.IsTimeout(err) {
			s.job.State = models.JobTimedOut
		}
		event = events.NewSessionLoadFailedEvent(s.id, s.level, s.module, err, isRetryable(err))
		s.logger.Warn("Content load failed", "error", err)
	} else {
		s.exam = exam
		s.job.QueueID = exam.QueueID
		s.job.State = models.JobReady
		s.state = StateAwaitingStart
		s.remaining = s.config.DurationSeconds()
		s.answers = models.AnswerMap{}
		s.current = 0
		event = events.NewSessionLoadedEvent(s.id, exam)
		s.logger.Info("Content loaded", "questions", len(exam.Questions), "queue_id", exam.QueueID, "fallback", exam.Fallback)
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(event)
}

func (s *ExamSession) fetchExam(ctx context.Context) (*models.Exam, error) {
	if s.module == models.ModuleSpeaking {
		return s.deps.Builder.Speaking(s.level)
	}
	if s.deps.Client == nil {
		return s.fallback(errors.New("no exam client configured"))
	}

	c, err := s.deps.Client.RequestContent(ctx, s.level, s.module)
	if err == nil {
		var exam *models.Exam
		exam, err = s.deps.Builder.Build(s.level, s.module, c.QueueID, c.Payload)
		if err == nil {
			return exam, nil
		}
	}
	return s.fallback(err)
}

func (s *ExamSession) fallback(cause error) (*models.Exam, error) {
	if !content.HasFallback(s.module) {
		return nil, cause
	}
	exam, err := s.deps.Builder.Fallback(s.level, s.module)
	if err != nil {
		s.logger.Error("Local sample content unavailable", "error", err)
		return nil, cause
	}
	s.logger.Warn("Serving local sample content", "provisional", true, "error", cause)
	return exam, nil
}

func isRetryable(err error) bool {
	return apperrors.IsRetryable(err) || errors.Is(err, content.ErrNoQuestions)
}

// Start begins the countdown.
func (s *ExamSession) Start() error {
	s.mu.Lock()
	if err := s.requireLocked(StateAwaitingStart, "start"); err != nil {
		s.mu.Unlock()
		return err
	}

	s.state = StateInProgress
	s.stopTimer = make(chan struct{})
	ticker := s.deps.NewTicker(time.Second)
	go s.runCountdown(ticker, s.stopTimer)

	event := events.NewSessionStartedEvent(s.id, s.level, s.module, s.remaining, time.Now().UTC())
	s.logger.Info("Exam started", "remaining_seconds", s.remaining)
	s.notifyLocked()
	s.mu.Unlock()

	s.publish(event)
	return nil
}

func (s *ExamSession) runCountdown(t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if s.tick() {
				return
			}
		}
	}
}

// tick advances the countdown by one second and reports whether the
// countdown is over.
func (s *ExamSession) tick() bool {
	s.mu.Lock()
	if s.state != StateInProgress || s.closed {
		s.mu.Unlock()
		return true
	}

	var pending []*events.SessionEvent
	if s.remaining > 0 {
		s.remaining--
	}
	if !s.warned && s.remaining <= WarningThreshold {
		s.warned = true
		pending = append(pending, events.NewTimeWarningEvent(s.id, s.remaining))
		s.logger.Info("Time warning", "remaining_seconds", s.remaining)
	}

	finished := s.remaining == 0
	if finished {
		s.logger.Info("Time is up, finishing exam")
		s.beginFinishLocked(models.FinishTimeout)
	}
	s.notifyLocked()
	s.mu.Unlock()

	for _, e := range pending {
		s.publish(e)
	}
	return finished
}

// Answer overwrites the answer of the current question.
func (s *ExamSession) Answer(a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerLocked(s.current, a)
}

// AnswerAt overwrites the answer of the question at index.
func (s *ExamSession) AnswerAt(index int, a models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answerLocked(index, a)
}

func (s *ExamSession) answerLocked(index int, a models.Answer) error {
	if err := s.requireLocked(StateInProgress, "answer"); err != nil {
		return err
	}
	if index < 0 || index >= len(s.exam.Questions) {
		return fmt.Errorf("%w: %d", ErrQuestionOutOfRange, index)
	}
	if err := checkAnswer(s.exam.Questions[index], a); err != nil {
		return err
	}

	s.answers[index] = a
	s.notifyLocked()
	return nil
}

func checkAnswer(q models.Question, a models.Answer) error {
	if options := models.Choices(q); options != nil {
		if a.Kind != models.AnswerOption {
			return fmt.Errorf("%w: question %d expects an option index", ErrInvalidAnswer, q.Position())
		}
		if a.Option < 0 || a.Option >= len(options) {
			return fmt.Errorf("%w: option %d out of range", ErrInvalidAnswer, a.Option)
		}
		return nil
	}
	if a.Kind != models.AnswerText && a.Kind != models.AnswerFields {
		return fmt.Errorf("%w: question %d expects text", ErrInvalidAnswer, q.Position())
	}
	return nil
}

// Next moves to the following question; it stays on the last one.
func (s *ExamSession) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(StateInProgress, "navigate"); err != nil {
		return err
	}
	if s.current < len(s.exam.Questions)-1 {
		s.current++
		s.notifyLocked()
	}
	return nil
}

// Previous moves to the preceding question; it stays on the first one.
func (s *ExamSession) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(StateInProgress, "navigate"); err != nil {
		return err
	}
	if s.current > 0 {
		s.current--
		s.notifyLocked()
	}
	return nil
}

func (s *ExamSession) JumpTo(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(StateInProgress, "navigate"); err != nil {
		return err
	}
	if index < 0 || index >= len(s.exam.Questions) {
		return fmt.Errorf("%w: %d", ErrQuestionOutOfRange, index)
	}
	s.current = index
	s.notifyLocked()
	return nil
}

// Finish ends the exam. Scoring and submission continue in the background;
// wait on Done for the result.
func (s *ExamSession) Finish(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireLocked(StateInProgress, "finish"); err != nil {
		return err
	}
	s.logger.Info("Finishing exam", "answered", len(s.answers))
	s.beginFinishLocked(models.FinishManual)
	s.notifyLocked()
	return nil
}

// beginFinishLocked stops the countdown and hands a copy of the answers to
// the submission task.
func (s *ExamSession) beginFinishLocked(reason models.FinishReason) {
	s.state = StateSubmitting
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}

	answers := s.answers.Clone()
	if s.module == models.ModuleWriting && s.exam.QueueID != "" {
		s.evaluating = true
	}
	go s.submit(reason, s.exam, answers)
}

func (s *ExamSession) submit(reason models.FinishReason, exam *models.Exam, answers models.AnswerMap) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.SubmitTimeout)
	defer cancel()

	in := scoring.Input{Exam: exam, Answers: answers, FinishReason: reason}
	list := answers.List(len(exam.Questions))

	var (
		res *models.SessionResult
		err error
	)
	if s.module == models.ModuleWriting && exam.QueueID != "" {
		res, err = s.scoreWriting(ctx, in, list)
	} else {
		res, err = s.deps.Scorer.Score(in)
	}
	if err != nil {
		s.logger.Error("Scoring failed", "error", err)
		res = &models.SessionResult{
			Level:        s.level,
			Module:       s.module,
			MaxPoints:    s.config.MaxPoints,
			PassScore:    s.passScore,
			FinishReason: reason,
			CompletedAt:  time.Now().UTC(),
		}
	}
	res.SessionID = s.id

	s.mu.Lock()
	s.state = StateCompleted
	s.result = res
	s.evaluating = false
	s.releaseAudioLocked()
	close(s.done)
	s.notifyLocked()
	s.mu.Unlock()

	s.logger.Info("Exam completed",
		"percentage", res.Percentage,
		"pass", res.Pass,
		"finish_reason", reason,
		"provisional", res.ProvisionalEvaluation)
	s.publish(events.NewSessionCompletedEvent(s.id, res))

	if s.deps.OnComplete != nil {
		s.deps.OnComplete(s, res)
	}

	if s.deps.Client != nil && exam.QueueID != "" && s.module != models.ModuleWriting {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.deps.SubmitTimeout)
			defer cancel()
			// failures are logged by the client
			_ = s.deps.Client.SubmitResults(ctx, s.module, exam.QueueID, list, res.Percentage, res.Pass)
		}()
	}
}

func (s *ExamSession) scoreWriting(ctx context.Context, in scoring.Input, list []*models.Answer) (*models.SessionResult, error) {
	if s.deps.Client != nil {
		eval, err := s.deps.Client.EvaluateWriting(ctx, in.Exam.QueueID, list)
		if err == nil {
			return s.deps.Scorer.ScoreEvaluation(in, eval, false)
		}

		s.logger.Warn("Writing evaluation failed, using local sample evaluation",
			"provisional", true,
			"queue_id", in.Exam.QueueID,
			"error", err)
		s.publish(events.NewEvaluationFallbackEvent(s.id, in.Exam.QueueID, err))
	}

	sample, err := content.SampleEvaluation()
	if err != nil {
		return nil, fmt.Errorf("sample evaluation unavailable: %w", err)
	}
	return s.deps.Scorer.ScoreEvaluation(in, sample, true)
}

// Close abandons the session: the countdown stops, in-flight loads are
// ignored and subscribers are released. It is safe to call more than once.
func (s *ExamSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
	s.releaseAudioLocked()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.logger.Info("Session closed", "state", s.state)
}

func (s *ExamSession) Result() (*models.SessionResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.result != nil
}

// Audio decodes the clip of a listening scenario on first use. Decoded clips
// are released when the session completes or closes.
func (s *ExamSession) Audio(part, scenario int) (*content.AudioAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.state != StateAwaitingStart && s.state != StateInProgress {
		return nil, fmt.Errorf("%w: audio in %s", ErrInvalidTransition, s.state)
	}
	if s.exam == nil {
		return nil, ErrAudioNotFound
	}
	sc, ok := s.exam.Listening.Scenario(part, scenario)
	if !ok || !sc.HasAudio {
		return nil, fmt.Errorf("%w: part %d scenario %d", ErrAudioNotFound, part, scenario)
	}

	key := audioKey{part, scenario}
	if asset, ok := s.audio[key]; ok {
		return asset, nil
	}
	asset, err := content.DecodeAudio(sc.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio for part %d scenario %d: %w", part, scenario, err)
	}
	s.audio[key] = asset
	return asset, nil
}

func (s *ExamSession) releaseAudioLocked() {
	for k, a := range s.audio {
		a.Release()
		delete(s.audio, k)
	}
}

func (s *ExamSession) requireLocked(want SessionState, op string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.state != want {
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, op, s.state)
	}
	return nil
}

func (s *ExamSession) publish(event *events.SessionEvent) {
	if s.deps.Publisher == nil || event == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Publisher.PublishSessionEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish session event", "event_type", event.Type, "error", err)
	}
}
