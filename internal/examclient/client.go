// Package examclient talks to the queue-backed exam generation backend. Every
// content or evaluation request is a job: create it, wait, then poll until the
// payload is ready.
package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/SAP-F-2025/exam-session-service/internal/errors"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnsupportedModule = errors.New("module has no remote content endpoint")
	ErrMissingQueueID    = errors.New("backend response carries no queue_id")
	ErrMissingEvaluation = errors.New("evaluation payload carries no evaluation")
)

const (
	modusGenerate = "generate"
	modusEvaluate = "evaluate"
)

// PollPolicy bounds the wait for one job.
type PollPolicy struct {
	WarmUp      time.Duration
	Interval    time.Duration
	MaxAttempts int
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		WarmUp:      10 * time.Second,
		Interval:    5 * time.Second,
		MaxAttempts: 60,
	}
}

// Content is a ready content payload together with the job it came from.
type Content struct {
	QueueID string
	Payload json.RawMessage
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	poll       PollPolicy
	logger     utils.Logger
	group      singleflight.Group
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithPollPolicy(p PollPolicy) Option {
	return func(c *Client) { c.poll = p }
}

func WithLogger(l utils.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		poll:       DefaultPollPolicy(),
		logger:     utils.NewNopLogger(),
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "exam_client")
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Endpoint maps a module to its backend base path.
func Endpoint(module models.Module) (string, error) {
	switch module {
	case models.ModuleReading:
		return "/read", nil
	case models.ModuleListening:
		return "/listen", nil
	case models.ModuleWriting:
		return "/write", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedModule, module)
}

// RequestContent creates a generation job for level and module and waits for
// its payload. Concurrent calls for the same module and level share one job.
// ctx only bounds how long this caller waits; the shared job keeps running
// for the other callers.
func (c *Client) RequestContent(ctx context.Context, level models.Level, module models.Module) (*Content, error) {
	ch, err := c.startContent(ctx, level, module)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Content), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) startContent(ctx context.Context, level models.Level, module models.Module) (<-chan singleflight.Result, error) {
	endpoint, err := Endpoint(module)
	if err != nil {
		return nil, err
	}
	key := "content:" + endpoint + ":" + string(level)
	flightCtx := context.WithoutCancel(ctx)

	return c.group.DoChan(key, func() (interface{}, error) {
		queueID, err := c.createJob(flightCtx, endpoint, level)
		if err != nil {
			return nil, err
		}

		modus := ""
		if module == models.ModuleWriting {
			modus = modusGenerate
		}
		payload, err := c.pollJob(flightCtx, endpoint, queueID, modus)
		if err != nil {
			return nil, err
		}
		return &Content{QueueID: queueID, Payload: payload}, nil
	}), nil
}

func (c *Client) createJob(ctx context.Context, endpoint string, level models.Level) (string, error) {
	q := url.Values{"level": {string(level)}}
	resp, err := c.do(ctx, http.MethodPut, endpoint, q, nil)
	if err != nil {
		return "", &apperrors.CreationError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		drain(resp.Body)
		return "", &apperrors.CreationError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	var body struct {
		QueueID string `json:"queue_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &apperrors.CreationError{Endpoint: endpoint, Err: fmt.Errorf("failed to decode creation response: %w", err)}
	}
	if body.QueueID == "" {
		return "", &apperrors.CreationError{Endpoint: endpoint, Err: ErrMissingQueueID}
	}

	c.logger.Info("Exam job created", "endpoint", endpoint, "level", level, "queue_id", body.QueueID)
	return body.QueueID, nil
}

// pollJob waits the warm-up delay, then polls until the payload is ready, a
// poll fails, or the attempt budget is spent. The interval sleep follows each
// not-ready poll except the last.
func (c *Client) pollJob(ctx context.Context, endpoint, queueID, modus string) (json.RawMessage, error) {
	if err := c.sleep(ctx, c.poll.WarmUp); err != nil {
		return nil, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Err: err}
	}

	for attempt := 1; attempt <= c.poll.MaxAttempts; attempt++ {
		payload, ready, err := c.fetchOnce(ctx, endpoint, queueID, modus)
		if err != nil {
			c.logger.Warn("Exam job poll failed", "endpoint", endpoint, "queue_id", queueID, "attempt", attempt, "error", err)
			return nil, err
		}
		if ready {
			c.logger.Info("Exam job ready", "endpoint", endpoint, "queue_id", queueID, "attempts", attempt)
			return payload, nil
		}
		c.logger.Debug("Exam job not ready", "endpoint", endpoint, "queue_id", queueID, "attempt", attempt)

		if attempt < c.poll.MaxAttempts {
			if err := c.sleep(ctx, c.poll.Interval); err != nil {
				return nil, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Err: err}
			}
		}
	}

	c.logger.Warn("Exam job timed out", "endpoint", endpoint, "queue_id", queueID, "attempts", c.poll.MaxAttempts)
	return nil, &apperrors.TimeoutError{Endpoint: endpoint, QueueID: queueID, Attempts: c.poll.MaxAttempts}
}

func (c *Client) fetchOnce(ctx context.Context, endpoint, queueID, modus string) (json.RawMessage, bool, error) {
	q := url.Values{"queue_id": {queueID}}
	if modus != "" {
		q.Set("modus", modus)
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint, q, nil)
	if err != nil {
		return nil, false, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		drain(resp.Body)
		return nil, false, nil
	}
	if !isSuccess(resp.StatusCode) {
		drain(resp.Body)
		return nil, false, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Status: resp.StatusCode}
	}

	var body struct {
		Payload json.RawMessage `json:"payload"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Err: err}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, false, &apperrors.FetchError{Endpoint: endpoint, QueueID: queueID, Err: fmt.Errorf("failed to decode poll response: %w", err)}
	}
	if isEmptyPayload(body.Payload) {
		return nil, false, nil
	}
	return body.Payload, true, nil
}

func isEmptyPayload(p json.RawMessage) bool {
	switch string(bytes.TrimSpace(p)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

type submitRequest struct {
	ParticipantAnswers []*models.Answer `json:"participant_answers"`
	Score              int              `json:"score"`
	IsPass             bool             `json:"is_pass"`
}

// SubmitResults reports the final answers and score for a job. It is best
// effort: failures are logged and returned for observation only.
func (c *Client) SubmitResults(ctx context.Context, module models.Module, queueID string, answers []*models.Answer, percentage int, pass bool) error {
	endpoint, err := Endpoint(module)
	if err != nil {
		return err
	}

	body, err := json.Marshal(submitRequest{ParticipantAnswers: answers, Score: percentage, IsPass: pass})
	if err != nil {
		return &apperrors.SubmissionError{Endpoint: endpoint, QueueID: queueID, Err: err}
	}

	resp, err := c.do(ctx, http.MethodPatch, endpoint, url.Values{"queue_id": {queueID}}, body)
	if err != nil {
		serr := &apperrors.SubmissionError{Endpoint: endpoint, QueueID: queueID, Err: err}
		c.logger.Warn("Result submission failed", "endpoint", endpoint, "queue_id", queueID, "error", serr)
		return serr
	}
	defer resp.Body.Close()
	drain(resp.Body)

	if !isSuccess(resp.StatusCode) {
		serr := &apperrors.SubmissionError{Endpoint: endpoint, QueueID: queueID, Status: resp.StatusCode}
		c.logger.Warn("Result submission rejected", "endpoint", endpoint, "queue_id", queueID, "status", resp.StatusCode)
		return serr
	}

	c.logger.Info("Results submitted", "endpoint", endpoint, "queue_id", queueID, "score", percentage, "is_pass", pass)
	return nil
}

// EvaluateWriting submits writing answers as a second job on the content's
// queue id and waits for the structured evaluation. Sessions served the same
// content share a queue id, so evaluations are never deduplicated.
func (c *Client) EvaluateWriting(ctx context.Context, queueID string, answers []*models.Answer) (*models.WritingEvaluation, error) {
	eval, err := c.evaluate(ctx, "/write", queueID, answers)
	if err != nil {
		return nil, &apperrors.EvaluationError{QueueID: queueID, Err: err}
	}
	return eval, nil
}

func (c *Client) evaluate(ctx context.Context, endpoint, queueID string, answers []*models.Answer) (*models.WritingEvaluation, error) {
	body, err := json.Marshal(struct {
		ParticipantAnswers []*models.Answer `json:"participant_answers"`
	}{answers})
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPut, endpoint, url.Values{"queue_id": {queueID}}, body)
	if err != nil {
		return nil, &apperrors.CreationError{Endpoint: endpoint, Err: err}
	}
	drain(resp.Body)
	resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, &apperrors.CreationError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	c.logger.Info("Writing evaluation requested", "queue_id", queueID)

	payload, err := c.pollJob(ctx, endpoint, queueID, modusEvaluate)
	if err != nil {
		return nil, err
	}

	var out struct {
		Evaluation *models.WritingEvaluation `json:"evaluation"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("failed to decode evaluation payload: %w", err)
	}
	if out.Evaluation == nil {
		return nil, ErrMissingEvaluation
	}
	return out.Evaluation, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body []byte) (*http.Response, error) {
	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
}
