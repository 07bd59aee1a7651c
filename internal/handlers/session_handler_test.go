package handlers

import (
	"bytes"
	"encoding/base64"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/cache"
	"github.com/SAP-F-2025/exam-session-service/internal/examclient"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/services"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineClient fails every content request so sessions use local samples.
type offlineClient struct{}

func (offlineClient) RequestContent(context.Context, models.Level, models.Module) (*examclient.Content, error) {
	return nil, errors.New("backend offline")
}

func (offlineClient) SubmitResults(context.Context, models.Module, string, []*models.Answer, int, bool) error {
	return nil
}

func (offlineClient) EvaluateWriting(context.Context, string, []*models.Answer) (*models.WritingEvaluation, error) {
	return nil, errors.New("backend offline")
}

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }
func (t idleTicker) Stop()               {}

// listeningClient serves one listening part whose clip is audio.
type listeningClient struct {
	offlineClient
	audio string
}

func (c listeningClient) RequestContent(_ context.Context, _ models.Level, module models.Module) (*examclient.Content, error) {
	if module != models.ModuleListening {
		return nil, errors.New("backend offline")
	}
	return &examclient.Content{QueueID: "q-1", Payload: json.RawMessage(`{"parts":[{"instructions":"Teil 1","scenarios":[
		{"description":"Am Bahnhof","audio":"` + c.audio + `","questions":[
			{"question":"Wohin?","options":["Berlin","Hamburg"],"answer":1}
		]}
	]}]}`)}, nil
}

func setupRouter(t *testing.T) (*gin.Engine, *services.SessionManager) {
	return setupRouterWith(t, offlineClient{})
}

func setupRouterWith(t *testing.T, client services.ContentClient) (*gin.Engine, *services.SessionManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := services.NewSessionManager(services.SessionDeps{
		Client:    client,
		NewTicker: func(time.Duration) services.Ticker { return idleTicker{ch: make(chan time.Time)} },
	}, cache.NewMemoryResultCache(time.Hour), nil)
	t.Cleanup(manager.Shutdown)

	router := gin.New()
	NewHandlerManager(manager, validator.New(), nil).SetupRoutes(router)
	return router, manager
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

func createLoadedSession(t *testing.T, router http.Handler, manager *services.SessionManager, level, module string) string {
	t.Helper()
	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{"level": level, "module": module})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var snap struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	decodeData(t, w, &snap)
	require.NotEmpty(t, snap.ID)

	s, err := manager.Get(snap.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State() == services.StateAwaitingStart }, 2*time.Second, 5*time.Millisecond)
	return snap.ID
}

func TestHealthAndLevels(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = doJSON(router, http.MethodGet, "/api/v1/levels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var levels []models.LevelConfig
	decodeData(t, w, &levels)
	require.Len(t, levels, 6)
	assert.Equal(t, models.LevelA1, levels[0].Level)
	assert.Equal(t, models.LevelC2, levels[5].Level)
}

func TestCreateSessionValidation(t *testing.T) {
	router, _ := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{"level": "D4", "module": "reading"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{"level": "A1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownSession(t *testing.T) {
	router, _ := setupRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sessions/nope"},
		{http.MethodPost, "/api/v1/sessions/nope/start"},
		{http.MethodGet, "/api/v1/sessions/nope/result"},
		{http.MethodDelete, "/api/v1/sessions/nope"},
	} {
		w := doJSON(router, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.path)
	}
}

func TestReadingSessionFlow(t *testing.T) {
	router, manager := setupRouter(t)
	id := createLoadedSession(t, router, manager, "A1", "reading")
	base := "/api/v1/sessions/" + id

	w := doJSON(router, http.MethodPut, base+"/answer", gin.H{"answer": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPut, base+"/answer", gin.H{"answer": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(router, http.MethodPut, base+"/answer", gin.H{"answer": "richtig"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(router, http.MethodPut, base+"/answer", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, base+"/navigate", gin.H{"action": "jump"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(router, http.MethodPost, base+"/navigate", gin.H{"action": "jump", "index": 40})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(router, http.MethodPost, base+"/navigate", gin.H{"action": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, base+"/navigate", gin.H{"action": "next"})
	require.Equal(t, http.StatusOK, w.Code)
	var raw struct {
		CurrentIndex int    `json:"current_index"`
		Answered     []bool `json:"answered"`
	}
	decodeData(t, w, &raw)
	assert.Equal(t, 1, raw.CurrentIndex)
	assert.True(t, raw.Answered[0])

	w = doJSON(router, http.MethodGet, base+"/result", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	s, err := manager.Get(id)
	require.NoError(t, err)
	select {
	case <-s.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("session did not complete")
	}

	w = doJSON(router, http.MethodGet, base+"/result", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res models.SessionResult
	decodeData(t, w, &res)
	assert.Equal(t, 7, res.Percentage)
	assert.True(t, res.FallbackContent)
	require.Len(t, res.Items, 15)
	assert.Nil(t, res.Items[1].Answer)

	w = doJSON(router, http.MethodGet, base+"/review.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "review-A1-reading")
	assert.NotEmpty(t, w.Body.Bytes())

	require.Eventually(t, func() bool {
		_, err := manager.Result(context.Background(), id)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	w = doJSON(router, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(router, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Eventually(t, func() bool {
		return doJSON(router, http.MethodGet, base+"/result", nil).Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestListeningLoadErrorAndAudio(t *testing.T) {
	router, manager := setupRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{"level": "B1", "module": "listening"})
	require.Equal(t, http.StatusCreated, w.Code)
	var snap struct {
		ID string `json:"id"`
	}
	decodeData(t, w, &snap)
	base := "/api/v1/sessions/" + snap.ID

	s, err := manager.Get(snap.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.State() == services.StateLoadError }, 2*time.Second, 5*time.Millisecond)

	w = doJSON(router, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"load_error"`)
	assert.Contains(t, w.Body.String(), "backend offline")

	w = doJSON(router, http.MethodPost, base+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(router, http.MethodGet, base+"/audio/0/0", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = doJSON(router, http.MethodGet, base+"/audio/x/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, base+"/retry", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAudioWithUnusablePayloadIsBadGateway(t *testing.T) {
	for name, audio := range map[string]string{
		"not base64": "not base64 !!",
		"not audio":  base64.StdEncoding.EncodeToString([]byte("just some plain text")),
	} {
		t.Run(name, func(t *testing.T) {
			router, manager := setupRouterWith(t, listeningClient{audio: audio})
			id := createLoadedSession(t, router, manager, "B1", "listening")

			w := doJSON(router, http.MethodGet, "/api/v1/sessions/"+id+"/audio/0/0", nil)
			assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())

			w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+id+"/audio/0/1", nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestStreamSendsSnapshots(t *testing.T) {
	router, manager := setupRouter(t)
	id := createLoadedSession(t, router, manager, "A1", "speaking")

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var first struct {
		State     string            `json:"state"`
		Questions []json.RawMessage `json:"questions"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "awaiting_start", first.State)
	assert.Len(t, first.Questions, 3)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var next struct {
		State string `json:"state"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "in_progress", next.State)

	require.NoError(t, manager.Remove(id))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
