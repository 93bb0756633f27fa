package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/blueplan/noteshare-go/internal/noteshare/config"
	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
	"github.com/blueplan/noteshare-go/internal/noteshare/llm/mock"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/blueplan/noteshare-go/internal/noteshare/notes"
	"github.com/blueplan/noteshare-go/internal/noteshare/secrets"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Environment: "test"},
		API: config.APIConfig{
			Host:           "127.0.0.1",
			Port:           0,
			CORSOrigins:    []string{"*"},
			MaxRequestSize: 64 << 10,
			Timeout:        30,
		},
	}
}

func newTestServer(t *testing.T, summarizer llm.Summarizer) *Server {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), summarizer)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, summarizer llm.Summarizer) *Server {
	t.Helper()
	svc := notes.NewService(notes.Options{
		Store:      notes.NewInmem(config.DefaultRetention, nil),
		Hasher:     secrets.NewBcryptHasher(bcrypt.MinCost),
		Summarizer: summarizer,
	})
	return NewServer(cfg, svc, nil)
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func createNote(t *testing.T, s *Server, text string) createNoteResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"noteText": text})
	rec, env := do(t, s, http.MethodPost, "/api/notes", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, env.Success)

	var created createNoteResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	return created
}

func TestNoteLifecycleOverHTTP(t *testing.T) {
	ai := mock.New("Mocked AI summary")
	s := newTestServer(t, ai)

	created := createNote(t, s, "Test note content")
	_, err := uuid.Parse(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "/note/"+created.ID, created.NoteURL)
	assert.NotEmpty(t, created.Password)

	pw := `{"password":"` + created.Password + `"}`

	rec, env := do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/unlock", pw)
	require.Equal(t, http.StatusOK, rec.Code)
	var unlocked struct {
		NoteText  string    `json:"noteText"`
		CreatedAt time.Time `json:"createdAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &unlocked))
	assert.Equal(t, "Test note content", unlocked.NoteText)
	assert.False(t, unlocked.CreatedAt.IsZero())
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec, env = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/unlock", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, MsgWrongPassword, env.Message)

	rec, env = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", pw)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary summaryResponse
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, "Mocked AI summary", summary.Summary)
	assert.Equal(t, []string{"Test note content"}, ai.Calls())

	rec, env = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MsgWrongPassword, env.Message)
	assert.Len(t, ai.Calls(), 1)
}

func TestCreateNoteValidation(t *testing.T) {
	s := newTestServer(t, mock.New("x"))

	cases := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"missing field", `{}`, http.StatusBadRequest, notes.MsgTextRequired},
		{"empty body", ``, http.StatusBadRequest, notes.MsgTextRequired},
		{"blank text", `{"noteText":"   \n "}`, http.StatusBadRequest, notes.MsgTextRequired},
		{"too long", `{"noteText":"` + strings.Repeat("a", 501) + `"}`, http.StatusBadRequest, notes.MsgTextTooLong},
		{"not a string", `{"noteText":42}`, http.StatusBadRequest, MsgInvalidJSON},
		{"malformed json", `{"noteText":`, http.StatusBadRequest, MsgInvalidJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPost, "/api/notes", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.msg, env.Message)
		})
	}

	rec, _ := do(t, s, http.MethodPost, "/api/notes", `{"noteText":"`+strings.Repeat("a", 500)+`"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUnlockErrors(t *testing.T) {
	s := newTestServer(t, mock.New("x"))
	created := createNote(t, s, "hello")

	rec, env := do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/unlock", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, notes.MsgPasswordRequired, env.Message)

	rec, env = do(t, s, http.MethodPost, "/api/notes/"+uuid.NewString()+"/unlock", `{"password":"abc"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNoteNotFound, env.Message)

	rec, env = do(t, s, http.MethodPost, "/api/notes/not-an-id/unlock", `{"password":"abc"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNoteNotFound, env.Message)

	rec, env = do(t, s, http.MethodPost, "/api/notes/"+uuid.NewString()+"/summarize", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, notes.MsgPasswordRequired, env.Message)
}

func TestSummarizeFailureStatuses(t *testing.T) {
	cases := []struct {
		kind   llm.FailureKind
		status int
		msg    string
	}{
		{llm.FailureNotConfigured, http.StatusInternalServerError, "AI service is not configured (GEMINI_API_KEY missing)"},
		{llm.FailureAuth, http.StatusInternalServerError, "AI service authentication failed (Invalid Gemini Key)"},
		{llm.FailureRateLimited, http.StatusTooManyRequests, "AI service rate limit reached. Please try again later or check your Gemini quota."},
		{llm.FailureEmptyResult, http.StatusBadGateway, "AI returned an empty response. Please try again."},
		{llm.FailureGeneric, http.StatusBadGateway, "AI summarization failed. Please try again."},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			s := newTestServer(t, mock.Failing(tc.kind))
			created := createNote(t, s, "text")

			rec, env := do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", `{"password":"`+created.Password+`"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.msg, env.Message)
			assert.NotContains(t, rec.Body.String(), "mock failure")
		})
	}
}

func TestSummarizeWithoutKeyChecksPasswordFirst(t *testing.T) {
	s := newTestServer(t, llm.NewDisabled("GEMINI_API_KEY missing"))
	created := createNote(t, s, "text")

	rec, _ := do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", `{"password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", `{"password":"`+created.Password+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthAndNoRoute(t *testing.T) {
	s := newTestServer(t, mock.New("x"))

	rec, env := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, MsgServerRunning, env.Message)

	rec, env = do(t, s, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, env = do(t, s, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, MsgRouteNotFound, env.Message)
}

func TestBodySizeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.API.MaxRequestSize = 128
	s := newTestServerWithConfig(t, cfg, mock.New("x"))

	rec, env := do(t, s, http.MethodPost, "/api/notes", `{"noteText":"`+strings.Repeat("a", 200)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, MsgBodyTooLarge, env.Message)

	// no Content-Length: the limit is enforced while reading
	req := httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewReader([]byte(`{"noteText":"`+strings.Repeat("b", 200)+`"}`)))
	req.ContentLength = -1
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.API.CORSOrigins = []string{"https://notes.example.com", "http://localhost:*"}
	s := newTestServerWithConfig(t, cfg, mock.New("x"))

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.org")
	req.Header.Set(headerRequestID, "req-123")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-123", rec.Header().Get(headerRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec, _ = do(t, s, http.MethodGet, "/api/health", "")
	_, err := uuid.Parse(rec.Header().Get(headerRequestID))
	assert.NoError(t, err)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	s := newTestServer(t, mock.New("x"))
	s.engine.GET("/api/boom", func(c *gin.Context) { panic("kaboom") })

	rec, env := do(t, s, http.MethodGet, "/api/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, MsgInternal, env.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Monitoring.EnableMetrics = true
	s := newTestServerWithConfig(t, cfg, mock.New("x"))

	do(t, s, http.MethodGet, "/api/health", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gin_requests_total")
}

func TestReadyReportsStoreHealth(t *testing.T) {
	s := newTestServer(t, mock.New("x"))

	status := "healthy"
	s.SetStoreHealth(func(ctx context.Context) map[string]interface{} {
		h := map[string]interface{}{"status": status, "stats": map[string]interface{}{"total_conns": 3}}
		if status != "healthy" {
			h["error"] = "dial tcp 10.0.0.7:6379: connection refused"
		}
		return h
	})

	rec, env := do(t, s, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"total_conns":3`)

	status = "unhealthy"
	rec, env = do(t, s, http.MethodGet, "/api/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, MsgStoreUnavailable, env.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestPasswordNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logx.New(&buf, "debug")
	svc := notes.NewService(notes.Options{
		Store:      notes.NewInmem(config.DefaultRetention, nil),
		Hasher:     secrets.NewBcryptHasher(bcrypt.MinCost),
		Summarizer: mock.New("Mocked AI summary"),
		Logger:     logger,
	})
	s := NewServer(testConfig(), svc, logger)

	created := createNote(t, s, "Test note content")
	pw := `{"password":"` + created.Password + `"}`

	rec, _ := do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/unlock", pw)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/unlock", `{"password":"`+created.Password+`x"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = do(t, s, http.MethodPost, "/api/notes/"+created.ID+"/summarize", pw)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotZero(t, buf.Len())
	assert.NotContains(t, buf.String(), created.Password)
}
