package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
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

func dialStream(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/notes/" + id + "/summarize/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []streamFrame {
	t.Helper()
	var frames []streamFrame
	for {
		var f streamFrame
		if err := conn.ReadJSON(&f); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return frames
		}
		frames = append(frames, f)
	}
}

func TestStreamSummary(t *testing.T) {
	ai := mock.New("")
	ai.Chunks = []string{"- one\n", "- two\n"}
	s := newTestServer(t, ai)
	created := createNote(t, s, "stream me")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, created.ID)
	require.NoError(t, conn.WriteJSON(passwordRequest{Password: created.Password}))

	frames := readFrames(t, conn)
	require.Len(t, frames, 3)
	assert.Equal(t, streamFrame{Type: "chunk", Data: "- one\n"}, frames[0])
	assert.Equal(t, streamFrame{Type: "chunk", Data: "- two\n"}, frames[1])
	assert.Equal(t, streamFrame{Type: "done", Summary: "- one\n- two"}, frames[2])
}

func TestStreamSummaryErrors(t *testing.T) {
	s := newTestServer(t, mock.Failing(llm.FailureRateLimited))
	created := createNote(t, s, "stream me")

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, created.ID)
	require.NoError(t, conn.WriteJSON(passwordRequest{Password: "wrong"}))
	frames := readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0].Type)
	assert.Equal(t, http.StatusUnauthorized, frames[0].Status)
	assert.Equal(t, MsgWrongPassword, frames[0].Message)

	conn = dialStream(t, srv, created.ID)
	require.NoError(t, conn.WriteJSON(passwordRequest{Password: created.Password}))
	frames = readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, http.StatusTooManyRequests, frames[0].Status)

	conn = dialStream(t, srv, created.ID)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frames = readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, http.StatusBadRequest, frames[0].Status)
}

// lockedBuffer is written by the server goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamSummaryLogsFailures(t *testing.T) {
	var out lockedBuffer
	logger := logx.New(&out, "info")
	svc := notes.NewService(notes.Options{
		Store:      notes.NewInmem(config.DefaultRetention, nil),
		Hasher:     secrets.NewBcryptHasher(bcrypt.MinCost),
		Summarizer: mock.New("x"),
		Logger:     logger,
	})
	s := NewServer(testConfig(), svc, logger)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialStream(t, srv, uuid.NewString())
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frames := readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, http.StatusBadRequest, frames[0].Status)

	conn = dialStream(t, srv, uuid.NewString())
	require.NoError(t, conn.WriteJSON(passwordRequest{Password: "abc"}))
	frames = readFrames(t, conn)
	require.Len(t, frames, 1)
	assert.Equal(t, http.StatusNotFound, frames[0].Status)

	logged := out.String()
	assert.Equal(t, 2, strings.Count(logged, "stream summary failed"), logged)
	assert.Contains(t, logged, `"status":400`)
	assert.Contains(t, logged, `"status":404`)
}
