package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
)

const (
	streamReadLimit    = 4 << 10
	streamAuthDeadline = 10 * time.Second
	streamWriteWait    = 5 * time.Second
)

// StreamHandler serves GET /api/notes/:id/summarize/stream.
// The client sends {"password": "..."} as its first message; the server
// answers with chunk frames and a final done or error frame.
type StreamHandler struct {
	handler  *Handler
	upgrader websocket.Upgrader
}

func NewStreamHandler(h *Handler, cors *CORSMiddleware) *StreamHandler {
	return &StreamHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || cors.allowsAny() || cors.isOriginAllowed(origin)
			},
		},
	}
}

func (sh *StreamHandler) StreamSummary(c *gin.Context) {
	logger := sh.handler.logger
	conn, err := sh.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.Warn(c.Request.Context(), "websocket upgrade failed", logx.KV("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamAuthDeadline))
	var req passwordRequest
	if err := conn.ReadJSON(&req); err != nil {
		logger.Warn(ctx, "stream summary failed", logx.KV("status", http.StatusBadRequest), logx.KV("error", err))
		sh.writeFrame(conn, streamFrame{Type: "error", Status: http.StatusBadRequest, Message: MsgInvalidJSON})
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	// a reader is needed to notice the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	summary, err := sh.handler.service.StreamSummary(ctx, c.Param("id"), req.Password, func(_ context.Context, chunk string) error {
		return sh.writeFrame(conn, streamFrame{Type: "chunk", Data: chunk})
	})
	if err != nil {
		status, msg := errorStatus(err)
		logger.Warn(ctx, "stream summary failed", logx.KV("status", status), logx.KV("error", err))
		sh.writeFrame(conn, streamFrame{Type: "error", Status: status, Message: msg})
	} else {
		sh.writeFrame(conn, streamFrame{Type: "done", Summary: summary})
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
}

func (sh *StreamHandler) writeFrame(conn *websocket.Conn, frame streamFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(frame)
}
