package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
	"github.com/blueplan/noteshare-go/internal/noteshare/notes"
)

// HealthReporter 返回存储后端的健康详情，"status" 为 "healthy" 时视为就绪
type HealthReporter func(ctx context.Context) map[string]interface{}

// Handler API处理器
type Handler struct {
	service     *notes.Service
	logger      *logx.Logger
	storeHealth HealthReporter
}

// NewHandler 创建新的处理器
func NewHandler(service *notes.Service, logger *logx.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// bindJSON decodes the body into dst. An empty body decodes as {}.
// It writes the error response itself and reports whether to continue.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		return true
	case isBodyTooLarge(err):
		fail(c, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
	default:
		fail(c, http.StatusBadRequest, MsgInvalidJSON)
	}
	return false
}

func respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	_ = c.Error(err)
	fail(c, status, msg)
}

// CreateNote POST /api/notes
func (h *Handler) CreateNote(c *gin.Context) {
	var req createNoteRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Create(c.Request.Context(), req.NoteText)
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusCreated, createNoteResponse{
		ID:       res.ID,
		NoteURL:  res.URL,
		Password: res.Secret,
	})
}

// UnlockNote POST /api/notes/:id/unlock
func (h *Handler) UnlockNote(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.service.Unlock(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, unlockResponse{NoteText: res.Text, CreatedAt: res.CreatedAt})
}

// SummarizeNote POST /api/notes/:id/summarize
func (h *Handler) SummarizeNote(c *gin.Context) {
	var req passwordRequest
	if !bindJSON(c, &req) {
		return
	}

	summary, err := h.service.Summarize(c.Request.Context(), c.Param("id"), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	ok(c, http.StatusOK, summaryResponse{Summary: summary})
}

// Health GET /api/health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Success: true, Message: MsgServerRunning})
}

// Ready GET /api/health/ready 检查存储是否可用
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Error(ctx, "store ping failed", logx.KV("error", err))
		fail(c, http.StatusServiceUnavailable, MsgStoreUnavailable)
		return
	}
	if h.storeHealth == nil {
		c.JSON(http.StatusOK, Response{Success: true, Message: "Ready"})
		return
	}

	details := h.storeHealth(ctx)
	if details["status"] != "healthy" {
		h.logger.Error(ctx, "store health check failed", logx.KV("error", details["error"]))
		// backend error text stays in the log
		delete(details, "error")
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: details, Message: MsgStoreUnavailable})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: details, Message: "Ready"})
}

// NoRoute 未匹配路由
func (h *Handler) NoRoute(c *gin.Context) {
	fail(c, http.StatusNotFound, MsgRouteNotFound)
}
