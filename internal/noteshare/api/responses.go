package api

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	MsgInternal      = "Internal server error"
	MsgNoteNotFound  = "Note not found"
	MsgWrongPassword = "Incorrect password"
	MsgRouteNotFound = "Route not found"
	MsgInvalidJSON   = "Invalid JSON body"
	MsgBodyTooLarge  = "Request body too large"
	MsgServerRunning = "Server is running"

	MsgStoreUnavailable = "Store unavailable"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

type createNoteRequest struct {
	NoteText string `json:"noteText"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type createNoteResponse struct {
	ID       string `json:"id"`
	NoteURL  string `json:"noteUrl"`
	Password string `json:"password"`
}

type unlockResponse struct {
	NoteText  string    `json:"noteText"`
	CreatedAt time.Time `json:"createdAt"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// streamFrame is one websocket message of the streaming summary.
type streamFrame struct {
	Type    string `json:"type"`
	Data    string `json:"data,omitempty"`
	Summary string `json:"summary,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message})
}
