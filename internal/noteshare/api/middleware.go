package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	contextx "github.com/blueplan/noteshare-go/internal/noteshare/context"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
)

const headerRequestID = "X-Request-ID"

// CORSMiddleware CORS中间件
type CORSMiddleware struct {
	origins []string
}

// NewCORSMiddleware 创建CORS中间件
func NewCORSMiddleware(origins []string) *CORSMiddleware {
	return &CORSMiddleware{origins: origins}
}

// CORS CORS中间件
func (cm *CORSMiddleware) CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		switch {
		case cm.allowsAny():
			c.Header("Access-Control-Allow-Origin", "*")
		case cm.isOriginAllowed(origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", headerRequestID)
		c.Header("Access-Control-Max-Age", "86400")

		// 处理预检请求
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (cm *CORSMiddleware) allowsAny() bool {
	for _, o := range cm.origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// isOriginAllowed 检查origin是否允许，支持 "*.example.com" 与 "http://localhost:*" 形式
func (cm *CORSMiddleware) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range cm.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if strings.HasPrefix(allowed, "*") && strings.HasSuffix(origin, allowed[1:]) {
			return true
		}
		if strings.HasSuffix(allowed, "*") && strings.HasPrefix(origin, allowed[:len(allowed)-1]) {
			return true
		}
	}

	return false
}

// SecurityHeaders 安全头中间件
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// RequestID 为每个请求分配 ID 并写入 context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(contextx.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// LogRequest 请求日志中间件
func LogRequest(logger *logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []logx.Field{
			logx.KV("method", c.Request.Method),
			logx.KV("path", c.FullPath()),
			logx.KV("status", status),
			logx.KV("latency", time.Since(start)),
			logx.KV("client_ip", c.ClientIP()),
			logx.KV("body_size", c.Writer.Size()),
		}
		if c.FullPath() == "" {
			fields[1] = logx.KV("path", c.Request.URL.Path)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.KV("error", c.Errors.String()))
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error(ctx, "http request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn(ctx, "http request", fields...)
		default:
			logger.Info(ctx, "http request", fields...)
		}
	}
}

// Recovery 恢复中间件
func Recovery(logger *logx.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error(c.Request.Context(), "panic in handler",
			logx.KV("error", recovered),
			logx.KV("method", c.Request.Method),
			logx.KV("path", c.Request.URL.Path))
		fail(c, http.StatusInternalServerError, MsgInternal)
	})
}

// LimitRequestSize 限制请求体大小
func LimitRequestSize(maxSize int64, logger *logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			logger.Warn(c.Request.Context(), "request body too large",
				logx.KV("content_length", c.Request.ContentLength),
				logx.KV("max_size", maxSize))
			fail(c, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
