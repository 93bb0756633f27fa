package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	contextx "github.com/blueplan/noteshare-go/internal/noteshare/context"
	"github.com/rs/zerolog"
)

// Logger 日志记录器，底层使用 zerolog
type Logger struct {
	zl      zerolog.Logger
	mu      sync.RWMutex
	closers []io.Closer
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "text" or "json"
	File   string `json:"file"`
}

// Field 日志键值对
type Field struct {
	Key   string
	Value interface{}
}

// KV 创建键值对
func KV(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NewLogger 创建输出到标准输出的日志记录器
func NewLogger(level string) (*Logger, error) {
	return NewWithConfig(&LogConfig{Level: level, Format: "json"})
}

// NewWithConfig 根据配置创建日志记录器
func NewWithConfig(cfg *LogConfig) (*Logger, error) {
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var stdout io.Writer = os.Stdout
	if cfg.Format == "text" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: true, TimeFormat: "2006-01-02 15:04:05"}
	}

	l := &Logger{}
	writers := []io.Writer{stdout}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		rw := newDateRotateWriter(cfg.File)
		writers = append(writers, rw)
		l.closers = append(l.closers, rw)
	}

	l.zl = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return l, nil
}

// New 创建写入指定 writer 的 JSON 日志记录器
func New(w io.Writer, level string) *Logger {
	lvl, err := parseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &Logger{zl: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

// NewNop 丢弃所有输出
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func parseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// Info 记录信息日志
func (l *Logger) Info(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zerolog.InfoLevel, message, fields...)
}

// Error 记录错误日志
func (l *Logger) Error(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zerolog.ErrorLevel, message, fields...)
}

// Warn 记录警告日志
func (l *Logger) Warn(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zerolog.WarnLevel, message, fields...)
}

// Debug 记录调试日志
func (l *Logger) Debug(ctx context.Context, message string, fields ...Field) {
	l.log(ctx, zerolog.DebugLevel, message, fields...)
}

func (l *Logger) log(ctx context.Context, level zerolog.Level, message string, fields ...Field) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ev := l.zl.WithLevel(level)
	if ev == nil {
		return
	}

	if rid, ok := contextx.GetRequestID(ctx); ok {
		ev = ev.Str("request_id", rid)
	}
	if nid, ok := contextx.GetNoteID(ctx); ok {
		ev = ev.Str("note_id", nid)
	}

	for _, f := range fields {
		switch v := f.Value.(type) {
		case nil:
			ev = ev.Interface(f.Key, nil)
		case error:
			ev = ev.Str(f.Key, v.Error())
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		case time.Time:
			ev = ev.Time(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(message)
}

// Writer 暴露底层 writer，供 gin 等第三方库复用；每次写入记为一条无级别日志
func (l *Logger) Writer() io.Writer {
	return l.zl
}

// Close 关闭文件输出
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var lastErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			lastErr = err
		}
	}
	l.closers = nil
	return lastErr
}

// dateRotateWriter 日期轮转写入器，文件名形如 <filename>.2006-01-02
type dateRotateWriter struct {
	filename string
	file     *os.File
	lastDate string
	now      func() time.Time
	mu       sync.Mutex
}

func newDateRotateWriter(filename string) *dateRotateWriter {
	return &dateRotateWriter{
		filename: filename,
		now:      time.Now,
	}
}

// Write 实现io.Writer接口
func (drw *dateRotateWriter) Write(p []byte) (n int, err error) {
	drw.mu.Lock()
	defer drw.mu.Unlock()

	currentDate := drw.now().Format("2006-01-02")
	if drw.lastDate != currentDate || drw.file == nil {
		if drw.file != nil {
			_ = drw.file.Close()
		}

		newFilename := fmt.Sprintf("%s.%s", drw.filename, currentDate)
		drw.file, err = os.OpenFile(newFilename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			drw.file = nil
			return 0, err
		}
		drw.lastDate = currentDate
	}

	return drw.file.Write(p)
}

// Close 关闭写入器
func (drw *dateRotateWriter) Close() error {
	drw.mu.Lock()
	defer drw.mu.Unlock()

	if drw.file != nil {
		err := drw.file.Close()
		drw.file = nil
		return err
	}
	return nil
}
