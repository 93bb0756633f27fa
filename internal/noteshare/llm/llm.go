package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SystemInstruction is sent with every summarization request.
const SystemInstruction = "Strictly summarize the note into 3-5 short bullet points. " +
	"Use short fragments, NOT full sentences. Strictly ONLY bullet points. " +
	"Each bullet point should make sense on its own and be relevant to the note."

// FailureKind 摘要失败类型，由调用方映射为对外错误
type FailureKind string

const (
	FailureGeneric       FailureKind = "generic"
	FailureAuth          FailureKind = "auth"
	FailureRateLimited   FailureKind = "rate_limited"
	FailureEmptyResult   FailureKind = "empty_result"
	FailureNotConfigured FailureKind = "not_configured"
)

// Error 适配器错误
type Error struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm %s (status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("llm %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf 提取错误类型；非适配器错误一律视为 generic
func KindOf(err error) FailureKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return FailureGeneric
}

// ClassifyMessage is the last-resort classifier for providers that give no
// structured signal.
func ClassifyMessage(msg string) FailureKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "api key"), strings.Contains(lower, "api_key"):
		return FailureAuth
	case strings.Contains(lower, "quota"), strings.Contains(lower, "rate limit"):
		return FailureRateLimited
	default:
		return FailureGeneric
	}
}

type StreamChunkHandler func(ctx context.Context, chunk string) error

// Summarizer 文本摘要能力；实现内部不做重试
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// StreamSummarizer 可选能力：按片段输出摘要
type StreamSummarizer interface {
	Summarizer
	SummarizeStream(ctx context.Context, text string, onChunk StreamChunkHandler) error
}

// SummarizerFunc adapts a plain function to Summarizer.
type SummarizerFunc func(ctx context.Context, text string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// BuildPrompt wraps the note body for the model.
func BuildPrompt(text string) string {
	return "Note content:\n" + text
}

type disabled struct {
	reason string
}

// NewDisabled returns a Summarizer that always fails with FailureNotConfigured.
func NewDisabled(reason string) Summarizer {
	return &disabled{reason: reason}
}

func (d *disabled) Summarize(ctx context.Context, text string) (string, error) {
	return "", &Error{Kind: FailureNotConfigured, Message: d.reason}
}
