package mock

import (
	"context"
	"sync"

	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
)

// Mock 可编程的摘要器，记录收到的文本
type Mock struct {
	Summary string
	Chunks  []string
	Err     error

	mu    sync.Mutex
	calls []string
}

func New(summary string) *Mock { return &Mock{Summary: summary} }

// Failing returns a Mock whose every call fails with the given kind.
func Failing(kind llm.FailureKind) *Mock {
	return &Mock{Err: &llm.Error{Kind: kind, Message: "mock failure"}}
}

func (m *Mock) Summarize(ctx context.Context, text string) (string, error) {
	m.record(text)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Summary, nil
}

func (m *Mock) SummarizeStream(ctx context.Context, text string, onChunk llm.StreamChunkHandler) error {
	m.record(text)
	if m.Err != nil {
		return m.Err
	}
	chunks := m.Chunks
	if len(chunks) == 0 && m.Summary != "" {
		chunks = []string{m.Summary}
	}
	for _, c := range chunks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := onChunk(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns the texts received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *Mock) record(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, text)
}
