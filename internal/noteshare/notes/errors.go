package notes

import (
	"errors"
	"fmt"

	"github.com/blueplan/noteshare-go/internal/noteshare/llm"
)

// Kind 错误分类，由 API 层统一映射为 HTTP 状态码
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAuthentication Kind = "authentication"
	KindStorage        Kind = "storage"
	KindSummarization  Kind = "summarization"
)

// Error is returned by every Service operation.
type Error struct {
	Kind Kind
	// Failure is set only for KindSummarization.
	Failure llm.FailureKind
	Op      string
	NoteID  string
	// Message is safe to show to clients for KindValidation.
	Message string
	Err     error
}

func (e *Error) Error() string {
	s := "notes: " + e.Op
	if e.NoteID != "" {
		s += " " + e.NoteID
	}
	s += ": " + string(e.Kind)
	if e.Failure != "" {
		s += "/" + string(e.Failure)
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, or KindStorage for foreign errors.
func KindOf(err error) Kind {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return KindStorage
}

// IsKind reports whether err is a notes error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ne *Error
	return errors.As(err, &ne) && ne.Kind == kind
}

func validationError(op, msg string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

func notFoundError(op, id string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, NoteID: id, Err: err}
}

func storageError(op, id string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, NoteID: id, Err: fmt.Errorf("storage: %w", err)}
}
