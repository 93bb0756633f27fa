package notes

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound covers both unknown and expired notes.
var ErrNotFound = errors.New("note not found")

// Note 唯一持久化的实体，创建后不可修改
type Note struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store 笔记存储；FindByID 永远不返回已过期的记录
type Store interface {
	// Create persists note atomically and returns the id it assigned.
	Create(ctx context.Context, note *Note) (string, error)
	FindByID(ctx context.Context, id string) (*Note, error)
	Ping(ctx context.Context) error
	Close() error
}

// Purger is implemented by stores without native expiry.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Expired reports whether a note created at createdAt is past the retention window at now.
func Expired(createdAt, now time.Time, retention time.Duration) bool {
	return now.Sub(createdAt) > retention
}

// ShareURL is the client-side path that opens the note.
func ShareURL(id string) string {
	return "/note/" + id
}
