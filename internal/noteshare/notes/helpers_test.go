package notes

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var errBroken = errors.New("disk on fire")

type brokenStore struct{}

func (brokenStore) Create(context.Context, *Note) (string, error) { return "", errBroken }
func (brokenStore) FindByID(context.Context, string) (*Note, error) { return nil, errBroken }
func (brokenStore) Ping(context.Context) error { return errBroken }
func (brokenStore) Close() error { return nil }

type fixedGenerator struct {
	secret string
	err    error
}

func (g fixedGenerator) Generate() (string, error) { return g.secret, g.err }
