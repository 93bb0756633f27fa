// Package secrets generates note passwords and hashes them for storage.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// DefaultSecretBytes yields a 12 character password.
	DefaultSecretBytes = 9
	MinSecretBytes     = 9
	// MaxSecretBytes keeps the encoded password within bcrypt's 72 byte input limit.
	MaxSecretBytes = 54
)

// Generator 生成一次性展示的随机密码
type Generator struct {
	size int
	rand io.Reader
}

// NewGenerator 创建生成器，size 会被限制在 [MinSecretBytes, MaxSecretBytes]
func NewGenerator(size int) *Generator {
	if size < MinSecretBytes {
		size = MinSecretBytes
	}
	if size > MaxSecretBytes {
		size = MaxSecretBytes
	}
	return &Generator{size: size, rand: rand.Reader}
}

// Size returns the number of random bytes behind each secret.
func (g *Generator) Size() int { return g.size }

// EncodedLen returns the length of every generated secret.
func (g *Generator) EncodedLen() int { return base64.RawURLEncoding.EncodedLen(g.size) }

// Generate returns an unpadded base64url string over fresh random bytes.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, g.size)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
