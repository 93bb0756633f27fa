package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost matches ten bcrypt rounds.
const DefaultCost = 10

// ErrMalformedHash 存储的哈希无法解析
var ErrMalformedHash = errors.New("malformed password hash")

// Hasher 单向哈希与校验
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(candidate, hash string) (bool, error)
}

// BcryptHasher bcrypt 实现，每次调用使用随机盐
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher 创建哈希器，cost 超出 bcrypt 范围时回落到默认值
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns the bcrypt digest of secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(b), nil
}

// Verify reports whether candidate matches hash. A mismatch is not an error;
// only an unparseable hash is.
func (h *BcryptHasher) Verify(candidate, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}
