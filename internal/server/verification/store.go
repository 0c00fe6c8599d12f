// Package verification keeps short-lived email verification codes in redis.
package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/cache"
)

const (
	codeNamespace     = "verify:code"
	attemptsNamespace = "verify:attempts"
	codeDigits        = 6
	maxAttempts       = 5
)

var (
	ErrCodeMismatch    = errors.New("verification code does not match")
	ErrCodeExpired     = errors.New("verification code expired or never issued")
	ErrTooManyAttempts = errors.New("too many verification attempts")
)

// Store issues and checks one code per user. Issuing a new code replaces
// the previous one and resets the attempt counter.
type Store struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewStore(c *cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

func (s *Store) Issue(ctx context.Context, userID string) (string, error) {
	code, err := common.MakeNumericCode(codeDigits)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, codeNamespace, userID, code, s.ttl); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	if err := s.cache.Delete(ctx, attemptsNamespace, userID); err != nil {
		return "", fmt.Errorf("reset attempts: %w", err)
	}
	return code, nil
}

// Consume checks code and deletes it on success.
func (s *Store) Consume(ctx context.Context, userID, code string) error {
	attempts, err := s.cache.IncrWithExpire(ctx, attemptsNamespace, userID, s.ttl)
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	if attempts > maxAttempts {
		return ErrTooManyAttempts
	}

	stored, err := s.cache.Get(ctx, codeNamespace, userID)
	if errors.Is(err, cache.ErrMiss) {
		return ErrCodeExpired
	}
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrCodeMismatch
	}

	if err := s.cache.Delete(ctx, codeNamespace, userID); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return s.cache.Delete(ctx, attemptsNamespace, userID)
}
