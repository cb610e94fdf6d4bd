package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
)

// ErrInvalidSession covers missing, unknown and expired session tokens alike.
var ErrInvalidSession = errors.New("invalid or expired session")

// SessionManager issues opaque tokens backed by the session store and applies
// the rolling expiry: every successful Resolve pushes the deadline forward by
// the full TTL.
type SessionManager struct {
	repo repository.SessionRepository
	ttl  time.Duration
}

func NewSessionManager(repo repository.SessionRepository, ttl time.Duration) *SessionManager {
	return &SessionManager{
		repo: repo,
		ttl:  ttl,
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func (m *SessionManager) Create(ctx context.Context, userID string) (*models.Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &models.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return sess, nil
}

func (m *SessionManager) Resolve(ctx context.Context, token string) (*models.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	sess, err := m.repo.GetSession(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("error resolving session: %w", err)
	}

	now := time.Now().UTC()
	if sess.ExpiresAt.Before(now) {
		// Lazy cleanup; the sweeper handles rows nobody presents again.
		_ = m.repo.DeleteSession(ctx, token)
		return nil, ErrInvalidSession
	}

	sess.ExpiresAt = now.Add(m.ttl)
	if err := m.repo.TouchSession(ctx, token, sess.ExpiresAt); err != nil {
		return nil, fmt.Errorf("error refreshing session: %w", err)
	}
	return sess, nil
}

func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.repo.DeleteSession(ctx, token)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error generating session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
