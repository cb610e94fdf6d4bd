package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkhall/go-hazard-alerts/internal/models"
	"github.com/mkhall/go-hazard-alerts/internal/repository"
)

// mockSessionRepo implements repository.SessionRepository for testing
type mockSessionRepo struct {
	sessions map[string]models.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: map[string]models.Session{}}
}

func (m *mockSessionRepo) CreateSession(ctx context.Context, s *models.Session) error {
	m.sessions[s.Token] = *s
	return nil
}

func (m *mockSessionRepo) GetSession(ctx context.Context, token string) (*models.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *mockSessionRepo) TouchSession(ctx context.Context, token string, expiresAt time.Time) error {
	s, ok := m.sessions[token]
	if !ok {
		return repository.ErrNotFound
	}
	s.ExpiresAt = expiresAt
	m.sessions[token] = s
	return nil
}

func (m *mockSessionRepo) DeleteSession(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

func (m *mockSessionRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for token, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func TestSessionManager_CreateAndResolve(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := NewSessionManager(repo, time.Hour)
	ctx := context.Background()

	sess, err := mgr.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(sess.Token))
	}

	got, err := mgr.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", got.UserID)
	}
}

func TestSessionManager_TokensAreUnique(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := NewSessionManager(repo, time.Hour)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		sess, err := mgr.Create(ctx, "user-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if seen[sess.Token] {
			t.Fatal("duplicate session token generated")
		}
		seen[sess.Token] = true
	}
}

func TestSessionManager_RollingExpiry(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := NewSessionManager(repo, time.Hour)
	ctx := context.Background()

	sess, err := mgr.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Age the stored session, then resolve and check the deadline moved.
	aged := repo.sessions[sess.Token]
	aged.ExpiresAt = time.Now().UTC().Add(5 * time.Minute)
	repo.sessions[sess.Token] = aged

	if _, err := mgr.Resolve(ctx, sess.Token); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	refreshed := repo.sessions[sess.Token]
	if refreshed.ExpiresAt.Before(time.Now().UTC().Add(50 * time.Minute)) {
		t.Errorf("expected rolling expiry to push deadline forward, got %v", refreshed.ExpiresAt)
	}
}

func TestSessionManager_ExpiredAndUnknown(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := NewSessionManager(repo, time.Hour)
	ctx := context.Background()

	if _, err := mgr.Resolve(ctx, "unknown"); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession for unknown token, got %v", err)
	}
	if _, err := mgr.Resolve(ctx, ""); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession for empty token, got %v", err)
	}

	sess, err := mgr.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	expired := repo.sessions[sess.Token]
	expired.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	repo.sessions[sess.Token] = expired

	if _, err := mgr.Resolve(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession for expired token, got %v", err)
	}
	if _, ok := repo.sessions[sess.Token]; ok {
		t.Error("expected expired session row to be cleaned up on resolve")
	}
}

func TestSessionManager_Destroy(t *testing.T) {
	repo := newMockSessionRepo()
	mgr := NewSessionManager(repo, time.Hour)
	ctx := context.Background()

	sess, err := mgr.Create(ctx, "user-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := mgr.Destroy(ctx, sess.Token); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := mgr.Resolve(ctx, sess.Token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected destroyed session to be invalid, got %v", err)
	}

	// Destroying with no token is a no-op.
	if err := mgr.Destroy(ctx, ""); err != nil {
		t.Errorf("Destroy with empty token errored: %v", err)
	}
}
