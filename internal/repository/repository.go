package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mkhall/go-hazard-alerts/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// UpdateAlertFields carries a partial update; nil fields are left untouched.
// Ownership is the API layer's responsibility, not the store's.
type UpdateAlertFields struct {
	Title             *string
	Description       *string
	Severity          *models.Severity
	Icon              *string
	AlternativeRoute  *string
	AlternativeRoutes *string
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type AlertRepository interface {
	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	// GetActiveAlerts returns live alerts only (active and not expired),
	// newest first.
	GetActiveAlerts(ctx context.Context) ([]models.Alert, error)
	// GetAlertsByUser is the owner's management view: includes inactive and
	// expired records, newest first.
	GetAlertsByUser(ctx context.Context, userID string) ([]models.Alert, error)
	UpdateAlert(ctx context.Context, id string, fields UpdateAlertFields) (*models.Alert, error)
	// DeleteAlert soft-deletes. Returns true when an active record was
	// deactivated; false when the id is unknown or already inactive.
	DeleteAlert(ctx context.Context, id string) (bool, error)
	// ListExpiredActive returns active alerts whose expiry has passed,
	// for background cleanup.
	ListExpiredActive(ctx context.Context, now time.Time) ([]models.Alert, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)
	// TouchSession pushes the rolling expiry forward.
	TouchSession(ctx context.Context, token string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}
