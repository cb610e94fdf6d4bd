package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mkhall/go-hazard-alerts/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			x_position REAL NOT NULL,
			y_position REAL NOT NULL,
			icon TEXT NOT NULL DEFAULT '',
			alternative_route TEXT NOT NULL DEFAULT '',
			alternative_routes TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (created_by) REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_created_by ON alerts(created_by);
		CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(is_active, expires_at);
		CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// --- users ---

func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("error inserting user: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (s *SQLiteDB) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %w", err)
	}
	return &u, nil
}

// --- alerts ---

const alertColumns = `id, title, description, category, severity, x_position, y_position,
	icon, alternative_route, alternative_routes, created_by, created_at, expires_at, is_active`

func (s *SQLiteDB) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.IsActive = true

	var expiresAt any
	if a.ExpiresAt != nil {
		expiresAt = a.ExpiresAt.UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Description, a.Category, a.Severity, a.XPosition, a.YPosition,
		a.Icon, a.AlternativeRoute, a.AlternativeRoutes, a.CreatedBy, a.CreatedAt, expiresAt, a.IsActive,
	)
	if err != nil {
		return fmt.Errorf("error inserting alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying alert: %w", err)
	}
	return a, nil
}

func (s *SQLiteDB) GetActiveAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE is_active = 1 AND (expires_at IS NULL OR expires_at >= ?)
		 ORDER BY created_at DESC`,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying active alerts: %w", err)
	}
	return collectAlerts(rows)
}

func (s *SQLiteDB) GetAlertsByUser(ctx context.Context, userID string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE created_by = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts by user: %w", err)
	}
	return collectAlerts(rows)
}

func (s *SQLiteDB) UpdateAlert(ctx context.Context, id string, fields UpdateAlertFields) (*models.Alert, error) {
	var set []string
	var args []any

	if fields.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *fields.Title)
	}
	if fields.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *fields.Description)
	}
	if fields.Severity != nil {
		set = append(set, "severity = ?")
		args = append(args, *fields.Severity)
	}
	if fields.Icon != nil {
		set = append(set, "icon = ?")
		args = append(args, *fields.Icon)
	}
	if fields.AlternativeRoute != nil {
		set = append(set, "alternative_route = ?")
		args = append(args, *fields.AlternativeRoute)
	}
	if fields.AlternativeRoutes != nil {
		set = append(set, "alternative_routes = ?")
		args = append(args, *fields.AlternativeRoutes)
	}

	if len(set) > 0 {
		args = append(args, id)
		res, err := s.db.ExecContext(ctx,
			`UPDATE alerts SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...,
		)
		if err != nil {
			return nil, fmt.Errorf("error updating alert: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, ErrNotFound
		}
	}

	return s.GetAlert(ctx, id)
}

func (s *SQLiteDB) DeleteAlert(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alerts SET is_active = 0 WHERE id = ? AND is_active = 1`, id,
	)
	if err != nil {
		return false, fmt.Errorf("error deactivating alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) ListExpiredActive(ctx context.Context, now time.Time) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts
		 WHERE is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY created_at DESC`,
		now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("error querying expired alerts: %w", err)
	}
	return collectAlerts(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var expiresAt sql.NullTime
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.Category, &a.Severity,
		&a.XPosition, &a.YPosition, &a.Icon, &a.AlternativeRoute, &a.AlternativeRoutes,
		&a.CreatedBy, &a.CreatedAt, &expiresAt, &a.IsActive,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}

	// The route blob is denormalized client-drawn data; a bad row must never
	// take down a read, so it degrades to "no routes".
	if a.AlternativeRoutes != "" {
		if _, err := models.DecodeRoutes(a.AlternativeRoutes); err != nil {
			slog.Warn("dropping malformed route blob", "alert", a.ID, "error", err)
			a.AlternativeRoutes = ""
		}
	}
	return &a, nil
}

func collectAlerts(rows *sql.Rows) ([]models.Alert, error) {
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// --- sessions ---

func (s *SQLiteDB) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error inserting session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, created_at, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying session: %w", err)
	}
	return &sess, nil
}

func (s *SQLiteDB) TouchSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET expires_at = ? WHERE token = ?`, expiresAt.UTC(), token,
	)
	if err != nil {
		return fmt.Errorf("error touching session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("error deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}
