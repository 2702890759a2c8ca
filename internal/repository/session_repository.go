package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/utils"
)

// SessionRepo persists the audit trail of issued tokens.  Rows are only
// ever inserted and flipped from active to inactive, never deleted.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

const sessionCols = "id, status, user_id, user_name, token, session_id, issued_at, expires_at, last_check_at, logout_at, ip, user_agent, created_at, updated_at"

func scanSession(sc scanner) (*model.Session, error) {
	var (
		s         model.Session
		lastCheck sql.NullTime
		logout    sql.NullTime
	)
	err := sc.Scan(&s.ID, &s.Status, &s.UserID, &s.UserName, &s.Token, &s.SessionID,
		&s.IssuedAt, &s.ExpiresAt, &lastCheck, &logout, &s.IP, &s.UserAgent, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		s.LastCheckAt = &lastCheck.Time
	}
	if logout.Valid {
		s.LogoutAt = &logout.Time
	}
	return &s, nil
}

// Create inserts an active session and fills in ID.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	const q = `INSERT INTO sessions (status, user_id, user_name, token, token_hash, session_id, issued_at, expires_at, ip, user_agent)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.DB.ExecContext(ctx, q, model.SessionActive, s.UserID, s.UserName, s.Token, utils.HashToken(s.Token),
		s.SessionID, s.IssuedAt, s.ExpiresAt, s.IP, s.UserAgent)
	if err != nil {
		return translate(nil, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	s.Status = model.SessionActive
	return nil
}

// GetByToken returns the session row for a raw token, active or not.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	const q = "SELECT " + sessionCols + " FROM sessions WHERE token_hash = ? LIMIT 1"
	s, err := scanSession(r.DB.QueryRowContext(ctx, q, utils.HashToken(token)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// Touch records a successful check.  It only matches active rows so a
// concurrent logoff wins.
func (r *SessionRepo) Touch(ctx context.Context, token string, at time.Time) error {
	const q = "UPDATE sessions SET last_check_at = ? WHERE token_hash = ? AND status = ?"
	res, err := r.DB.ExecContext(ctx, q, at, utils.HashToken(token), model.SessionActive)
	if err != nil {
		return err
	}
	return requireRow(res, ErrSessionNotActive)
}

// Deactivate flips an active session to inactive exactly once.
func (r *SessionRepo) Deactivate(ctx context.Context, token string, at time.Time) error {
	const q = "UPDATE sessions SET status = ?, logout_at = ? WHERE token_hash = ? AND status = ?"
	res, err := r.DB.ExecContext(ctx, q, model.SessionInactive, at, utils.HashToken(token), model.SessionActive)
	if err != nil {
		return err
	}
	return requireRow(res, ErrSessionNotActive)
}

// ListByUser returns the newest sessions of a user first.
func (r *SessionRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]model.Session, error) {
	const q = "SELECT " + sessionCols + " FROM sessions WHERE user_id = ? ORDER BY issued_at DESC, id DESC LIMIT ?"
	rows, err := r.DB.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
