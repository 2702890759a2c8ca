package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resource-api/internal/model"
	"github.com/iliyamo/resource-api/internal/utils"
)

var sessionRowCols = []string{"id", "status", "user_id", "user_name", "token", "session_id", "issued_at",
	"expires_at", "last_check_at", "logout_at", "ip", "user_agent", "created_at", "updated_at"}

func TestSessionRepoCreateAndGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("active", uint64(7), "John", "tok", utils.HashToken("tok"), "jti-1", now, now.Add(time.Hour), "10.0.0.1", "curl").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE token_hash = ? LIMIT 1")).WithArgs(utils.HashToken("tok")).
		WillReturnRows(sqlmock.NewRows(sessionRowCols).AddRow(
			5, "active", 7, "John", "tok", "jti-1", now, now.Add(time.Hour), now, nil, "10.0.0.1", "curl", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE token_hash = ? LIMIT 1")).WithArgs(utils.HashToken("missing")).
		WillReturnRows(sqlmock.NewRows(sessionRowCols))

	s := &model.Session{UserID: 7, UserName: "John", Token: "tok", SessionID: "jti-1",
		IssuedAt: now, ExpiresAt: now.Add(time.Hour), IP: "10.0.0.1", UserAgent: "curl"}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, uint64(5), s.ID)
	assert.Equal(t, model.SessionActive, s.Status)

	got, err := repo.GetByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.UserID)
	require.NotNil(t, got.LastCheckAt)
	assert.Equal(t, now, *got.LastCheckAt)
	assert.Nil(t, got.LogoutAt)

	_, err = repo.GetByToken(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepoLongToken(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	name := strings.Repeat("n", 255)
	tok, err := utils.NewSessionToken("secret", 7, strings.Repeat("l", 255), name, "admin", time.Hour, now)
	require.NoError(t, err)
	require.Greater(t, len(tok.Token), 512)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("active", uint64(7), name, tok.Token, utils.HashToken(tok.Token), tok.SessionID,
			tok.IssuedAt, tok.ExpiresAt, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET last_check_at = ? WHERE token_hash = ? AND status = ?")).
		WithArgs(now, utils.HashToken(tok.Token), "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &model.Session{UserID: 7, UserName: name, Token: tok.Token, SessionID: tok.SessionID,
		IssuedAt: tok.IssuedAt, ExpiresAt: tok.ExpiresAt}
	require.NoError(t, repo.Create(context.Background(), s))
	require.NoError(t, repo.Touch(context.Background(), tok.Token, now))
	assert.Len(t, utils.HashToken(tok.Token), 64)
}

func TestSessionRepoConditionalUpdates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	now := time.Now().UTC()
	touch := regexp.QuoteMeta("UPDATE sessions SET last_check_at = ? WHERE token_hash = ? AND status = ?")
	deact := regexp.QuoteMeta("UPDATE sessions SET status = ?, logout_at = ? WHERE token_hash = ? AND status = ?")
	hash := utils.HashToken("tok")

	mock.ExpectExec(touch).WithArgs(now, hash, "active").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deact).WithArgs("inactive", now, hash, "active").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deact).WithArgs("inactive", now, hash, "active").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(touch).WithArgs(now, hash, "active").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, repo.Touch(ctx, "tok", now))
	require.NoError(t, repo.Deactivate(ctx, "tok", now))
	assert.ErrorIs(t, repo.Deactivate(ctx, "tok", now), ErrSessionNotActive)
	assert.ErrorIs(t, repo.Touch(ctx, "tok", now), ErrSessionNotActive)
}

func TestSessionRepoListByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db)
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = ? ORDER BY issued_at DESC, id DESC LIMIT ?")).
		WithArgs(uint64(7), 50).
		WillReturnRows(sqlmock.NewRows(sessionRowCols).
			AddRow(2, "active", 7, "John", "t2", "j2", now, now.Add(time.Hour), nil, nil, "ip", "ua", now, now).
			AddRow(1, "inactive", 7, "John", "t1", "j1", now, now.Add(time.Hour), nil, now, "ip", "ua", now, now))

	list, err := repo.ListByUser(context.Background(), 7, 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].ID)
	assert.Equal(t, model.SessionInactive, list[1].Status)
	require.NotNil(t, list[1].LogoutAt)
}
