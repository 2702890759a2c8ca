package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/resource-api/internal/schema"
)

// SessionsDDL creates the session audit table.  Tokens grow with the
// name and login claims, so rows are looked up by token_hash, the sha256
// of the token.
const SessionsDDL = `CREATE TABLE IF NOT EXISTS sessions (
  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
  status VARCHAR(16) NOT NULL DEFAULT 'active',
  user_id BIGINT UNSIGNED NOT NULL,
  user_name VARCHAR(255) NOT NULL,
  token TEXT NOT NULL,
  token_hash CHAR(64) NOT NULL,
  session_id CHAR(36) NOT NULL,
  issued_at DATETIME NOT NULL,
  expires_at DATETIME NOT NULL,
  last_check_at DATETIME NULL,
  logout_at DATETIME NULL,
  ip VARCHAR(64) NOT NULL DEFAULT '',
  user_agent VARCHAR(512) NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
  PRIMARY KEY (id),
  UNIQUE KEY uq_sessions_token_hash (token_hash),
  KEY idx_sessions_user (user_id, issued_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates any missing table for the given schemas and the session
// table.  Existing tables are left untouched.
func Migrate(ctx context.Context, db *sql.DB, schemas ...*schema.Schema) error {
	for _, s := range schemas {
		if _, err := db.ExecContext(ctx, s.CreateTableSQL()); err != nil {
			return fmt.Errorf("migrate %s: %w", s.Table(), err)
		}
	}
	if _, err := db.ExecContext(ctx, SessionsDDL); err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	return nil
}
