// Package repository holds the MySQL data access code.  Failures that
// callers need to tell apart are reported through the sentinel values and
// types below; everything else is a raw driver error.
package repository

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/resource-api/internal/schema"
)

// ErrNotFound is returned when no row matches the given id or key.
var ErrNotFound = errors.New("not found")

// ErrSessionNotActive is returned by the conditional session updates when
// the token has no active row, either because it was never issued or
// because it was already logged off.
var ErrSessionNotActive = errors.New("session not active")

// DuplicateError reports a unique index violation.  Fields names the
// schema fields whose index was hit, when it can be resolved.
type DuplicateError struct {
	Fields []string
	Err    error
}

func (e *DuplicateError) Error() string {
	if len(e.Fields) == 0 {
		return "duplicate entry"
	}
	return "duplicate entry for " + strings.Join(e.Fields, ", ")
}

func (e *DuplicateError) Unwrap() error { return e.Err }

const errDupEntry = 1062

var dupKeyRe = regexp.MustCompile(`for key '([^']+)'`)

// translate maps MySQL duplicate-key errors onto DuplicateError.
func translate(s *schema.Schema, err error) error {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errDupEntry {
		return err
	}
	dup := &DuplicateError{Err: err}
	if m := dupKeyRe.FindStringSubmatch(me.Message); m != nil && s != nil {
		if f, ok := s.FieldForIndex(m[1]); ok {
			dup.Fields = []string{f}
		}
	}
	return dup
}
