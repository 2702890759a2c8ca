package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/resource-api/internal/logging"
	"github.com/iliyamo/resource-api/internal/metrics"
	"github.com/iliyamo/resource-api/internal/repository"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/utils"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindDuplicate
	KindNotFound
	KindUnauthorized
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDuplicate:
		return "duplicate"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	}
	return "internal"
}

// Error is the only error type service operations return.  Message is safe
// to show to callers; Err is the cause and is never exposed.
type Error struct {
	Kind     Kind
	Message  string
	Fields   []string
	Problems []schema.Problem
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

func validationError(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// internalError logs a storage failure and hides it behind a generic
// message.
func internalError(ctx context.Context, op string, err error) *Error {
	reason := "storage_error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	return failed(ctx, op, reason, err)
}

func failed(ctx context.Context, op, reason string, err error) *Error {
	logging.FromContext(ctx).Error("operation_failed", "op", op, "reason", reason, "error", err)
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// hookError classifies a password hook failure.  Validation caps the
// length, so only a bypassed or changed schema reaches the first case.
func hookError(ctx context.Context, op string, err error) *Error {
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		msg := fmt.Sprintf("%s must be at most %d bytes", schema.PasswordField, utils.MaxPasswordBytes)
		return &Error{Kind: KindValidation, Message: msg, Fields: []string{schema.PasswordField}, Err: err}
	}
	return failed(ctx, op, "password_hash", err)
}

// translate maps repository and schema failures onto service kinds.
func translate(ctx context.Context, op string, err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	var (
		se  *Error
		ve  *schema.ValidationError
		dup *repository.DuplicateError
	)
	switch {
	case errors.As(err, &se):
		return se
	case errors.As(err, &ve):
		return &Error{Kind: KindValidation, Message: ve.Error(), Fields: ve.Fields(), Problems: ve.Problems, Err: err}
	case errors.As(err, &dup):
		msg := "duplicate value"
		if len(dup.Fields) > 0 {
			msg = "duplicate value for " + strings.Join(dup.Fields, ", ")
		}
		return &Error{Kind: KindDuplicate, Message: msg, Fields: dup.Fields, Err: err}
	case errors.Is(err, repository.ErrNotFound):
		return &Error{Kind: KindNotFound, Message: notFoundMsg, Err: err}
	}
	return internalError(ctx, op, err)
}

func resultOf(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	return KindOf(err).String()
}
