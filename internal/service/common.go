package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/olimpiada-registration-api/internal/repository"
	appErrors "github.com/noah-isme/olimpiada-registration-api/pkg/errors"
)

const msgMalformedID = "malformed identifier"

// txRunner runs fn inside one database transaction.
type txRunner interface {
	Run(ctx context.Context, fn func(exec sqlx.ExtContext) error) error
}

func conflict(msg string) error {
	return appErrors.Clone(appErrors.ErrConflict, msg)
}

func notFound(msg string) error {
	return appErrors.Clone(appErrors.ErrNotFound, msg)
}

func invalid(msg string) error {
	return appErrors.Clone(appErrors.ErrValidation, msg)
}

// lookupError maps sql.ErrNoRows to NotFound, ids Postgres cannot parse to
// Validation and anything else to Internal.
func lookupError(err error, notFoundMsg, internalMsg string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return notFound(notFoundMsg)
	case repository.IsMalformedInput(err):
		return malformedID(err)
	}
	return appErrors.Internal(err, internalMsg)
}

func malformedID(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msgMalformedID)
}

// passthrough keeps typed errors raised deeper in an orchestration and wraps
// anything else as Internal. A malformed id surfaces as Validation even when
// an inner step already wrapped it as Internal.
func passthrough(err error, internalMsg string) error {
	if repository.IsMalformedInput(err) {
		return malformedID(err)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Internal(err, internalMsg)
}

// validationError turns validator output into a Validation error naming the
// first offending field.
func validationError(err error, fallback string) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := fe.Namespace()
		if idx := strings.Index(field, "."); idx >= 0 {
			field = field[idx+1:]
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
			fmt.Sprintf("%s failed %q validation", field, fe.Tag()))
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fallback)
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
