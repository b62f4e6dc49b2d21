// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow handlers to translate data
// layer failures into HTTP status codes with errors.Is.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/triagify/triagify-backend/internal/model"
)

// ErrNotFound is the parent of every "entity absent" error. Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a unique key already exists or the entity's
// current state does not allow the operation. Handlers translate it into
// an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they may see but not change.
var ErrForbidden = errors.New("forbidden")

var (
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrScreeningNotFound   = fmt.Errorf("screening %w", ErrNotFound)
	ErrQuestionNotFound    = fmt.Errorf("question %w", ErrNotFound)
	ErrAssociationNotFound = fmt.Errorf("association %w", ErrNotFound)

	ErrEmailExists       = fmt.Errorf("%w: email already exists", ErrConflict)
	ErrQuestionExists    = fmt.Errorf("%w: question text already exists", ErrConflict)
	ErrAssociationExists = fmt.Errorf("%w: association already exists", ErrConflict)
	ErrEmailNotAdmin     = fmt.Errorf("%w: email belongs to a non-admin user", ErrConflict)

	// ErrUnknownQuestion means a submitted answer references a question id
	// that does not exist.
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrDuplicateAnswer means the same question was answered twice in one submission.
	ErrDuplicateAnswer = errors.New("duplicate question in answers")
	// ErrInvalidResetToken covers unknown, expired and already used reset tokens.
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	// ErrInvalidRefreshToken covers unknown, expired and revoked refresh tokens.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ErrInvalidTransition is re-exported so handlers need not import model for it.
var ErrInvalidTransition = model.ErrInvalidTransition

const (
	mysqlDuplicateEntry = 1062
	mysqlNoReferenced   = 1452
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool  { return mysqlErrno(err) == mysqlDuplicateEntry }
func isForeignKey(err error) bool { return mysqlErrno(err) == mysqlNoReferenced }

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
