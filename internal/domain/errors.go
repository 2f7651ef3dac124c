package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateApplication = errors.New("duplicate application")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrAlreadyActive        = errors.New("a program is already active")
	ErrProgramNotActive     = errors.New("program is not active")
	ErrStore                = errors.New("store failure")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrUserExists           = errors.New("user already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfirmationRequired = errors.New("confirmation required")
)

// Error pairs an error kind with the message shown to the user.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NewError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StoreError wraps a storage failure so both ErrStore and the driver error
// stay reachable through errors.Is.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// CascadeError reports the siblings a cascade could not update. The rest of
// the cascade has been applied when it is returned.
type CascadeError struct {
	Op     string
	Failed []int64
	Err    error
}

func (e *CascadeError) Error() string {
	ids := make([]int64, len(e.Failed))
	copy(ids, e.Failed)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s partially applied, failed applications [%s]: %v", e.Op, strings.Join(parts, ", "), e.Err)
}

func (e *CascadeError) Unwrap() error {
	return e.Err
}
