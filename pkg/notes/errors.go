package notes

import (
	"errors"
	"fmt"
)

// Sentinels for the error taxonomy. Every typed error below matches exactly
// one of them through errors.Is.
var (
	ErrAuthentication = errors.New("authentication failed")
	ErrAccessDenied   = errors.New("access denied")
	ErrNotFound       = errors.New("not found")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrPersistence    = errors.New("persistence failure")
	ErrPublish        = errors.New("publish failure")
	ErrValidation     = errors.New("validation failed")
)

type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	if e.Reason == "" {
		return ErrAuthentication.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Reason)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

type AccessDeniedError struct {
	Entity string
	ID     string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access to %s '%s' is denied", e.Entity, e.ID)
}

func (e *AccessDeniedError) Is(target error) bool { return target == ErrAccessDenied }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID '%s' not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type LimitExceededError struct {
	Entity string
	Limit  int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit of %d exceeded", e.Entity, e.Limit)
}

func (e *LimitExceededError) Is(target error) bool { return target == ErrLimitExceeded }

// PersistenceError reports a failed document store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error        { return e.Err }
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// PublishError reports a lifecycle event that could not be announced. When
// returned from a mutation the store change has already been committed.
type PublishError struct {
	Topic    string
	EntityID string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s: event %s for %s was not published: %v", ErrPublish, e.Topic, e.EntityID, e.Err)
}

func (e *PublishError) Unwrap() error        { return e.Err }
func (e *PublishError) Is(target error) bool { return target == ErrPublish }

type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Err)
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
