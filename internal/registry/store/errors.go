package store

import (
	"errors"
	"fmt"
)

// NotFoundError indicates the resource was not found.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Resource, e.ID)
}

// ValidationError indicates a client-side validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// ConflictError indicates a uniqueness/conflict violation.
type ConflictError struct {
	Message string
	Code    string
	Details map[string]interface{}
}

func (e *ConflictError) Error() string {
	return e.Message
}

// ForbiddenError indicates insufficient access.
type ForbiddenError struct{}

func (e *ForbiddenError) Error() string {
	return "forbidden"
}

const (
	ConflictCodeHandleTaken    = "handle_taken"
	ConflictCodeAlreadyReplied = "already_replied"
	ConflictCodeDuplicateNo    = "duplicate_message_no"
)

// IsDomainError reports whether err is a client-visible domain-state failure.
func IsDomainError(err error) bool {
	var nf *NotFoundError
	var ve *ValidationError
	var ce *ConflictError
	return errors.As(err, &nf) || errors.As(err, &ve) || errors.As(err, &ce)
}
