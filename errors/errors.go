/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when a database, container or item does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrConflict is returned when creating an item whose key is already taken
	ErrConflict = errors.New("resource already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConditionFailed is returned when a conditional write fails
	ErrConditionFailed = errors.New("condition check failed")

	// ErrMalformedDocument is returned when a stored document cannot be decoded
	ErrMalformedDocument = errors.New("malformed document")

	// ErrNotInitialized is returned when a repository is used before Initialize
	ErrNotInitialized = errors.New("repository not initialized")

	// ErrNoKeyMap is returned when no key templates are registered for a type
	ErrNoKeyMap = errors.New("no key map found for type")

	// ErrStore is matched by every StoreError
	ErrStore = errors.New("document store failure")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError represents an error when a resource already exists
type ConflictError struct {
	Type string
	Key  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConditionFailedError represents a failed conditional operation
type ConditionFailedError struct {
	Operation string
	Condition string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("condition check failed for %s operation: %s", e.Operation, e.Condition)
}

func (e *ConditionFailedError) Is(target error) bool {
	return target == ErrConditionFailed
}

// DecodeError reports a stored document that could not be converted to the
// repository's entity type.
type DecodeError struct {
	Type string
	Key  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s with key %q: %v", e.Type, e.Key, e.Err)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrMalformedDocument
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Kind classifies infrastructure failures so callers can react differently
// to throttling, outages and credential problems.
type Kind int

const (
	KindUnknown Kind = iota
	KindThrottled
	KindUnavailable
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindUnavailable:
		return "unavailable"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// StoreError wraps a backend failure that is neither a not-found, conflict
// nor precondition signal.
type StoreError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resourceType, key string) error {
	return &NotFoundError{Type: resourceType, Key: key}
}

// NewConflictError creates a new ConflictError
func NewConflictError(resourceType, key string) error {
	return &ConflictError{Type: resourceType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConditionFailedError creates a new ConditionFailedError
func NewConditionFailedError(operation, condition string) error {
	return &ConditionFailedError{Operation: operation, Condition: condition}
}

// NewDecodeError creates a new DecodeError
func NewDecodeError(entityType, key string, err error) error {
	return &DecodeError{Type: entityType, Key: key, Err: err}
}

// NewStoreError creates a new StoreError
func NewStoreError(op string, kind Kind, err error) error {
	return &StoreError{Op: op, Kind: kind, Err: err}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConditionFailed checks if an error is a condition failed error
func IsConditionFailed(err error) bool {
	return errors.Is(err, ErrConditionFailed)
}

// IsMalformedDocument checks if an error is a decode error
func IsMalformedDocument(err error) bool {
	return errors.Is(err, ErrMalformedDocument)
}

// KindOf returns the infrastructure classification of err, or KindUnknown
// when err is not a StoreError.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
