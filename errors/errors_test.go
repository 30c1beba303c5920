/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("item", "A.1")

	// Test error message
	expected := `item with key "A.1" not found`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	// Test Is method
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}

	// Test helper function
	if !IsNotFound(err) {
		t.Error("IsNotFound should return true for NotFoundError")
	}
}

func TestConflictError(t *testing.T) {
	err := NewConflictError("item", "Andersen.1")

	expected := `item with key "Andersen.1" already exists`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrConflict) {
		t.Error("ConflictError should match ErrConflict")
	}

	if !IsConflict(err) {
		t.Error("IsConflict should return true for ConflictError")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "with field",
			field:    "id",
			message:  "must not be empty",
			expected: `validation failed for field "id": must not be empty`,
		},
		{
			name:     "without field",
			field:    "",
			message:  "missing required fields",
			expected: "validation failed: missing required fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message)

			if err.Error() != tt.expected {
				t.Errorf("Expected error message %q, got %q", tt.expected, err.Error())
			}

			if !errors.Is(err, ErrInvalidInput) {
				t.Error("ValidationError should match ErrInvalidInput")
			}

			if !IsValidationError(err) {
				t.Error("IsValidationError should return true for ValidationError")
			}
		})
	}
}

func TestConditionFailedError(t *testing.T) {
	err := NewConditionFailedError("replace", `etag = "abc"`)

	expected := `condition check failed for replace operation: etag = "abc"`
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}

	if !errors.Is(err, ErrConditionFailed) {
		t.Error("ConditionFailedError should match ErrConditionFailed")
	}

	if !IsConditionFailed(err) {
		t.Error("IsConditionFailed should return true for ConditionFailedError")
	}
}

func TestDecodeError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := NewDecodeError("models.Family", "Wakefield.7", cause)

	if !IsMalformedDocument(err) {
		t.Error("DecodeError should match ErrMalformedDocument")
	}
	if !errors.Is(err, cause) {
		t.Error("DecodeError should unwrap to its cause")
	}
}

func TestStoreErrorKind(t *testing.T) {
	cause := errors.New("rate exceeded")
	err := fmt.Errorf("read item: %w", NewStoreError("ReadItem", KindThrottled, cause))

	if !errors.Is(err, ErrStore) {
		t.Error("wrapped StoreError should match ErrStore")
	}
	if !errors.Is(err, cause) {
		t.Error("StoreError should unwrap to its cause")
	}
	if KindOf(err) != KindThrottled {
		t.Errorf("Expected kind throttled, got %s", KindOf(err))
	}
	if KindOf(cause) != KindUnknown {
		t.Errorf("Expected unknown kind for plain error, got %s", KindOf(cause))
	}
	if IsNotFound(err) {
		t.Error("StoreError must not match ErrNotFound")
	}
}

func TestErrorWrapping(t *testing.T) {
	// Test that wrapped errors still match
	original := NewNotFoundError("item", "123")
	wrapped := fmt.Errorf("database operation failed: %w", original)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("Wrapped NotFoundError should still match ErrNotFound")
	}

	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should work with wrapped errors")
	}
}

func TestSentinelErrors(t *testing.T) {
	// Ensure sentinel errors are distinct
	sentinels := []error{
		ErrNotFound,
		ErrConflict,
		ErrInvalidInput,
		ErrConditionFailed,
		ErrMalformedDocument,
		ErrNotInitialized,
		ErrNoKeyMap,
		ErrStore,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v matches %v", err1, err2)
			}
		}
	}
}
