// Package errors provides unit tests for application error codes.
package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

// TestNewError tests creating an error without a cause.
func TestNewError(t *testing.T) {
	err := New(ErrSyncOffline, "cannot sync while offline")

	if err.Code != ErrSyncOffline {
		t.Errorf("Expected code %s, got %s", ErrSyncOffline, err.Code)
	}

	if !strings.Contains(err.Error(), "SYNC_OFFLINE") {
		t.Errorf("Expected code in message, got %q", err.Error())
	}
}

// TestWrapError tests wrapping an underlying cause.
func TestWrapError(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := Wrap(ErrNetwork, "replay request failed", cause)

	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Expected cause in message, got %q", err.Error())
	}

	if !stderrors.Is(err, cause) {
		t.Error("Expected errors.Is to match wrapped cause")
	}
}

// TestIsCode tests code matching.
func TestIsCode(t *testing.T) {
	err := New(ErrSyncAlreadyRunning, "sync already in progress")

	if !Is(err, ErrSyncAlreadyRunning) {
		t.Error("Expected Is to match code")
	}

	if Is(err, ErrSyncOffline) {
		t.Error("Expected Is to reject different code")
	}

	if Is(stderrors.New("plain"), ErrSyncOffline) {
		t.Error("Expected Is to reject non-AppError")
	}
}
