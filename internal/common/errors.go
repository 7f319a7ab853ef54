// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Capability errors. Fatal to the triggering call: the renderer or a
	// backing store could not be acquired at all.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// Session-flow results. Not authenticated is an expected transient
	// state while the user has not yet scanned the QR code.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrProbeTimeout     = errors.New("probe timeout")

	// Upload-flow errors.
	ErrLocalFileMissing         = errors.New("local file not found")
	ErrRemoteCollision          = errors.New("remote path already occupied")
	ErrUploadVerificationFailed = errors.New("upload verification failed")
	ErrRetriesExhausted         = errors.New("retries exhausted")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)
