package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrSettingsIncomplete = errors.New("integrity service settings incomplete")
	ErrUnknownJobKind     = errors.New("unknown job kind")
	ErrLockHeld           = errors.New("lock held by another owner")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNoArtifact         = errors.New("no report artifact stored for file")
)
