// Package core defines the fundamental errors and error taxonomy for hearth.
package core

import "errors"

// Core errors that can occur across the system
var (
	// Action errors
	ErrUnknownSlice   = errors.New("unknown action slice")
	ErrInvalidPayload = errors.New("invalid action payload")
	ErrInvalidTheme   = errors.New("invalid theme")
	ErrInvalidView    = errors.New("invalid calendar view mode")
	ErrInvalidFilter  = errors.New("invalid shopping filter mode")
	ErrInvalidSort    = errors.New("invalid shopping sort option")

	// Storage errors
	ErrKeyNotFound     = errors.New("key not found")
	ErrDecryptFailed   = errors.New("decryption failed")
	ErrMigrationFailed = errors.New("migration failed")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// Rate limiting
	ErrRateLimited = errors.New("rate limit exceeded")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingRequired = errors.New("missing required field")
)
