// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidUserID is returned when a user id is malformed or invalid.
	ErrInvalidUserID = errors.New("invalid user ID")

	// ErrEmptyImageURL is returned when a render request has no source image.
	ErrEmptyImageURL = errors.New("source image URL cannot be empty")

	// ErrEmptyModel is returned when a render request has no model id.
	ErrEmptyModel = errors.New("model ID cannot be empty")
)
