// Package common defines sentinel errors shared by the client layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Connectivity.
	ErrNoConnection = errors.New("no connection")

	// Validation.
	ErrorValidation = errors.New("validation error")
)
