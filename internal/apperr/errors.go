// Package apperr defines the error taxonomy shared across the importer.
package apperr

import "errors"

var (
	// ErrConfig marks configuration errors: fatal to the single operation
	// that hit them, collected rather than aborting the run.
	ErrConfig = errors.New("configuration error")

	// ErrStructural marks a missing or malformed required input artifact.
	// Structural errors abort the whole run.
	ErrStructural = errors.New("structural error")
)
