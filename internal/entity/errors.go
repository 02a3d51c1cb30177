package entity

import "errors"

// Error kinds shared across the pipeline. Layers wrap these with fmt.Errorf("...: %w", err)
// and callers classify them with errors.Is.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid job state transition")
	ErrNotFound          = errors.New("not found")
	ErrExternalService   = errors.New("external service error")
	ErrParse             = errors.New("parse error")
	ErrInsufficientData  = errors.New("insufficient data")
	ErrRunInProgress     = errors.New("a run for this search is already in progress")
)
