package model

import "errors"

// Error taxonomy shared by the scheduler and the transport layer.
var (
	// ErrInvalidInput - request failed validation, no job was created
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound - no job exists under the queried identifier
	ErrNotFound = errors.New("job not found")
	// ErrNotReady - the job exists but has not completed yet
	ErrNotReady = errors.New("artifact not ready")
	// ErrGone - the job failed or its artifact was removed
	ErrGone = errors.New("artifact gone")
	// ErrInvalidState - a stage was invoked with inputs that cannot occur
	// downstream of a successful predecessor
	ErrInvalidState = errors.New("invalid state")
)
