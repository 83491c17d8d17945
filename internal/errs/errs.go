// Package errs defines the error taxonomy shared across the pipeline.
package errs

import (
	"errors"
	"fmt"
)

// ErrInputInvalid marks malformed or empty required input. It is the only
// error class the analysis entry point reports for bad requests.
var ErrInputInvalid = errors.New("invalid input")

// ErrJobProcessingFailed marks a summarization attempt that failed and
// should be retried (or parked as terminal FAILED once retries run out).
// It is never surfaced to HTTP callers; the job status query exposes it.
var ErrJobProcessingFailed = errors.New("job processing failed")

// InputInvalid wraps ErrInputInvalid with field detail.
func InputInvalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInputInvalid, fmt.Sprintf(format, args...))
}

// IsInput reports whether err is an ErrInputInvalid.
func IsInput(err error) bool {
	return errors.Is(err, ErrInputInvalid)
}

// SubsystemUnavailable reports a model, store, or cache failure or timeout.
// The orchestrator absorbs it as degradation; it never fails a request.
type SubsystemUnavailable struct {
	Subsystem string
	Err       error
}

func (e *SubsystemUnavailable) Error() string {
	if e.Err == nil {
		return e.Subsystem + " unavailable"
	}
	return fmt.Sprintf("%s unavailable: %v", e.Subsystem, e.Err)
}

func (e *SubsystemUnavailable) Unwrap() error { return e.Err }

// Unavailable wraps err as a SubsystemUnavailable for the named subsystem.
func Unavailable(subsystem string, err error) error {
	return &SubsystemUnavailable{Subsystem: subsystem, Err: err}
}

// DataIntegrityViolation reports a persistence failure caused by a broken
// reference, e.g. an issue pointing at an unknown customer. It fails the
// single operation, is not retried, and surfaces as a write failure.
type DataIntegrityViolation struct {
	Entity string
	Err    error
}

func (e *DataIntegrityViolation) Error() string {
	return fmt.Sprintf("data integrity violation on %s: %v", e.Entity, e.Err)
}

func (e *DataIntegrityViolation) Unwrap() error { return e.Err }

// IsIntegrity reports whether err is a DataIntegrityViolation.
func IsIntegrity(err error) bool {
	var div *DataIntegrityViolation
	return errors.As(err, &div)
}
