package poller

import (
	"fmt"

	"github.com/benmeehan/ups-bridge/internal/codec"
)

// TransportError is a failed poll cycle. State is where the cycle stopped.
type TransportError struct {
	State State
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("poll cycle failed while %s: %v", e.State, e.Err)
}

// Unwrap supports errors.Is / errors.As.
func (e *TransportError) Unwrap() error { return e.Err }

// Cause supports github.com/pkg/errors.Cause.
func (e *TransportError) Cause() error { return e.Err }

// Outcome is the result of one cycle: a snapshot on success, Err on failure.
// Snapshot may be partial on success and is empty on failure.
type Outcome struct {
	Snapshot Snapshot
	Unknown  []codec.Response
	Err      *TransportError
}

// Success reports whether the cycle completed.
func (o Outcome) Success() bool {
	return o.Err == nil
}
