package scanner

import (
	"errors"
	"fmt"
)

var (
	// ErrSetupFailed marks container/ledger provisioning failures. These
	// are fatal to the whole run.
	ErrSetupFailed = errors.New("setup failed")

	// ErrNoPayload is returned by mail sources when a message has no
	// retrievable body.
	ErrNoPayload = errors.New("message has no retrievable payload")
)

// EmailError wraps any failure while processing one email. It is recovered
// at the run level and recorded as a result-list entry, never rethrown.
type EmailError struct {
	EmailID string
	Err     error
}

func (e *EmailError) Error() string {
	return fmt.Sprintf("%s: %v", e.EmailID, e.Err)
}

func (e *EmailError) Unwrap() error { return e.Err }

// AttachmentError wraps any failure within one attachment's pipeline and
// carries the attachment filename.
type AttachmentError struct {
	Filename string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("attachment %q: %v", e.Filename, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }
