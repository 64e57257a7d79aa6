package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/mirror/internal/remote"
)

// SyncError is a failure to reconcile one record. It never aborts a pass:
// the batch operations capture it in the record's result and move on.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// RecordID identifies the affected record, when known.
	RecordID string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeRemoteFailure covers transport, auth and server errors.
	ErrCodeRemoteFailure SyncErrorCode = "REMOTE_FAILURE"

	// ErrCodeNotFound indicates the record does not exist where it was
	// expected, locally or remotely.
	ErrCodeNotFound SyncErrorCode = "NOT_FOUND"

	// ErrCodeIncompatibleSchema indicates a schema change the remote
	// cannot apply, such as changing an existing property's type.
	ErrCodeIncompatibleSchema SyncErrorCode = "INCOMPATIBLE_SCHEMA"

	// ErrCodeStoreFailure indicates the local mirror could not be written.
	ErrCodeStoreFailure SyncErrorCode = "STORE_FAILURE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg += fmt.Sprintf(" (record=%s)", e.RecordID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a not-found sync error or wraps
// remote.ErrNotFound.
func IsNotFound(err error) bool {
	var se *SyncError
	if errors.As(err, &se) && se.Code == ErrCodeNotFound {
		return true
	}
	return errors.Is(err, remote.ErrNotFound)
}

// IsIncompatibleSchema returns true if the error rejects a schema change.
func IsIncompatibleSchema(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeIncompatibleSchema
}

// IsRemoteFailure returns true if the error came from the remote.
func IsRemoteFailure(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeRemoteFailure
}

// ErrorCode returns the code of a SyncError in err's chain, or "".
func ErrorCode(err error) SyncErrorCode {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// remoteError classifies an error returned by the remote client.
func remoteError(recordID, action string, err error) *SyncError {
	code := ErrCodeRemoteFailure
	if errors.Is(err, remote.ErrNotFound) {
		code = ErrCodeNotFound
	}
	return &SyncError{Code: code, RecordID: recordID, Message: action, Err: err}
}

func storeError(recordID, action string, err error) *SyncError {
	return &SyncError{Code: ErrCodeStoreFailure, RecordID: recordID, Message: action, Err: err}
}
