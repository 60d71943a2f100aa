package sheet

import (
	"errors"
	"fmt"
)

// Sentinel errors for sheet operations.
var (
	// ErrNotFound indicates the sheet does not exist.
	ErrNotFound = errors.New("sheet not found")

	// ErrRejected indicates the service rejected the request payload.
	ErrRejected = errors.New("request rejected")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnavailable indicates the sheet service is unavailable.
	ErrUnavailable = errors.New("sheet service unavailable")

	// ErrThrottled indicates the request was rate limited by the service.
	ErrThrottled = errors.New("request throttled")
)

// Error wraps sheet-service errors with context.
type Error struct {
	// Op is the operation that failed (e.g., "GetSheet", "InsertRows").
	Op string

	// SheetID is the target sheet.
	SheetID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.SheetID != "" {
		return fmt.Sprintf("sheet %s: %s: %v", e.Op, e.SheetID, e.Err)
	}
	return fmt.Sprintf("sheet %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates the sheet does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRejected returns true if the error indicates the service rejected the payload.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsUnavailable returns true if the error indicates the service is unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
