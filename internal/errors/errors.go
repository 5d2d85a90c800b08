package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a pasteboard error code.
type ErrorCode string

const (
	ErrMalformedInput      ErrorCode = "MALFORMED_INPUT"      // 400
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrSpliceOutOfBounds   ErrorCode = "SPLICE_OUT_OF_BOUNDS" // 409 (reported per splice, never fatal)
	ErrPayloadTooLarge     ErrorCode = "PAYLOAD_TOO_LARGE"    // 413
	ErrOutOfRange          ErrorCode = "OUT_OF_RANGE"         // 416
	ErrConstructionInvalid ErrorCode = "CONSTRUCTION_INVALID" // 422
	ErrCancelled           ErrorCode = "CANCELLED"            // 499
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// PasteboardError represents a structured error with code, status, and details.
type PasteboardError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *PasteboardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PasteboardError) Unwrap() error {
	return e.Err
}

// NewMalformedInput creates a 400 error for bytes that cannot be decoded.
func NewMalformedInput(msg string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrMalformedInput,
		Status:  400,
		Message: msg,
	}
}

// WrapMalformedInput creates a 400 decode error that keeps the cause.
func WrapMalformedInput(msg string, err error) *PasteboardError {
	e := NewMalformedInput(fmt.Sprintf("%s: %v", msg, err))
	e.Err = err
	return e
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a history entry cannot be found.
func NewNotFound(identifier string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("payload not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewSpliceOutOfBounds creates an error describing one rejected splice.
func NewSpliceOutOfBounds(offset, length, htmlLen int) *PasteboardError {
	return &PasteboardError{
		Code:    ErrSpliceOutOfBounds,
		Status:  409,
		Message: fmt.Sprintf("splice [%d,%d) outside html of length %d", offset, offset+length, htmlLen),
		Details: map[string]any{"offset": offset, "length": length, "html_len": htmlLen},
	}
}

// NewPayloadTooLarge creates a 413 error when text exceeds the size limit.
func NewPayloadTooLarge(max, actual int) *PasteboardError {
	return &PasteboardError{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("text exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewOutOfRange creates a 416 error for a record index outside the payload.
func NewOutOfRange(index, count int) *PasteboardError {
	return &PasteboardError{
		Code:    ErrOutOfRange,
		Status:  416,
		Message: fmt.Sprintf("record index %d out of range [0,%d)", index, count),
		Details: map[string]any{"index": index, "count": count},
	}
}

// NewConstructionInvalid creates a 422 error for a record that cannot be built.
func NewConstructionInvalid(msg string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrConstructionInvalid,
		Status:  422,
		Message: msg,
	}
}

// NewCancelled creates an error for an operation stopped by its context.
func NewCancelled(operation string) *PasteboardError {
	return &PasteboardError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *PasteboardError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &PasteboardError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err (or anything it wraps) is a PasteboardError with the given code.
func Is(err error, code ErrorCode) bool {
	var pbErr *PasteboardError
	if stderrors.As(err, &pbErr) {
		return pbErr.Code == code
	}
	return false
}

// As is errors.As re-exported so callers need not import both packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
