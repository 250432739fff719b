// Package imaperror provides tagged errors carrying IMAP response codes.
//
// Mutation commands fail in one of two ways: an expected, protocol-mapped
// condition (over quota, path collision, missing mailbox) or an internal
// fault. Expected conditions are constructed at the point of detection
// with a response code attached; the top-level handler extracts the code
// with Response and returns it to the protocol layer. Everything without
// a code is an internal fault and is surfaced opaquely.
package imaperror

import "errors"

// ResponseCode is a short IMAP response code returned to the client in
// place of a generic error.
type ResponseCode string

// Response codes understood by the protocol layer.
const (
	ResponseOverQuota     ResponseCode = "OVERQUOTA"
	ResponseAlreadyExists ResponseCode = "ALREADYEXISTS"
	ResponseNonExistent   ResponseCode = "NONEXISTENT"
)

// Error is an expected command failure with a protocol response code.
type Error struct {
	Code    ResponseCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OverQuota reports that the owning alias is over its storage quota or
// has reached the mailbox ceiling.
func OverQuota(message string) *Error {
	return &Error{Code: ResponseOverQuota, Message: message}
}

// AlreadyExists reports a mailbox path collision.
func AlreadyExists(message string) *Error {
	return &Error{Code: ResponseAlreadyExists, Message: message}
}

// NonExistent reports that the mutation target was not found.
func NonExistent(message string) *Error {
	return &Error{Code: ResponseNonExistent, Message: message}
}

// Retag wraps err with the given response code, preserving the original
// error for logging. Used when a low-level store signal (a uniqueness
// violation during create) must surface as a structured condition.
func Retag(err error, code ResponseCode, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Response extracts the response code from err, if any. The second return
// is false for internal faults.
func Response(err error) (ResponseCode, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code, true
	}
	return "", false
}
