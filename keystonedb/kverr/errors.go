//
// Copyright (c) 2023, 2025 Keystone Data and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package kverr defines the error type and error code constants that may be
// returned by the Keystone NoSQL client.
package kverr

import (
	"fmt"
	"time"
)

// Error represents an error returned by the client or reported by the server.
// It wraps an error code, a descriptive message, an optional cause and, for
// throttling errors, an optional server-suggested retry delay.
//
// This implements the error interface.
type Error struct {
	// Code specifies the error code.
	Code ErrorCode `json:"code"`

	// Message specifies the description of error.
	Message string `json:"message"`

	// Cause optionally specifies the cause of error.
	Cause error `json:"cause,omitempty"`

	// RetryAfter optionally specifies a server-suggested delay before the
	// operation should be retried. It is only meaningful for throttling
	// errors and is zero otherwise.
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}

// New creates an error with the specified error code and message.
func New(code ErrorCode, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

// NewWithCause creates an error with the specified error code, message and
// the cause of error.
func NewWithCause(code ErrorCode, cause error, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
		Cause:   cause,
	}
}

// Error returns a descriptive message for the error.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s]: %s", e.Code.String(), e.Message)
	}

	return fmt.Sprintf("[%s]: %s. Caused by:\n\t%s", e.Code.String(), e.Message, e.Cause.Error())
}

// Unwrap returns the cause of the error, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error is retryable.
func (e *Error) Retryable() bool {
	return retryableErrors[e.Code]
}

// retryableErrors is a fast lookup table for the error codes that are
// retryable. Throttling errors and transient server errors may be retried,
// everything else is surfaced to the application immediately.
var retryableErrors = map[ErrorCode]bool{
	ReadLimitExceeded:      true,
	WriteLimitExceeded:     true,
	OperationLimitExceeded: true,
	ServerError:            true,
	ServiceUnavailable:     true,
	TableBusy:              true,
	RequestTimeout:         true,
}

// throttlingErrors is a lookup table for the error codes that represent
// server-side throttling. These honor the RetryAfter hint when present.
var throttlingErrors = map[ErrorCode]bool{
	ReadLimitExceeded:      true,
	WriteLimitExceeded:     true,
	OperationLimitExceeded: true,
}

// NewIllegalArgument creates an IllegalArgument error with the specified message.
func NewIllegalArgument(msgFmt string, msgArgs ...interface{}) *Error {
	return New(IllegalArgument, msgFmt, msgArgs...)
}

// NewIllegalState creates an IllegalState error with the specified message.
func NewIllegalState(msgFmt string, msgArgs ...interface{}) *Error {
	return New(IllegalState, msgFmt, msgArgs...)
}

// NewRequestTimeout creates a RequestTimeout error with the specified message.
func NewRequestTimeout(msgFmt string, msgArgs ...interface{}) *Error {
	return New(RequestTimeout, msgFmt, msgArgs...)
}

// NewBadProtocol creates a BadProtocolMessage error with the specified message.
// It is used for malformed, truncated or otherwise unintelligible wire data.
func NewBadProtocol(msgFmt string, msgArgs ...interface{}) *Error {
	return New(BadProtocolMessage, msgFmt, msgArgs...)
}

// Is checks if the specified error is an Error value and the error code
// matches any of the expected error codes if specified.
func Is(err error, expectedCodes ...ErrorCode) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}

	if len(expectedCodes) == 0 {
		return true
	}

	for _, code := range expectedCodes {
		if e.Code == code {
			return true
		}
	}

	return false
}

// IsRetryable reports whether the specified error is an Error value that
// may be retried.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Retryable()
}

// IsThrottling reports whether the specified error represents server-side
// throttling.
func IsThrottling(err error) bool {
	e, ok := err.(*Error)
	return ok && throttlingErrors[e.Code]
}

// IsBadProtocol returns true if the specified error is a BadProtocolMessage
// error, otherwise returns false.
func IsBadProtocol(err error) bool {
	return Is(err, BadProtocolMessage)
}

// IsTableNotFound returns true if the specified error is a TableNotFound
// error, otherwise returns false.
func IsTableNotFound(err error) bool {
	return Is(err, TableNotFound)
}

// IsIllegalArgument returns true if the specified error is an IllegalArgument
// error, otherwise returns false.
func IsIllegalArgument(err error) bool {
	return Is(err, IllegalArgument)
}

// IsUnsupportedProtocol returns true if the specified error is an
// UnsupportedProtocol error, which indicates the server does not speak the
// serial version the request was encoded with.
func IsUnsupportedProtocol(err error) bool {
	return Is(err, UnsupportedProtocol)
}

// ErrorCode represents the error code.
// Error codes are divided into categories as follows:
//
// 1. Error codes for user-generated errors, range from 1 to 50(exclusive).
// These include illegal arguments, protocol violations, resource not found, etc.
//
// 2. Error codes for user throttling, range from 50 to 100(exclusive).
//
// 3. Error codes for server issues, range from 100 to 150(exclusive).
//
// 3.1 Retryable server issues, range from 100 to 125(exclusive), that
// represent internal problems, presumably temporary, and need to be sent
// back to the application for retry.
//
// 3.2 Other server issues, begin from 125.
type ErrorCode int

const (
	// NoError represents there is no error.
	NoError ErrorCode = iota // 0

	// UnknownOperation error represents the operation attempted is unknown.
	UnknownOperation // 1

	// TableNotFound error represents the operation attempted to access a
	// table that does not exist or is not in a visible state.
	TableNotFound // 2

	// IndexNotFound error represents the operation attempted to access an
	// index that does not exist or is not in a visible state.
	IndexNotFound // 3

	// IllegalArgument error represents the application provided an illegal
	// argument for the operation.
	IllegalArgument // 4

	// RequestSizeLimitExceeded error represents that the size of a request
	// exceeds the system defined limit.
	RequestSizeLimitExceeded // 5

	// BatchOpNumberLimitExceeded error represents that the number of
	// operations included in a batch operation exceeds the system defined limit.
	BatchOpNumberLimitExceeded // 6

	// TableExists error represents the operation attempted to create a table
	// but the named table already exists.
	TableExists // 7

	// IndexExists error represents the operation attempted to create an index
	// for a table but the named index already exists.
	IndexExists // 8

	// InvalidAuthorization error represents the client provided an invalid
	// or rejected request signature.
	InvalidAuthorization // 9

	// InsufficientPermission error represents an application does not have
	// sufficient permission to perform a request.
	InsufficientPermission // 10

	// ResourceNotFound error represents the operation attempted to access a
	// resource that does not exist or is not in a visible state.
	ResourceNotFound // 11

	// BadProtocolMessage error represents there is an error in the protocol
	// used by client and server to exchange information: a truncated frame,
	// an unknown type tag or an inconsistent declared length.
	BadProtocolMessage // 12

	// UnsupportedProtocol error represents the server does not support the
	// protocol serial version used by the client. The client reacts by
	// falling back to an earlier version and re-encoding the request.
	UnsupportedProtocol // 13

	// InvalidPrivateKey error represents the configured private key material
	// could not be parsed or used for signing. This is fatal and never retried.
	InvalidPrivateKey // 14

	// UnsupportedSigningAlgorithm error represents the configured signing
	// algorithm is not supported. This is fatal and never retried.
	UnsupportedSigningAlgorithm // 15

	// OperationNotSupported error represents the operation attempted is not
	// supported at the connected server.
	OperationNotSupported // 16
)

const (
	// ReadLimitExceeded error represents that the provisioned read throughput
	// has been exceeded.
	//
	// Operations resulting in this error can be retried but it is recommended
	// that callers use a delay before retrying in order to minimize the
	// chance that a retry will also be throttled. The delay suggested by the
	// server, if any, is available in Error.RetryAfter.
	ReadLimitExceeded ErrorCode = iota + 50 // 50

	// WriteLimitExceeded error represents that the provisioned write
	// throughput has been exceeded.
	WriteLimitExceeded // 51

	// OperationLimitExceeded error represents the operation attempted has
	// exceeded the allowed limits for non-data operations defined by the
	// system, such as table DDL.
	OperationLimitExceeded // 52
)

const (
	// RequestTimeout error represents the request cannot be processed or does
	// not complete when the specified timeout duration elapses.
	//
	// A single attempt timing out is retryable; the retry handler bounds the
	// overall time spent across attempts.
	RequestTimeout ErrorCode = iota + 100 // 100

	// ServerError represents there is an internal system problem.
	// Most system problems are temporary, so the operation that leads to
	// this error may need to retry.
	ServerError // 101

	// ServiceUnavailable error represents the requested service is currently
	// unavailable. This is usually a temporary error.
	ServiceUnavailable // 102

	// TableBusy error represents the table is in use or busy.
	// Note that only one modification operation at a time is allowed on a table.
	TableBusy // 103
)

const (
	// UnknownError represents an unknown error has occurred on the server.
	UnknownError ErrorCode = iota + 125 // 125

	// IllegalState error represents an illegal state.
	IllegalState // 126
)

// String returns a name for the error code.
//
// This implements the fmt.Stringer interface.
func (code ErrorCode) String() string {
	switch code {
	case NoError:
		return "NoError"
	case UnknownOperation:
		return "UnknownOperation"
	case TableNotFound:
		return "TableNotFound"
	case IndexNotFound:
		return "IndexNotFound"
	case IllegalArgument:
		return "IllegalArgument"
	case RequestSizeLimitExceeded:
		return "RequestSizeLimitExceeded"
	case BatchOpNumberLimitExceeded:
		return "BatchOpNumberLimitExceeded"
	case TableExists:
		return "TableExists"
	case IndexExists:
		return "IndexExists"
	case InvalidAuthorization:
		return "InvalidAuthorization"
	case InsufficientPermission:
		return "InsufficientPermission"
	case ResourceNotFound:
		return "ResourceNotFound"
	case BadProtocolMessage:
		return "BadProtocolMessage"
	case UnsupportedProtocol:
		return "UnsupportedProtocol"
	case InvalidPrivateKey:
		return "InvalidPrivateKey"
	case UnsupportedSigningAlgorithm:
		return "UnsupportedSigningAlgorithm"
	case OperationNotSupported:
		return "OperationNotSupported"
	case ReadLimitExceeded:
		return "ReadLimitExceeded"
	case WriteLimitExceeded:
		return "WriteLimitExceeded"
	case OperationLimitExceeded:
		return "OperationLimitExceeded"
	case RequestTimeout:
		return "RequestTimeout"
	case ServerError:
		return "ServerError"
	case ServiceUnavailable:
		return "ServiceUnavailable"
	case TableBusy:
		return "TableBusy"
	case UnknownError:
		return "UnknownError"
	case IllegalState:
		return "IllegalState"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(code))
	}
}
