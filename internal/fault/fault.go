// Package fault defines the error taxonomy shared by every component of the
// wallet client.
//
// Errors carry an explicit Kind instead of relying on their concrete Go type,
// so callers dispatch with a switch over KindOf(err). Four classes exist:
//
//   - Transport: Authentication, ServerSession, HTTP
//   - Conflict: ConflictingUpdate (409), WrongPin (403),
//     UnprocessableEntity (422), ResourceNotFound (404)
//   - Validation: InvalidCoinURI, InvalidDocument, InvalidPaymentRequest,
//     InvalidPaymentData, CircularPeg, PegDisplayMismatch, WrongObjectType
//   - Consistency: RecordDoesNotExist, BrokenLogStream
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies what went wrong.
type Kind string

const (
	// KindUnknown is reported for errors that carry no fault.Error.
	KindUnknown Kind = ""

	KindAuthentication Kind = "AUTHENTICATION"
	KindServerSession  Kind = "SERVER_SESSION"
	KindHTTP           Kind = "HTTP"

	KindConflictingUpdate   Kind = "CONFLICTING_UPDATE"
	KindWrongPin            Kind = "WRONG_PIN"
	KindUnprocessableEntity Kind = "UNPROCESSABLE_ENTITY"
	KindResourceNotFound    Kind = "RESOURCE_NOT_FOUND"

	KindInvalidCoinURI        Kind = "INVALID_COIN_URI"
	KindInvalidDocument       Kind = "INVALID_DOCUMENT"
	KindInvalidPaymentRequest Kind = "INVALID_PAYMENT_REQUEST"
	KindInvalidPaymentData    Kind = "INVALID_PAYMENT_DATA"
	KindCircularPeg           Kind = "CIRCULAR_PEG"
	KindPegDisplayMismatch    Kind = "PEG_DISPLAY_MISMATCH"
	KindWrongObjectType       Kind = "WRONG_OBJECT_TYPE"

	KindRecordDoesNotExist Kind = "RECORD_DOES_NOT_EXIST"
	KindBrokenLogStream    Kind = "BROKEN_LOG_STREAM"
)

// ErrorClass groups kinds by how callers are expected to react.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	ClassTransport
	ClassConflict
	ClassValidation
	ClassConsistency
)

// Class returns the class a kind belongs to.
func Class(k Kind) ErrorClass {
	switch k {
	case KindAuthentication, KindServerSession, KindHTTP:
		return ClassTransport
	case KindConflictingUpdate, KindWrongPin, KindUnprocessableEntity, KindResourceNotFound:
		return ClassConflict
	case KindInvalidCoinURI, KindInvalidDocument, KindInvalidPaymentRequest,
		KindInvalidPaymentData, KindCircularPeg, KindPegDisplayMismatch, KindWrongObjectType:
		return ClassValidation
	case KindRecordDoesNotExist, KindBrokenLogStream:
		return ClassConsistency
	default:
		return ClassUnknown
	}
}

// Error is the structured error returned by wallet components.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed ("create transfer", "fetch log page").
	Op string

	// Status is the HTTP status code for HTTP and conflict kinds.
	Status int

	// Message is an optional human-readable detail.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates an Error of the given kind around an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// HTTPStatus creates an HTTP error for an unexpected response status.
func HTTPStatus(op string, status int, body string) *Error {
	return &Error{Kind: KindHTTP, Op: op, Status: status, Message: body}
}

// KindOf returns the kind of the outermost fault.Error in err's chain.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusOf returns the HTTP status recorded in err's chain, or 0.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsNotFound reports whether err is an HTTP 404, whether or not it was
// re-tagged as ResourceNotFound.
func IsNotFound(err error) bool {
	k := KindOf(err)
	return k == KindResourceNotFound || (k == KindHTTP && StatusOf(err) == http.StatusNotFound)
}

// conflictKinds maps the documented conflict statuses to their kinds.
var conflictKinds = map[int]Kind{
	http.StatusConflict:            KindConflictingUpdate,
	http.StatusForbidden:           KindWrongPin,
	http.StatusUnprocessableEntity: KindUnprocessableEntity,
	http.StatusNotFound:            KindResourceNotFound,
}

// FromHTTP re-tags an HTTP error as a conflict-class error when its status
// is one of the statuses the operation expects. Other errors are returned
// unchanged; a nil error stays nil.
func FromHTTP(op string, err error, expected ...int) error {
	if err == nil || KindOf(err) != KindHTTP {
		return err
	}
	status := StatusOf(err)
	for _, s := range expected {
		if s != status {
			continue
		}
		if kind, ok := conflictKinds[status]; ok {
			return &Error{Kind: kind, Op: op, Status: status, Err: err}
		}
	}
	return err
}
