package interact

import (
	"fmt"

	"github.com/roach88/creditors/internal/fault"
)

// AlertKind identifies the message shown to the user.
type AlertKind string

const (
	AlertNetwork               AlertKind = "NetworkError"
	AlertAuthentication        AlertKind = "AuthenticationError"
	AlertServer                AlertKind = "ServerError"
	AlertConflictingUpdate     AlertKind = "ConflictingUpdate"
	AlertWrongPin              AlertKind = "WrongPin"
	AlertUnprocessable         AlertKind = "UnprocessableEntity"
	AlertNotFound              AlertKind = "ResourceNotFound"
	AlertInvalidCoinURI        AlertKind = "InvalidCoinURI"
	AlertInvalidDocument       AlertKind = "InvalidDocument"
	AlertInvalidPaymentRequest AlertKind = "InvalidPaymentRequest"
	AlertInvalidPaymentData    AlertKind = "InvalidPaymentData"
	AlertCircularPeg           AlertKind = "CircularPeg"
	AlertPegDisplayMismatch    AlertKind = "PegDisplayMismatch"
	AlertBrokenLogStream       AlertKind = "BrokenLogStream"
	AlertUnexpected            AlertKind = "UnexpectedError"
)

// Alert is user feedback for a failed operation.
type Alert struct {
	Kind    AlertKind
	Message string
	Err     error
}

func (a Alert) String() string {
	return fmt.Sprintf("%s: %s", a.Kind, a.Message)
}

var messages = map[AlertKind]string{
	AlertNetwork:               "The server could not be reached. Check your connection and try again.",
	AlertAuthentication:        "Your session has expired. Log in again.",
	AlertServer:                "The server could not complete the request.",
	AlertConflictingUpdate:     "The data was changed elsewhere. Review it and try again.",
	AlertWrongPin:              "Wrong PIN.",
	AlertUnprocessable:         "The server rejected the request as invalid.",
	AlertNotFound:              "The resource no longer exists on the server.",
	AlertInvalidCoinURI:        "This is not a valid coin link.",
	AlertInvalidDocument:       "The coin information document is invalid.",
	AlertInvalidPaymentRequest: "This is not a valid payment request.",
	AlertInvalidPaymentData:    "The payment data is invalid.",
	AlertCircularPeg:           "The peg would make a currency pegged to itself.",
	AlertPegDisplayMismatch:    "The pegged currency is displayed differently than the peg expects.",
	AlertBrokenLogStream:       "The local data is out of sync with the server and is being reloaded.",
	AlertUnexpected:            "An unexpected error occurred.",
}

// AlertFor maps an error to the alert shown for it. ok is false for
// errors that are not anticipated, and for RecordDoesNotExist, which is
// handled by navigating away instead of alerting.
func AlertFor(err error) (alert Alert, ok bool) {
	var kind AlertKind
	switch fault.KindOf(err) {
	case fault.KindServerSession:
		kind = AlertNetwork
	case fault.KindAuthentication:
		kind = AlertAuthentication
	case fault.KindHTTP:
		kind = AlertServer
	case fault.KindConflictingUpdate:
		kind = AlertConflictingUpdate
	case fault.KindWrongPin:
		kind = AlertWrongPin
	case fault.KindUnprocessableEntity:
		kind = AlertUnprocessable
	case fault.KindResourceNotFound:
		kind = AlertNotFound
	case fault.KindInvalidCoinURI:
		kind = AlertInvalidCoinURI
	case fault.KindInvalidDocument:
		kind = AlertInvalidDocument
	case fault.KindInvalidPaymentRequest:
		kind = AlertInvalidPaymentRequest
	case fault.KindInvalidPaymentData:
		kind = AlertInvalidPaymentData
	case fault.KindCircularPeg:
		kind = AlertCircularPeg
	case fault.KindPegDisplayMismatch:
		kind = AlertPegDisplayMismatch
	case fault.KindBrokenLogStream:
		kind = AlertBrokenLogStream
	default:
		// RecordDoesNotExist, WrongObjectType and untagged errors.
		return Alert{}, false
	}
	return Alert{Kind: kind, Message: messages[kind], Err: err}, true
}
