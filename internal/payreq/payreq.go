// Package payreq encodes and decodes payment request documents.
//
// A payment request is a short text document, one field per line:
//
//	PR0
//	<recipient account URI>
//	<payee name>
//	<amount>
//	<deadline, RFC 3339, or empty>
//	<payee reference>
//	<description format>
//	<description>
//
// The description takes the rest of the document and may span lines.
package payreq

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// ContentType is the media type of payment request documents.
const ContentType = "application/vnd.swaptacular.payment-request"

const (
	magic = "PR0"

	MaxPayeeNameLength      = 200
	MaxPayeeReferenceLength = 200
	MaxDescriptionLength    = 1000
)

// InvalidPlaceholder stands in for a request whose content could not be
// encoded.
var InvalidPlaceholder = []byte(magic + "\ninvalid")

// ErrInvalidData is returned by Encode when the request content cannot be
// represented.
var ErrInvalidData = errors.New("invalid payment request data")

// Encoder produces shareable payment request documents.
type Encoder interface {
	Encode(info records.PaymentInfo) ([]byte, error)
}

// Decoder reads payment request documents.
type Decoder interface {
	Decode(data []byte) (records.PaymentInfo, error)
}

// Text implements Encoder and Decoder for the text format.
type Text struct{}

var (
	_ Encoder = Text{}
	_ Decoder = Text{}
)

// Encode renders info. Content that would not survive a Decode round trip
// yields an error wrapping ErrInvalidData.
func (Text) Encode(info records.PaymentInfo) ([]byte, error) {
	if err := validate(info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	deadline := ""
	if info.Deadline != nil {
		deadline = info.Deadline.UTC().Format(time.RFC3339)
	}
	lines := []string{
		magic,
		info.RecipientURI,
		info.PayeeName,
		strconv.FormatInt(info.Amount, 10),
		deadline,
		info.PayeeReference,
		"",
		info.Description,
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// Decode parses a document. Malformed documents are reported as
// InvalidPaymentRequest.
func (Text) Decode(data []byte) (records.PaymentInfo, error) {
	invalid := func(msg string) error {
		return fault.New(fault.KindInvalidPaymentRequest, "decode payment request", msg)
	}
	if !utf8.Valid(data) {
		return records.PaymentInfo{}, invalid("not utf-8")
	}
	parts := strings.SplitN(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n", 8)
	if len(parts) < 7 || parts[0] != magic {
		return records.PaymentInfo{}, invalid("unrecognized format")
	}
	amount, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return records.PaymentInfo{}, invalid("bad amount")
	}
	info := records.PaymentInfo{
		RecipientURI:   parts[1],
		PayeeName:      parts[2],
		Amount:         amount,
		PayeeReference: parts[5],
	}
	if parts[4] != "" {
		d, err := time.Parse(time.RFC3339, parts[4])
		if err != nil {
			return records.PaymentInfo{}, invalid("bad deadline")
		}
		info.Deadline = &d
	}
	if len(parts) == 8 {
		info.Description = parts[7]
	}
	if err := validate(info); err != nil {
		return records.PaymentInfo{}, invalid(err.Error())
	}
	return info, nil
}

func validate(info records.PaymentInfo) error {
	u, err := url.Parse(info.RecipientURI)
	switch {
	case err != nil || u.Scheme == "" || strings.ContainsAny(info.RecipientURI, "\n\r"):
		return errors.New("bad recipient")
	case info.Amount < 0:
		return errors.New("negative amount")
	case strings.ContainsAny(info.PayeeName, "\n\r") || len(info.PayeeName) > MaxPayeeNameLength:
		return errors.New("bad payee name")
	case strings.ContainsAny(info.PayeeReference, "\n\r") || len(info.PayeeReference) > MaxPayeeReferenceLength:
		return errors.New("bad payee reference")
	case len(info.Description) > MaxDescriptionLength:
		return errors.New("description too long")
	}
	return nil
}
