// Package debtorinfo fetches and parses the documents debtors publish about
// their currencies.
package debtorinfo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/transport"
)

// ContentType is the media type of coin info documents.
const ContentType = "application/vnd.swaptacular.coin-info+json"

// Limits on declared display data.
const (
	MaxDecimalPlaces = 20
	MaxNameLength    = 40
	MaxUnitLength    = 40
)

var (
	coinInfoType = regexp.MustCompile(`^CoinInfo(-v[1-9][0-9]{0,5})?$`)
	pegType      = regexp.MustCompile(`^CurrencyPeg(-v[1-9][0-9]{0,5})?$`)
)

// Parser turns a fetched document into debtor data.
type Parser interface {
	Parse(doc records.Document) (canonical.DebtorData, error)
}

// Fetch downloads the document at iri. Debtor info documents are public,
// so no login is attempted.
func Fetch(ctx context.Context, c transport.Client, iri string, now time.Time) (records.Document, error) {
	resp, err := c.Get(ctx, iri, transport.WithAttemptLogin(false))
	if err != nil {
		return records.Document{}, err
	}
	sum := sha256.Sum256(resp.Body)
	return records.Document{
		IRI:         iri,
		ContentType: resp.Header.Get("Content-Type"),
		SHA256:      strings.ToUpper(hex.EncodeToString(sum[:])),
		Content:     resp.Body,
		FetchedAt:   now,
	}, nil
}

// JSONParser parses coin info JSON documents.
type JSONParser struct{}

var _ Parser = JSONParser{}

type coinInfo struct {
	Type               string                     `json:"type"`
	URI                string                     `json:"uri"`
	Revision           int64                      `json:"revision"`
	DebtorIdentity     canonical.ObjectReference  `json:"debtorIdentity"`
	LatestDebtorInfo   canonical.ObjectReference  `json:"latestDebtorInfo"`
	DebtorName         string                     `json:"debtorName"`
	Summary            string                     `json:"summary"`
	DebtorHomepage     *canonical.ObjectReference `json:"debtorHomepage"`
	AmountDivisor      float64                    `json:"amountDivisor"`
	DecimalPlaces      int64                      `json:"decimalPlaces"`
	Unit               string                     `json:"unit"`
	WillNotChangeUntil *time.Time                 `json:"willNotChangeUntil"`
	Peg                *struct {
		Type             string                    `json:"type"`
		ExchangeRate     float64                   `json:"exchangeRate"`
		DebtorIdentity   canonical.ObjectReference `json:"debtorIdentity"`
		LatestDebtorInfo canonical.ObjectReference `json:"latestDebtorInfo"`
		Display          canonical.PegDisplay      `json:"display"`
	} `json:"peg"`
}

// Parse validates doc and extracts its debtor data. Relative references
// are resolved against the document IRI. Any violation is reported as
// InvalidDocument.
func (JSONParser) Parse(doc records.Document) (canonical.DebtorData, error) {
	invalid := func(format string, args ...any) error {
		return fault.New(fault.KindInvalidDocument, "parse debtor info", fmt.Sprintf(format, args...))
	}
	if doc.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(doc.ContentType)
		if err != nil || (mediaType != ContentType && mediaType != "application/json") {
			return canonical.DebtorData{}, invalid("unexpected content type %q", doc.ContentType)
		}
	}

	var ci coinInfo
	if err := json.Unmarshal(doc.Content, &ci); err != nil {
		return canonical.DebtorData{}, invalid("%v", err)
	}
	switch {
	case !coinInfoType.MatchString(ci.Type):
		return canonical.DebtorData{}, invalid("unexpected type %q", ci.Type)
	case ci.DebtorIdentity.URI == "":
		return canonical.DebtorData{}, invalid("missing debtor identity")
	case ci.DebtorName == "" || len(ci.DebtorName) > MaxNameLength:
		return canonical.DebtorData{}, invalid("bad debtor name")
	case !(ci.AmountDivisor > 0):
		return canonical.DebtorData{}, invalid("bad amount divisor")
	case ci.DecimalPlaces < -MaxDecimalPlaces || ci.DecimalPlaces > MaxDecimalPlaces:
		return canonical.DebtorData{}, invalid("bad decimal places")
	case ci.Unit == "" || len(ci.Unit) > MaxUnitLength:
		return canonical.DebtorData{}, invalid("bad unit")
	}

	base, err := url.Parse(doc.IRI)
	if err != nil {
		return canonical.DebtorData{}, invalid("bad document iri: %v", err)
	}
	resolve := func(ref string) string {
		if ref == "" {
			return ""
		}
		u, err := base.Parse(ref)
		if err != nil {
			return ref
		}
		return u.String()
	}

	data := canonical.DebtorData{
		DebtorName:         ci.DebtorName,
		Summary:            ci.Summary,
		AmountDivisor:      ci.AmountDivisor,
		DecimalPlaces:      ci.DecimalPlaces,
		Unit:               ci.Unit,
		WillNotChangeUntil: ci.WillNotChangeUntil,
		LatestDebtorInfo:   canonical.ObjectReference{URI: resolve(ci.LatestDebtorInfo.URI)},
		DebtorIdentity:     ci.DebtorIdentity,
		Revision:           ci.Revision,
	}
	if data.LatestDebtorInfo.URI == "" {
		data.LatestDebtorInfo.URI = doc.IRI
	}
	if ci.DebtorHomepage != nil {
		data.DebtorHomepage = &canonical.ObjectReference{URI: resolve(ci.DebtorHomepage.URI)}
	}
	if ci.Peg != nil {
		p := ci.Peg
		switch {
		case !pegType.MatchString(p.Type):
			return canonical.DebtorData{}, invalid("unexpected peg type %q", p.Type)
		case !(p.ExchangeRate >= 0):
			return canonical.DebtorData{}, invalid("bad peg exchange rate")
		case p.DebtorIdentity.URI == "" || p.LatestDebtorInfo.URI == "":
			return canonical.DebtorData{}, invalid("incomplete peg")
		case !(p.Display.AmountDivisor > 0) || p.Display.Unit == "":
			return canonical.DebtorData{}, invalid("bad peg display")
		}
		data.Peg = &canonical.Peg{
			ExchangeRate:     p.ExchangeRate,
			DebtorIdentity:   p.DebtorIdentity,
			LatestDebtorInfo: canonical.ObjectReference{URI: resolve(p.LatestDebtorInfo.URI)},
			Display:          p.Display,
		}
	}
	return data, nil
}
