// Package canonical maps server JSON payloads to the wallet's in-memory
// object model.
//
// Every mapper checks the payload's declared type against the schema family
// it understands and rewrites embedded relative references to absolute URIs
// using the response URL. The top-level "uri" is left as received; the Fetch
// helpers absolutize it from the transport response.
//
// Fractional wire numbers (amountDivisor, exchangeRate, interestRate, ...)
// decode as float64. Monetary amounts decode as exact int64 and a payload
// carrying a fractional or out-of-range amount is rejected. Amounts never
// pass through floating point here.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/roach88/creditors/internal/fault"
)

var (
	typePatternsMu sync.Mutex
	typePatterns   = map[string]*regexp.Regexp{}
)

// typePattern returns the discriminant pattern for a schema family:
// the bare family name, optionally followed by "-v<version>".
func typePattern(family string) *regexp.Regexp {
	typePatternsMu.Lock()
	defer typePatternsMu.Unlock()
	re, ok := typePatterns[family]
	if !ok {
		re = regexp.MustCompile(`^` + regexp.QuoteMeta(family) + `(-v[1-9][0-9]{0,5})?$`)
		typePatterns[family] = re
	}
	return re
}

// CheckType fails with WrongObjectType when declared does not belong to the
// given schema family.
func CheckType(family, declared string) error {
	if !typePattern(family).MatchString(declared) {
		return fault.New(fault.KindWrongObjectType, "map "+family,
			fmt.Sprintf("unexpected type %q", declared))
	}
	return nil
}

// decode unmarshals raw into v, tagging failures as InvalidDocument.
func decode(family string, raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return fault.Wrap(fault.KindInvalidDocument, "map "+family, err)
	}
	return nil
}

// resolver rewrites relative references against a base URL and keeps the
// first error it meets.
type resolver struct {
	base *url.URL
	err  error
}

func newResolver(baseURL string) (*resolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fault.Wrap(fault.KindInvalidDocument, "parse base url", err)
	}
	if !base.IsAbs() {
		return nil, fault.New(fault.KindInvalidDocument, "parse base url",
			fmt.Sprintf("base url %q is not absolute", baseURL))
	}
	return &resolver{base: base}, nil
}

func (r *resolver) uri(s *string) {
	if r.err != nil || *s == "" {
		return
	}
	u, err := url.Parse(*s)
	if err != nil {
		r.err = fault.Wrap(fault.KindInvalidDocument, "resolve reference", err)
		return
	}
	*s = r.base.ResolveReference(u).String()
}

func (r *resolver) ref(p *ObjectReference) {
	r.uri(&p.URI)
}

func (r *resolver) check(family, declared string) {
	if r.err != nil {
		return
	}
	r.err = CheckType(family, declared)
}

// MapWallet maps a Wallet payload.
func MapWallet(baseURL string, raw []byte) (*Wallet, error) {
	var w Wallet
	if err := decode(TypeWallet, raw, &w); err != nil {
		return nil, err
	}
	r, err := newResolver(baseURL)
	if err != nil {
		return nil, err
	}
	r.check(TypeWallet, w.Type)
	r.ref(&w.Creditor)
	r.ref(&w.PinInfo)
	r.uri(&w.Log.First)
	r.uri(&w.Log.Forthcoming)
	r.ref(&w.AccountsList)
	r.ref(&w.TransfersList)
	r.ref(&w.CreateAccount)
	r.ref(&w.CreateTransfer)
	r.ref(&w.DebtorLookup)
	r.ref(&w.AccountLookup)
	if r.err != nil {
		return nil, r.err
	}
	return &w, nil
}

// MapCreditor maps a Creditor payload.
func MapCreditor(baseURL string, raw []byte) (*Creditor, error) {
	var c Creditor
	if err := decode(TypeCreditor, raw, &c); err != nil {
		return nil, err
	}
	r, err := newResolver(baseURL)
	if err != nil {
		return nil, err
	}
	r.check(TypeCreditor, c.Type)
	r.ref(&c.Wallet)
	if r.err != nil {
		return nil, r.err
	}
	return &c, nil
}

// MapPinInfo maps a PinInfo payload.
func MapPinInfo(baseURL string, raw []byte) (*PinInfo, error) {
	var p PinInfo
	if err := decode(TypePinInfo, raw, &p); err != nil {
		return nil, err
	}
	r, err := newResolver(baseURL)
	if err != nil {
		return nil, err
	}
	r.check(TypePinInfo, p.Type)
	r.ref(&p.Wallet)
	if r.err != nil {
		return nil, r.err
	}
	return &p, nil
}

// MapAccount maps a composite Account payload, recursively mapping every
// embedded sub-object.
func MapAccount(baseURL string, raw []byte) (*Account, error) {
	var a Account
	if err := decode(TypeAccount, raw, &a); err != nil {
		return nil, err
	}
	r, err := newResolver(baseURL)
	if err != nil {
		return nil, err
	}
	r.check(TypeAccount, a.Type)
	r.ref(&a.AccountsList)
	r.display(&a.Display, true)
	r.config(&a.Config, true)
	r.exchange(&a.Exchange, true)
	r.knowledge(&a.Knowledge, true)
	r.ledger(&a.Ledger, true)
	r.info(&a.Info, true)
	if r.err != nil {
		return nil, r.err
	}
	return &a, nil
}

func (r *resolver) display(d *AccountDisplay, embedded bool) {
	r.check(TypeAccountDisplay, d.Type)
	if embedded {
		r.uri(&d.URI)
	}
	r.ref(&d.Account)
}

func (r *resolver) config(c *AccountConfig, embedded bool) {
	r.check(TypeAccountConfig, c.Type)
	if embedded {
		r.uri(&c.URI)
	}
	r.ref(&c.Account)
}

func (r *resolver) exchange(e *AccountExchange, embedded bool) {
	r.check(TypeAccountExchange, e.Type)
	if embedded {
		r.uri(&e.URI)
	}
	r.ref(&e.Account)
	if e.Peg != nil {
		r.check("CurrencyPeg", e.Peg.Type)
		r.ref(&e.Peg.Account)
	}
}

func (r *resolver) knowledge(k *AccountKnowledge, embedded bool) {
	r.check(TypeAccountKnowledge, k.Type)
	if embedded {
		r.uri(&k.URI)
	}
	r.ref(&k.Account)
}

func (r *resolver) ledger(l *AccountLedger, embedded bool) {
	r.check(TypeAccountLedger, l.Type)
	if embedded {
		r.uri(&l.URI)
	}
	r.ref(&l.Account)
	r.uri(&l.Entries.First)
}

func (r *resolver) info(i *AccountInfo, embedded bool) {
	r.check(TypeAccountInfo, i.Type)
	if embedded {
		r.uri(&i.URI)
	}
	r.ref(&i.Account)
}

// MapAccountDisplay maps a standalone AccountDisplay payload.
func MapAccountDisplay(baseURL string, raw []byte) (*AccountDisplay, error) {
	var d AccountDisplay
	return mapSub(TypeAccountDisplay, baseURL, raw, &d, func(r *resolver) { r.display(&d, false) })
}

// MapAccountConfig maps a standalone AccountConfig payload.
func MapAccountConfig(baseURL string, raw []byte) (*AccountConfig, error) {
	var c AccountConfig
	return mapSub(TypeAccountConfig, baseURL, raw, &c, func(r *resolver) { r.config(&c, false) })
}

// MapAccountExchange maps a standalone AccountExchange payload.
func MapAccountExchange(baseURL string, raw []byte) (*AccountExchange, error) {
	var e AccountExchange
	return mapSub(TypeAccountExchange, baseURL, raw, &e, func(r *resolver) { r.exchange(&e, false) })
}

// MapAccountKnowledge maps a standalone AccountKnowledge payload.
func MapAccountKnowledge(baseURL string, raw []byte) (*AccountKnowledge, error) {
	var k AccountKnowledge
	return mapSub(TypeAccountKnowledge, baseURL, raw, &k, func(r *resolver) { r.knowledge(&k, false) })
}

// MapAccountLedger maps a standalone AccountLedger payload.
func MapAccountLedger(baseURL string, raw []byte) (*AccountLedger, error) {
	var l AccountLedger
	return mapSub(TypeAccountLedger, baseURL, raw, &l, func(r *resolver) { r.ledger(&l, false) })
}

// MapAccountInfo maps a standalone AccountInfo payload.
func MapAccountInfo(baseURL string, raw []byte) (*AccountInfo, error) {
	var i AccountInfo
	return mapSub(TypeAccountInfo, baseURL, raw, &i, func(r *resolver) { r.info(&i, false) })
}

// MapTransfer maps a Transfer payload.
func MapTransfer(baseURL string, raw []byte) (*Transfer, error) {
	var t Transfer
	return mapSub(TypeTransfer, baseURL, raw, &t, func(r *resolver) {
		r.check(TypeTransfer, t.Type)
		r.ref(&t.TransfersList)
		if t.Result != nil {
			r.check("TransferResult", t.Result.Type)
		}
	})
}

// MapCommittedTransfer maps a CommittedTransfer payload.
func MapCommittedTransfer(baseURL string, raw []byte) (*CommittedTransfer, error) {
	var c CommittedTransfer
	return mapSub(TypeCommittedTransfer, baseURL, raw, &c, func(r *resolver) {
		r.check(TypeCommittedTransfer, c.Type)
		r.ref(&c.Account)
	})
}

// MapLogEntriesPage maps one page of the log stream.
func MapLogEntriesPage(baseURL string, raw []byte) (*LogEntriesPage, error) {
	var p LogEntriesPage
	return mapSub(TypeLogEntriesPage, baseURL, raw, &p, func(r *resolver) {
		r.check(TypeLogEntriesPage, p.Type)
		for i := range p.Items {
			r.check(TypeLogEntry, p.Items[i].Type)
			r.ref(&p.Items[i].Object)
		}
		r.uri(&p.Next)
		r.uri(&p.Forthcoming)
	})
}

// MapObjectReferencesPage maps one page of a reference list.
func MapObjectReferencesPage(baseURL string, raw []byte) (*ObjectReferencesPage, error) {
	var p ObjectReferencesPage
	return mapSub(TypeObjectRefsPage, baseURL, raw, &p, func(r *resolver) {
		r.check(TypeObjectRefsPage, p.Type)
		for i := range p.Items {
			r.ref(&p.Items[i])
		}
		r.uri(&p.Next)
	})
}

// MapObjectList maps a list entrypoint of the given family
// (TypeTransfersList or TypeAccountsList).
func MapObjectList(family string) func(baseURL string, raw []byte) (*ObjectList, error) {
	return func(baseURL string, raw []byte) (*ObjectList, error) {
		var l ObjectList
		return mapSub(family, baseURL, raw, &l, func(r *resolver) {
			r.check(family, l.Type)
			r.ref(&l.Wallet)
			r.uri(&l.First)
		})
	}
}

// mapSub decodes raw into v and runs fix with a resolver for baseURL.
func mapSub[T any](family, baseURL string, raw []byte, v *T, fix func(*resolver)) (*T, error) {
	if err := decode(family, raw, v); err != nil {
		return nil, err
	}
	r, err := newResolver(baseURL)
	if err != nil {
		return nil, err
	}
	fix(r)
	if r.err != nil {
		return nil, r.err
	}
	return v, nil
}

// LedgerDelta is the inline data of an AccountLedger log entry.
type LedgerDelta struct {
	Principal   int64 `json:"principal"`
	NextEntryID int64 `json:"nextEntryId"`
}

// TransferDelta is the inline data of a Transfer log entry.
type TransferDelta struct {
	FinalizedAt     *time.Time `json:"finalizedAt,omitempty"`
	ErrorCode       *string    `json:"errorCode,omitempty"`
	CommittedAmount int64      `json:"committedAmount"`
}

// LedgerDelta decodes the entry's inline ledger data. ok is false when the
// entry carries no data.
func (e *LogEntry) LedgerDelta() (d LedgerDelta, ok bool, err error) {
	if len(e.Data) == 0 {
		return d, false, nil
	}
	if err := decode(TypeAccountLedger, e.Data, &d); err != nil {
		return d, false, err
	}
	return d, true, nil
}

// TransferDelta decodes the entry's inline transfer data. ok is false when
// the entry carries no data.
func (e *LogEntry) TransferDelta() (d TransferDelta, ok bool, err error) {
	if len(e.Data) == 0 {
		return d, false, nil
	}
	if err := decode(TypeTransfer, e.Data, &d); err != nil {
		return d, false, err
	}
	return d, true, nil
}
