package canonical

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/transport"
)

// Encode serializes a stored object.
func Encode(obj Object) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", obj.ObjectType(), err)
	}
	return data, nil
}

// Decode restores a stored object of the given family.
func Decode(objectType string, data []byte) (Object, error) {
	var obj Object
	switch objectType {
	case TypeCreditor:
		obj = &Creditor{}
	case TypePinInfo:
		obj = &PinInfo{}
	case TypeAccount:
		obj = &AccountCore{}
	case TypeAccountDisplay:
		obj = &AccountDisplay{}
	case TypeAccountConfig:
		obj = &AccountConfig{}
	case TypeAccountExchange:
		obj = &AccountExchange{}
	case TypeAccountKnowledge:
		obj = &AccountKnowledge{}
	case TypeAccountLedger:
		obj = &AccountLedger{}
	case TypeAccountInfo:
		obj = &AccountInfo{}
	case TypeTransfer:
		obj = &Transfer{}
	case TypeCommittedTransfer:
		obj = &CommittedTransfer{}
	default:
		return nil, fault.New(fault.KindWrongObjectType, "decode object",
			fmt.Sprintf("unknown object type %q", objectType))
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return nil, fmt.Errorf("decode %s: %w", objectType, err)
	}
	return obj, nil
}

// Mapper maps a raw payload received from baseURL.
type Mapper[T any] func(baseURL string, raw []byte) (*T, error)

// Fetch GETs uri, maps the response and absolutizes the top-level uri
// (returned by self) against the response URL.
func Fetch[T any](ctx context.Context, c transport.Client, uri string, m Mapper[T], self func(*T) *string, opts ...transport.Option) (*T, error) {
	resp, err := c.Get(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}
	return FromResponse(resp, m, self)
}

// FromResponse maps an already received response (for example the body of
// a POST or PATCH) and absolutizes its top-level uri.
func FromResponse[T any](resp *transport.Response, m Mapper[T], self func(*T) *string) (*T, error) {
	v, err := m(resp.URL, resp.Body)
	if err != nil {
		return nil, err
	}
	if p := self(v); p != nil {
		abs, err := resp.Resolve(*p)
		if err != nil {
			return nil, fault.Wrap(fault.KindInvalidDocument, "resolve uri", err)
		}
		*p = abs
	}
	return v, nil
}

// Accessors for the top-level uri of each fetchable resource.
var (
	WalletURI            = func(v *Wallet) *string { return &v.URI }
	CreditorURI          = func(v *Creditor) *string { return &v.URI }
	PinInfoURI           = func(v *PinInfo) *string { return &v.URI }
	AccountURI           = func(v *Account) *string { return &v.URI }
	AccountDisplayURI    = func(v *AccountDisplay) *string { return &v.URI }
	AccountConfigURI     = func(v *AccountConfig) *string { return &v.URI }
	AccountExchangeURI   = func(v *AccountExchange) *string { return &v.URI }
	AccountKnowledgeURI  = func(v *AccountKnowledge) *string { return &v.URI }
	AccountLedgerURI     = func(v *AccountLedger) *string { return &v.URI }
	AccountInfoURI       = func(v *AccountInfo) *string { return &v.URI }
	TransferURI          = func(v *Transfer) *string { return &v.URI }
	CommittedTransferURI = func(v *CommittedTransfer) *string { return &v.URI }
	LogEntriesPageURI    = func(v *LogEntriesPage) *string { return &v.URI }
	ObjectRefsPageURI    = func(v *ObjectReferencesPage) *string { return &v.URI }
	ObjectListURI        = func(v *ObjectList) *string { return &v.URI }
)

// FetchObject fetches a single storable object of the given family. An
// Account is returned split: its core first, followed by its sub-objects.
func FetchObject(ctx context.Context, c transport.Client, objectType, uri string, opts ...transport.Option) ([]Object, error) {
	one := func(o Object, err error) ([]Object, error) {
		if err != nil {
			return nil, err
		}
		return []Object{o}, nil
	}
	switch objectType {
	case TypeAccount:
		a, err := Fetch(ctx, c, uri, MapAccount, AccountURI, opts...)
		if err != nil {
			return nil, err
		}
		core, subs := a.Split()
		return append([]Object{core}, subs...), nil
	case TypeAccountDisplay:
		return one(Fetch(ctx, c, uri, MapAccountDisplay, AccountDisplayURI, opts...))
	case TypeAccountConfig:
		return one(Fetch(ctx, c, uri, MapAccountConfig, AccountConfigURI, opts...))
	case TypeAccountExchange:
		return one(Fetch(ctx, c, uri, MapAccountExchange, AccountExchangeURI, opts...))
	case TypeAccountKnowledge:
		return one(Fetch(ctx, c, uri, MapAccountKnowledge, AccountKnowledgeURI, opts...))
	case TypeAccountLedger:
		return one(Fetch(ctx, c, uri, MapAccountLedger, AccountLedgerURI, opts...))
	case TypeAccountInfo:
		return one(Fetch(ctx, c, uri, MapAccountInfo, AccountInfoURI, opts...))
	case TypeTransfer:
		return one(Fetch(ctx, c, uri, MapTransfer, TransferURI, opts...))
	case TypeCommittedTransfer:
		return one(Fetch(ctx, c, uri, MapCommittedTransfer, CommittedTransferURI, opts...))
	case TypeCreditor:
		return one(Fetch(ctx, c, uri, MapCreditor, CreditorURI, opts...))
	case TypePinInfo:
		return one(Fetch(ctx, c, uri, MapPinInfo, PinInfoURI, opts...))
	default:
		return nil, fault.New(fault.KindWrongObjectType, "fetch object",
			fmt.Sprintf("unsupported object type %q", objectType))
	}
}

// IsStorable reports whether objects of the given family are kept locally.
func IsStorable(objectType string) bool {
	switch objectType {
	case TypeAccount, TypeAccountDisplay, TypeAccountConfig, TypeAccountExchange,
		TypeAccountKnowledge, TypeAccountLedger, TypeAccountInfo, TypeTransfer,
		TypeCommittedTransfer, TypeCreditor, TypePinInfo:
		return true
	}
	return false
}
