package canonical

import (
	"encoding/json"
	"time"
)

// Object family names. Stored objects are tagged with the family, never
// with the versioned wire discriminant ("Account-v2" is stored as "Account").
const (
	TypeWallet            = "Wallet"
	TypeCreditor          = "Creditor"
	TypePinInfo           = "PinInfo"
	TypeAccount           = "Account"
	TypeAccountDisplay    = "AccountDisplay"
	TypeAccountConfig     = "AccountConfig"
	TypeAccountExchange   = "AccountExchange"
	TypeAccountKnowledge  = "AccountKnowledge"
	TypeAccountLedger     = "AccountLedger"
	TypeAccountInfo       = "AccountInfo"
	TypeTransfer          = "Transfer"
	TypeCommittedTransfer = "CommittedTransfer"
	TypeLedgerEntry       = "LedgerEntry"
	TypeLogEntry          = "LogEntry"
	TypeLogEntriesPage    = "LogEntriesPage"
	TypeObjectRefsPage    = "ObjectReferencesPage"
	TypeTransfersList     = "TransfersList"
	TypeAccountsList      = "AccountsList"
)

// Object is implemented by every server resource kept in local storage.
type Object interface {
	// ObjectURI returns the absolute URI of the resource.
	ObjectURI() string
	// ObjectType returns the family name (see the Type* constants).
	ObjectType() string
	// UpdateID returns the server-assigned latestUpdateId.
	UpdateID() int64
	// OwnerAccount returns the URI of the owning account for account
	// sub-objects and the account itself, or "" otherwise.
	OwnerAccount() string
}

// ObjectReference points at another resource.
type ObjectReference struct {
	URI string `json:"uri"`
}

// PaginatedList describes the first page of a paginated collection.
type PaginatedList struct {
	Type       string `json:"type"`
	First      string `json:"first"`
	ItemsType  string `json:"itemsType"`
	TotalItems *int64 `json:"totalItems,omitempty"`
}

// PaginatedStream describes a log stream with a forthcoming cursor.
type PaginatedStream struct {
	Type        string `json:"type"`
	First       string `json:"first"`
	Forthcoming string `json:"forthcoming"`
	ItemsType   string `json:"itemsType"`
}

// Wallet holds the entrypoints of every collection resource of a user.
type Wallet struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Creditor       ObjectReference `json:"creditor"`
	PinInfo        ObjectReference `json:"pinInfo"`
	Log            PaginatedStream `json:"log"`
	AccountsList   ObjectReference `json:"accountsList"`
	TransfersList  ObjectReference `json:"transfersList"`
	CreateAccount  ObjectReference `json:"createAccount"`
	CreateTransfer ObjectReference `json:"createTransfer"`
	DebtorLookup   ObjectReference `json:"debtorLookup"`
	AccountLookup  ObjectReference `json:"accountLookup"`
	RequirePin     bool            `json:"requirePin"`

	// LogLatestEntryID is the entryId of the latest log entry at the time
	// the wallet was served.
	LogLatestEntryID int64 `json:"logLatestEntryId"`
}

// Creditor is the user's creditor record.
type Creditor struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Wallet         ObjectReference `json:"wallet"`
	CreatedAt      time.Time       `json:"createdAt"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (c *Creditor) ObjectURI() string    { return c.URI }
func (c *Creditor) ObjectType() string   { return TypeCreditor }
func (c *Creditor) UpdateID() int64      { return c.LatestUpdateID }
func (c *Creditor) OwnerAccount() string { return "" }

// PinInfo reports whether a PIN protects the wallet.
type PinInfo struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Wallet         ObjectReference `json:"wallet"`
	Status         string          `json:"status"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (p *PinInfo) ObjectURI() string    { return p.URI }
func (p *PinInfo) ObjectType() string   { return TypePinInfo }
func (p *PinInfo) UpdateID() int64      { return p.LatestUpdateID }
func (p *PinInfo) OwnerAccount() string { return "" }

// PIN statuses.
const (
	PinStatusOff     = "off"
	PinStatusOn      = "on"
	PinStatusBlocked = "blocked"
)

// DebtorIdentity identifies a currency issuer.
type DebtorIdentity struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// AccountIdentity identifies an account with a debtor.
type AccountIdentity struct {
	Type string `json:"type"`
	URI  string `json:"uri"`
}

// DebtorInfo points at the debtor's self-published info document.
type DebtorInfo struct {
	Type        string  `json:"type"`
	IRI         string  `json:"iri"`
	ContentType *string `json:"contentType,omitempty"`
	SHA256      *string `json:"sha256,omitempty"`
}

// Account is the composite account resource as served by the server.
type Account struct {
	URI            string           `json:"uri"`
	Type           string           `json:"type"`
	Debtor         DebtorIdentity   `json:"debtor"`
	AccountsList   ObjectReference  `json:"accountsList"`
	Display        AccountDisplay   `json:"display"`
	Config         AccountConfig    `json:"config"`
	Exchange       AccountExchange  `json:"exchange"`
	Knowledge      AccountKnowledge `json:"knowledge"`
	Ledger         AccountLedger    `json:"ledger"`
	Info           AccountInfo      `json:"info"`
	LatestUpdateAt time.Time        `json:"latestUpdateAt"`
	LatestUpdateID int64            `json:"latestUpdateId"`
}

// AccountCore is the account resource with its sub-objects replaced by
// references. It is what local storage keeps under the account URI.
type AccountCore struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Debtor         DebtorIdentity  `json:"debtor"`
	AccountsList   ObjectReference `json:"accountsList"`
	Display        ObjectReference `json:"display"`
	Config         ObjectReference `json:"config"`
	Exchange       ObjectReference `json:"exchange"`
	Knowledge      ObjectReference `json:"knowledge"`
	Ledger         ObjectReference `json:"ledger"`
	Info           ObjectReference `json:"info"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (a *AccountCore) ObjectURI() string    { return a.URI }
func (a *AccountCore) ObjectType() string   { return TypeAccount }
func (a *AccountCore) UpdateID() int64      { return a.LatestUpdateID }
func (a *AccountCore) OwnerAccount() string { return a.URI }

// Split separates the composite account into its core and sub-objects.
func (a *Account) Split() (*AccountCore, []Object) {
	core := &AccountCore{
		URI:            a.URI,
		Type:           a.Type,
		Debtor:         a.Debtor,
		AccountsList:   a.AccountsList,
		Display:        ObjectReference{URI: a.Display.URI},
		Config:         ObjectReference{URI: a.Config.URI},
		Exchange:       ObjectReference{URI: a.Exchange.URI},
		Knowledge:      ObjectReference{URI: a.Knowledge.URI},
		Ledger:         ObjectReference{URI: a.Ledger.URI},
		Info:           ObjectReference{URI: a.Info.URI},
		LatestUpdateAt: a.LatestUpdateAt,
		LatestUpdateID: a.LatestUpdateID,
	}
	display, config, exchange := a.Display, a.Config, a.Exchange
	knowledge, ledger, info := a.Knowledge, a.Ledger, a.Info
	return core, []Object{&display, &config, &exchange, &knowledge, &ledger, &info}
}

// AccountDisplay controls how amounts of the account's currency are shown.
type AccountDisplay struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Account        ObjectReference `json:"account"`
	DebtorName     *string         `json:"debtorName,omitempty"`
	DecimalPlaces  int64           `json:"decimalPlaces"`
	Unit           *string         `json:"unit,omitempty"`
	AmountDivisor  float64         `json:"amountDivisor"`
	KnownDebtor    bool            `json:"knownDebtor"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (d *AccountDisplay) ObjectURI() string    { return d.URI }
func (d *AccountDisplay) ObjectType() string   { return TypeAccountDisplay }
func (d *AccountDisplay) UpdateID() int64      { return d.LatestUpdateID }
func (d *AccountDisplay) OwnerAccount() string { return d.Account.URI }

// AccountConfig holds the user's configuration for an account.
type AccountConfig struct {
	URI                  string          `json:"uri"`
	Type                 string          `json:"type"`
	Account              ObjectReference `json:"account"`
	ScheduledForDeletion bool            `json:"scheduledForDeletion"`
	NegligibleAmount     float64         `json:"negligibleAmount"`
	AllowUnsafeDeletion  bool            `json:"allowUnsafeDeletion"`
	LatestUpdateAt       time.Time       `json:"latestUpdateAt"`
	LatestUpdateID       int64           `json:"latestUpdateId"`
}

func (c *AccountConfig) ObjectURI() string    { return c.URI }
func (c *AccountConfig) ObjectType() string   { return TypeAccountConfig }
func (c *AccountConfig) UpdateID() int64      { return c.LatestUpdateID }
func (c *AccountConfig) OwnerAccount() string { return c.Account.URI }

// CurrencyPeg pegs the account's currency to another account's currency.
type CurrencyPeg struct {
	Type         string          `json:"type"`
	ExchangeRate float64         `json:"exchangeRate"`
	Account      ObjectReference `json:"account"`
}

// AccountExchange holds the automatic exchange policy of an account.
type AccountExchange struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Account        ObjectReference `json:"account"`
	Policy         *string         `json:"policy,omitempty"`
	MinPrincipal   int64           `json:"minPrincipal"`
	MaxPrincipal   int64           `json:"maxPrincipal"`
	Peg            *CurrencyPeg    `json:"peg,omitempty"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (e *AccountExchange) ObjectURI() string    { return e.URI }
func (e *AccountExchange) ObjectType() string   { return TypeAccountExchange }
func (e *AccountExchange) UpdateID() int64      { return e.LatestUpdateID }
func (e *AccountExchange) OwnerAccount() string { return e.Account.URI }

// PegDisplay is how the peg's currency is displayed.
type PegDisplay struct {
	AmountDivisor float64 `json:"amountDivisor"`
	DecimalPlaces int64   `json:"decimalPlaces"`
	Unit          string  `json:"unit"`
}

// Peg is a currency peg declared by a debtor.
type Peg struct {
	ExchangeRate     float64         `json:"exchangeRate"`
	DebtorIdentity   ObjectReference `json:"debtorIdentity"`
	LatestDebtorInfo ObjectReference `json:"latestDebtorInfo"`
	Display          PegDisplay      `json:"display"`
}

// DebtorData is what the user knows about a debtor, usually obtained from
// the debtor's info document.
type DebtorData struct {
	DebtorName         string           `json:"debtorName"`
	Summary            string           `json:"summary,omitempty"`
	DebtorHomepage     *ObjectReference `json:"debtorHomepage,omitempty"`
	AmountDivisor      float64          `json:"amountDivisor"`
	DecimalPlaces      int64            `json:"decimalPlaces"`
	Unit               string           `json:"unit"`
	Peg                *Peg             `json:"peg,omitempty"`
	WillNotChangeUntil *time.Time       `json:"willNotChangeUntil,omitempty"`
	LatestDebtorInfo   ObjectReference  `json:"latestDebtorInfo"`
	DebtorIdentity     ObjectReference  `json:"debtorIdentity"`
	Revision           int64            `json:"revision"`
}

// AccountKnowledge stores client-maintained knowledge about the account.
// The server treats its content as opaque.
type AccountKnowledge struct {
	URI                   string           `json:"uri"`
	Type                  string           `json:"type"`
	Account               ObjectReference  `json:"account"`
	InterestRate          *float64         `json:"interestRate,omitempty"`
	InterestRateChangedAt *time.Time       `json:"interestRateChangedAt,omitempty"`
	Identity              *AccountIdentity `json:"identity,omitempty"`
	DebtorInfo            *DebtorInfo      `json:"debtorInfo,omitempty"`
	ConfigError           *string          `json:"configError,omitempty"`
	DebtorData            *DebtorData      `json:"debtorData,omitempty"`
	LatestUpdateAt        time.Time        `json:"latestUpdateAt"`
	LatestUpdateID        int64            `json:"latestUpdateId"`
}

func (k *AccountKnowledge) ObjectURI() string    { return k.URI }
func (k *AccountKnowledge) ObjectType() string   { return TypeAccountKnowledge }
func (k *AccountKnowledge) UpdateID() int64      { return k.LatestUpdateID }
func (k *AccountKnowledge) OwnerAccount() string { return k.Account.URI }

// AccountLedger holds the account balance.
type AccountLedger struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Account        ObjectReference `json:"account"`
	Principal      int64           `json:"principal"`
	Interest       int64           `json:"interest"`
	Entries        PaginatedList   `json:"entries"`
	NextEntryID    int64           `json:"nextEntryId"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`
}

func (l *AccountLedger) ObjectURI() string    { return l.URI }
func (l *AccountLedger) ObjectType() string   { return TypeAccountLedger }
func (l *AccountLedger) UpdateID() int64      { return l.LatestUpdateID }
func (l *AccountLedger) OwnerAccount() string { return l.Account.URI }

// AccountInfo is what the server knows about the account.
type AccountInfo struct {
	URI                   string           `json:"uri"`
	Type                  string           `json:"type"`
	Account               ObjectReference  `json:"account"`
	InterestRate          float64          `json:"interestRate"`
	InterestRateChangedAt time.Time        `json:"interestRateChangedAt"`
	Identity              *AccountIdentity `json:"identity,omitempty"`
	DebtorInfo            *DebtorInfo      `json:"debtorInfo,omitempty"`
	ConfigError           *string          `json:"configError,omitempty"`
	NoteMaxBytes          int64            `json:"noteMaxBytes"`
	SafeToDelete          bool             `json:"safeToDelete"`
	LatestUpdateAt        time.Time        `json:"latestUpdateAt"`
	LatestUpdateID        int64            `json:"latestUpdateId"`
}

func (i *AccountInfo) ObjectURI() string    { return i.URI }
func (i *AccountInfo) ObjectType() string   { return TypeAccountInfo }
func (i *AccountInfo) UpdateID() int64      { return i.LatestUpdateID }
func (i *AccountInfo) OwnerAccount() string { return i.Account.URI }

// TransferOptions are the options a transfer was requested with.
type TransferOptions struct {
	Type            string     `json:"type"`
	MinInterestRate float64    `json:"minInterestRate"`
	Deadline        *time.Time `json:"deadline,omitempty"`
	LockedAmount    int64      `json:"lockedAmount"`
}

// TransferError describes why a transfer failed.
type TransferError struct {
	Type      string `json:"type"`
	ErrorCode string `json:"errorCode"`
}

// TransferResult is present once a transfer has been finalized.
type TransferResult struct {
	Type            string         `json:"type"`
	FinalizedAt     time.Time      `json:"finalizedAt"`
	Error           *TransferError `json:"error,omitempty"`
	CommittedAmount int64          `json:"committedAmount"`
}

// Transfer is an outgoing payment initiated by the user.
type Transfer struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	TransfersList  ObjectReference `json:"transfersList"`
	TransferUUID   string          `json:"transferUuid"`
	InitiatedAt    time.Time       `json:"initiatedAt"`
	Amount         int64           `json:"amount"`
	Recipient      AccountIdentity `json:"recipient"`
	NoteFormat     string          `json:"noteFormat"`
	Note           string          `json:"note"`
	Options        TransferOptions `json:"options"`
	Result         *TransferResult `json:"result,omitempty"`
	CheckupAt      *time.Time      `json:"checkupAt,omitempty"`
	LatestUpdateAt time.Time       `json:"latestUpdateAt"`
	LatestUpdateID int64           `json:"latestUpdateId"`

	// Aborted is local state: the user dismissed a failed transfer.
	Aborted bool `json:"aborted,omitempty"`
}

func (t *Transfer) ObjectURI() string    { return t.URI }
func (t *Transfer) ObjectType() string   { return TypeTransfer }
func (t *Transfer) UpdateID() int64      { return t.LatestUpdateID }
func (t *Transfer) OwnerAccount() string { return "" }

// IsConcluded reports whether the transfer can no longer change: it has
// committed successfully, or it failed and the user aborted it.
func (t *Transfer) IsConcluded() bool {
	if t.Result == nil {
		return false
	}
	return t.Result.Error == nil || t.Aborted
}

// IsFailed reports whether the transfer finalized with an error.
func (t *Transfer) IsFailed() bool {
	return t.Result != nil && t.Result.Error != nil
}

// CommittedTransfer is a transfer that affected one of the user's accounts.
type CommittedTransfer struct {
	URI            string          `json:"uri"`
	Type           string          `json:"type"`
	Account        ObjectReference `json:"account"`
	Sender         AccountIdentity `json:"sender"`
	Recipient      AccountIdentity `json:"recipient"`
	Amount         int64           `json:"amount"`
	NoteFormat     string          `json:"noteFormat"`
	Note           string          `json:"note"`
	CommittedAt    time.Time       `json:"committedAt"`
	LatestUpdateID int64           `json:"latestUpdateId,omitempty"`
}

func (c *CommittedTransfer) ObjectURI() string    { return c.URI }
func (c *CommittedTransfer) ObjectType() string   { return TypeCommittedTransfer }
func (c *CommittedTransfer) UpdateID() int64      { return c.LatestUpdateID }
func (c *CommittedTransfer) OwnerAccount() string { return c.Account.URI }

// LogEntry is one entry of the user's log stream.
type LogEntry struct {
	Type           string          `json:"type"`
	EntryID        int64           `json:"entryId"`
	AddedAt        time.Time       `json:"addedAt"`
	Object         ObjectReference `json:"object"`
	ObjectType     string          `json:"objectType"`
	ObjectUpdateID *int64          `json:"objectUpdateId,omitempty"`
	Deleted        bool            `json:"deleted"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// LogEntriesPage is one page of the log stream.
type LogEntriesPage struct {
	URI         string     `json:"uri"`
	Type        string     `json:"type"`
	Items       []LogEntry `json:"items"`
	Next        string     `json:"next,omitempty"`
	Forthcoming string     `json:"forthcoming,omitempty"`
}

// ObjectReferencesPage is one page of a list of references.
type ObjectReferencesPage struct {
	URI   string            `json:"uri"`
	Type  string            `json:"type"`
	Items []ObjectReference `json:"items"`
	Next  string            `json:"next,omitempty"`
}

// ObjectList is the entrypoint of a paginated list of references
// (TransfersList, AccountsList).
type ObjectList struct {
	URI       string          `json:"uri"`
	Type      string          `json:"type"`
	Wallet    ObjectReference `json:"wallet"`
	First     string          `json:"first"`
	ItemsType string          `json:"itemsType"`
}
