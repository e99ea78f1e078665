package logstream

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/testutil"
	"github.com/roach88/creditors/internal/transport/transporttest"
)

const (
	base       = "https://demo.example.com/creditors/1/"
	walletURI  = base + "wallet"
	logURI     = base + "log"
	account1   = base + "accounts/1/"
	transferA  = base + "transfers/a"
	transferB  = base + "transfers/b"
	startEntry = 5
)

func forthcoming(prev int) string {
	return logURI + "?prev=" + strconv.Itoa(prev)
}

type fixture struct {
	t      *testing.T
	store  *store.Store
	server *transporttest.Server
	clock  *testutil.FakeClock
	sync   *Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		t:      t,
		store:  s,
		server: transporttest.New(),
		clock:  testutil.NewFakeClock(time.Time{}),
	}
	f.sync = New(s, f.server,
		WithClock(f.clock.Now),
		WithMaxParallel(2),
		WithFetchTimeoutBase(time.Second),
	)
	f.serveWallet()
	return f
}

func (f *fixture) serveWallet() {
	f.server.Put(walletURI, canonical.Wallet{
		URI:              walletURI,
		Type:             canonical.TypeWallet,
		Creditor:         canonical.ObjectReference{URI: base},
		PinInfo:          canonical.ObjectReference{URI: base + "pin"},
		Log:              canonical.PaginatedStream{Type: "PaginatedStream", First: logURI, Forthcoming: forthcoming(startEntry), ItemsType: canonical.TypeLogEntry},
		LogLatestEntryID: startEntry,
		AccountsList:     canonical.ObjectReference{URI: base + "accounts-list"},
		TransfersList:    canonical.ObjectReference{URI: base + "transfers-list"},
	})
	f.server.Put(base, canonical.Creditor{URI: base, Type: canonical.TypeCreditor, LatestUpdateID: 1})
	f.server.Put(base+"pin", canonical.PinInfo{URI: base + "pin", Type: canonical.TypePinInfo, Status: canonical.PinStatusOff, LatestUpdateID: 1})

	f.server.Put(base+"accounts-list", canonical.ObjectList{URI: base + "accounts-list", Type: canonical.TypeAccountsList, First: base + "accounts/"})
	f.server.Put(base+"accounts/", canonical.ObjectReferencesPage{
		URI: base + "accounts/", Type: canonical.TypeObjectRefsPage,
		Items: []canonical.ObjectReference{{URI: account1}},
	})
	f.server.Put(account1, testAccount(account1, 1))

	f.server.Put(base+"transfers-list", canonical.ObjectList{URI: base + "transfers-list", Type: canonical.TypeTransfersList, First: base + "transfers/"})
	f.server.Put(base+"transfers/", canonical.ObjectReferencesPage{
		URI: base + "transfers/", Type: canonical.TypeObjectRefsPage,
		Items: []canonical.ObjectReference{{URI: transferA}, {URI: transferB}},
	})
	f.server.Put(transferA, testTransfer(transferA, 1, nil))
	// transferB is listed but answers 404.

	f.servePage(forthcoming(startEntry), nil, "", forthcoming(startEntry))
}

func (f *fixture) servePage(uri string, items []canonical.LogEntry, next, forthcomingURI string) {
	for i := range items {
		items[i].Type = canonical.TypeLogEntry
	}
	f.server.Put(uri, canonical.LogEntriesPage{
		URI:         uri,
		Type:        canonical.TypeLogEntriesPage,
		Items:       items,
		Next:        next,
		Forthcoming: forthcomingURI,
	})
}

// provision provisions the wallet and completes the first sync.
func (f *fixture) provision() int64 {
	f.t.Helper()
	ctx := context.Background()
	userID, err := f.sync.Provision(ctx, walletURI)
	require.NoError(f.t, err)
	require.NoError(f.t, f.sync.Sync(ctx, userID))
	return userID
}

func testAccount(uri string, updateID int64) canonical.Account {
	ref := canonical.ObjectReference{URI: uri}
	name := "Demo Coin"
	return canonical.Account{
		URI:    uri,
		Type:   canonical.TypeAccount,
		Debtor: canonical.DebtorIdentity{Type: "DebtorIdentity", URI: "swpt:1"},
		Display: canonical.AccountDisplay{
			URI: uri + "display", Type: canonical.TypeAccountDisplay, Account: ref,
			DebtorName: &name, AmountDivisor: 100, DecimalPlaces: 2, LatestUpdateID: updateID,
		},
		Config:    canonical.AccountConfig{URI: uri + "config", Type: canonical.TypeAccountConfig, Account: ref, LatestUpdateID: updateID},
		Exchange:  canonical.AccountExchange{URI: uri + "exchange", Type: canonical.TypeAccountExchange, Account: ref, LatestUpdateID: updateID},
		Knowledge: canonical.AccountKnowledge{URI: uri + "knowledge", Type: canonical.TypeAccountKnowledge, Account: ref, LatestUpdateID: updateID},
		Ledger: canonical.AccountLedger{
			URI: uri + "ledger", Type: canonical.TypeAccountLedger, Account: ref,
			Principal: 1000, NextEntryID: 1, LatestUpdateID: updateID,
		},
		Info:           testInfo(uri, updateID, nil),
		LatestUpdateID: updateID,
	}
}

func testInfo(accountURI string, updateID int64, debtorInfo *canonical.DebtorInfo) canonical.AccountInfo {
	return canonical.AccountInfo{
		URI:            accountURI + "info",
		Type:           canonical.TypeAccountInfo,
		Account:        canonical.ObjectReference{URI: accountURI},
		DebtorInfo:     debtorInfo,
		NoteMaxBytes:   500,
		LatestUpdateID: updateID,
	}
}

func testTransfer(uri string, updateID int64, result *canonical.TransferResult) canonical.Transfer {
	return canonical.Transfer{
		URI:            uri,
		Type:           canonical.TypeTransfer,
		TransfersList:  canonical.ObjectReference{URI: base + "transfers-list"},
		TransferUUID:   "123e4567-e89b-12d3-a456-426655440000",
		Amount:         250,
		Recipient:      canonical.AccountIdentity{Type: "AccountIdentity", URI: "swpt:1/2"},
		NoteFormat:     "",
		Options:        canonical.TransferOptions{Type: "TransferOptions"},
		Result:         result,
		LatestUpdateID: updateID,
	}
}

func updateID(n int64) *int64 {
	return &n
}
