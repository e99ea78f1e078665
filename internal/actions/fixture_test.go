package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/debtorinfo"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/testutil"
	"github.com/roach88/creditors/internal/transport"
	"github.com/roach88/creditors/internal/transport/transporttest"
)

const (
	base              = "https://demo.example.com/creditors/1/"
	walletURI         = base + "wallet"
	pinURI            = base + "pin"
	createAccountURI  = base + "create-account"
	createTransferURI = base + "create-transfer"
	account1          = base + "accounts/1/"
	account2          = base + "accounts/2/"
	coin2InfoURI      = "https://demo.example.com/debtors/2/public"
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *store.Store
	server  *transporttest.Server
	clock   *testutil.FakeClock
	tokens  *testutil.SequenceTokens
	index   *accounts.Index
	manager *Manager
	userID  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	f := &fixture{
		t:      t,
		ctx:    ctx,
		store:  s,
		server: transporttest.New(),
		clock:  testutil.NewFakeClock(testutil.Epoch),
		tokens: testutil.NewSequenceTokens(),
	}
	require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
		w, _, err := tx.CreateWallet(ctx, canonical.Wallet{
			URI:            walletURI,
			Type:           canonical.TypeWallet,
			PinInfo:        canonical.ObjectReference{URI: pinURI},
			CreateAccount:  canonical.ObjectReference{URI: createAccountURI},
			CreateTransfer: canonical.ObjectReference{URI: createTransferURI},
		})
		f.userID = w.UserID
		return err
	}))

	f.index = accounts.New(s, f.userID)
	require.NoError(t, f.index.Load(ctx))
	t.Cleanup(f.index.Close)

	f.manager = New(s, f.server, f.index, f.userID,
		WithClock(f.clock.Now),
		WithTokens(f.tokens),
	)
	return f
}

func testAccount(uri, debtorURI string, knownDebtor bool) *canonical.Account {
	ref := canonical.ObjectReference{URI: uri}
	name := "Demo Coin"
	unit := "USD"
	return &canonical.Account{
		URI:    uri,
		Type:   canonical.TypeAccount,
		Debtor: canonical.DebtorIdentity{Type: "DebtorIdentity", URI: debtorURI},
		Display: canonical.AccountDisplay{
			URI: uri + "display", Type: canonical.TypeAccountDisplay, Account: ref,
			DebtorName: &name, AmountDivisor: 100, DecimalPlaces: 2, Unit: &unit,
			KnownDebtor: knownDebtor, LatestUpdateID: 1,
		},
		Config:    canonical.AccountConfig{URI: uri + "config", Type: canonical.TypeAccountConfig, Account: ref, NegligibleAmount: 1, LatestUpdateID: 1},
		Exchange:  canonical.AccountExchange{URI: uri + "exchange", Type: canonical.TypeAccountExchange, Account: ref, LatestUpdateID: 1},
		Knowledge: canonical.AccountKnowledge{URI: uri + "knowledge", Type: canonical.TypeAccountKnowledge, Account: ref, LatestUpdateID: 1},
		Ledger:    canonical.AccountLedger{URI: uri + "ledger", Type: canonical.TypeAccountLedger, Account: ref, Principal: 1000, LatestUpdateID: 1},
		Info: canonical.AccountInfo{
			URI: uri + "info", Type: canonical.TypeAccountInfo, Account: ref,
			Identity:       &canonical.AccountIdentity{Type: "AccountIdentity", URI: debtorURI + "/7"},
			LatestUpdateID: 1,
		},
		LatestUpdateID: 1,
	}
}

// putAccount stores an account the way the log stream would.
func (f *fixture) putAccount(a *canonical.Account) {
	f.t.Helper()
	core, subs := a.Split()
	require.NoError(f.t, f.store.WithTx(f.ctx, func(tx *store.Tx) error {
		for _, obj := range append([]canonical.Object{core}, subs...) {
			if err := tx.PutObject(f.ctx, f.userID, obj); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (f *fixture) putTransfer(uri string, result *canonical.TransferResult) {
	f.t.Helper()
	require.NoError(f.t, f.store.WithTx(f.ctx, func(tx *store.Tx) error {
		return tx.PutObject(f.ctx, f.userID, testTransfer(uri, "00000000-0000-4000-8000-000000000099", result))
	}))
}

func testTransfer(uri, uuid string, result *canonical.TransferResult) *canonical.Transfer {
	return &canonical.Transfer{
		URI:            uri,
		Type:           canonical.TypeTransfer,
		TransferUUID:   uuid,
		Amount:         250,
		Recipient:      canonical.AccountIdentity{Type: "AccountIdentity", URI: "swpt:1/2"},
		NoteFormat:     "PAYREF0",
		Note:           "ref-1\nLunch",
		Options:        canonical.TransferOptions{Type: "TransferOptions"},
		Result:         result,
		LatestUpdateID: 1,
	}
}

// echo answers PATCH requests on uri with the request body, as the server
// does when it accepts an update.
func (f *fixture) echo(uri, accountURI string) {
	f.server.Handle(http.MethodPatch, uri, func(req transporttest.Request) (*transport.Response, error) {
		var body map[string]any
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return nil, err
		}
		body["uri"] = uri
		if accountURI != "" {
			body["account"] = map[string]string{"uri": accountURI}
		}
		return transporttest.JSON(uri, body), nil
	})
}

func (f *fixture) echoAccount(accountURI string) {
	for _, sub := range []string{"display", "config", "exchange", "knowledge"} {
		f.echo(accountURI+sub, accountURI)
	}
}

func (f *fixture) action(id int64) records.Action {
	f.t.Helper()
	a, err := f.store.GetAction(f.ctx, id)
	require.NoError(f.t, err)
	return a
}

// serveCoinInfo serves the debtor info document of debtor swpt:2.
func (f *fixture) serveCoinInfo() {
	doc := `{
		"type": "CoinInfo",
		"uri": "` + coin2InfoURI + `",
		"revision": 1,
		"debtorIdentity": {"type": "DebtorIdentity", "uri": "swpt:2"},
		"latestDebtorInfo": {"uri": "` + coin2InfoURI + `"},
		"debtorName": "Second Coin",
		"amountDivisor": 1000,
		"decimalPlaces": 3,
		"unit": "EUR"
	}`
	f.server.Handle(http.MethodGet, coin2InfoURI, func(transporttest.Request) (*transport.Response, error) {
		return &transport.Response{
			URL:    coin2InfoURI,
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": {debtorinfo.ContentType}},
			Body:   []byte(doc),
		}, nil
	})
}
