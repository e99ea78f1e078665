package actions

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"github.com/roach88/creditors/internal/accounts"
	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/debtorinfo"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

// CreateCreateAccountAction starts adding an account for a scanned coin.
// When the debtor is already known the existing account is shown instead
// and no action is created.
func (m *Manager) CreateCreateAccountAction(ctx context.Context, debtorIdentityURI, debtorInfoURI string) (Outcome, error) {
	if err := checkCoinURI(debtorIdentityURI); err != nil {
		return Outcome{}, err
	}
	if accountURI, ok := m.index.AccountURI(debtorIdentityURI); ok {
		if d, ok := m.index.FullData(accountURI); ok && d.Display != nil && d.Display.KnownDebtor {
			return showAccount(accountURI), nil
		}
	}
	a, err := m.store.CreateAction(ctx, records.Action{
		UserID:    m.userID,
		Type:      records.ActionCreateAccount,
		CreatedAt: m.now(),
		CreateAccount: &records.CreateAccount{
			DebtorIdentityURI: debtorIdentityURI,
			DebtorInfoURI:     debtorInfoURI,
		},
	})
	if err != nil {
		return Outcome{}, err
	}
	m.logger.Info("created action", "action_id", a.ActionID, "action_type", a.Type)
	return showAction(a), nil
}

// creationTarget returns the debtor a CreateAccount or ApprovePeg action
// needs an account with, and the document describing it.
func creationTarget(a records.Action) (debtorURI, infoURI string, err error) {
	switch {
	case a.CreateAccount != nil:
		return a.CreateAccount.DebtorIdentityURI, a.CreateAccount.DebtorInfoURI, nil
	case a.ApprovePeg != nil:
		p := a.ApprovePeg.Peg
		return p.DebtorIdentity.URI, p.LatestDebtorInfo.URI, nil
	}
	return "", "", fmt.Errorf("action %d: %s does not create accounts", a.ActionID, a.Type)
}

func creationState(a records.Action) *records.AccountCreationState {
	switch {
	case a.CreateAccount != nil:
		return a.CreateAccount.State
	case a.ApprovePeg != nil:
		return a.ApprovePeg.State
	}
	return nil
}

// InitializeAccount runs the first stage of a CreateAccount or ApprovePeg
// action: it makes sure the account exists on the server and records the
// debtor data to confirm. The checkpoint is persisted with status
// ServerSideCreated, so a resumed action never creates the account again.
//
// Debtor data is taken, in order of preference, from the account
// knowledge when a debtor name is already confirmed, from the debtor info
// document the server reports for the account, or from the document the
// action was created with.
func (m *Manager) InitializeAccount(ctx context.Context, a records.Action) (records.Action, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return records.Action{}, err
	}
	if s := creationState(a); s != nil && s.Status != records.InitNotStarted {
		return a, nil
	}
	debtorURI, infoURI, err := creationTarget(a)
	if err != nil {
		return records.Action{}, err
	}

	d, err := m.ensureServerAccount(ctx, debtorURI)
	if err != nil {
		return records.Action{}, err
	}
	data, source, err := m.debtorData(ctx, d, infoURI)
	if err != nil {
		return records.Action{}, err
	}

	state := records.AccountCreationState{
		AccountURI:             d.URI(),
		DebtorData:             data,
		DebtorDataSource:       source,
		Status:                 records.InitServerSideCreated,
		EditedDebtorName:       data.DebtorName,
		EditedNegligibleAmount: d.Config.NegligibleAmount,
		TinyNegligibleAmount:   tinyAmount(data.AmountDivisor, data.DecimalPlaces),
	}
	if source == records.SourceKnowledge {
		state.EditedDebtorName = d.DebtorName()
		if d.Display.KnownDebtor {
			// Nothing left to confirm.
			state.Status = records.InitLocallyFinalized
			state.Confirmed = true
		}
	}
	if state.EditedNegligibleAmount < state.TinyNegligibleAmount {
		state.EditedNegligibleAmount = state.TinyNegligibleAmount
	}

	next := a.WithCreationState(state)
	if err := m.replace(ctx, a, next); err != nil {
		return records.Action{}, err
	}
	m.logger.Info("account initialized", "action_id", a.ActionID, "account_uri", d.URI(), "source", source)
	return next, nil
}

// ensureServerAccount returns the local account for debtorURI, creating it
// on the server first when it is not known. The server answers a repeated
// creation with the existing account.
func (m *Manager) ensureServerAccount(ctx context.Context, debtorURI string) (*accounts.FullData, error) {
	if accountURI, ok := m.index.AccountURI(debtorURI); ok {
		if d, err := m.account(accountURI); err == nil {
			return d, nil
		}
	}
	w, err := m.wallet(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := m.client.Post(ctx, w.Entrypoints.CreateAccount.URI,
		debtorIdentityBody{Type: "DebtorIdentity", URI: debtorURI})
	if err != nil {
		return nil, fault.FromHTTP("create account", err, http.StatusUnprocessableEntity)
	}
	account, err := canonical.FromResponse(resp, canonical.MapAccount, canonical.AccountURI)
	if err != nil {
		return nil, err
	}
	core, subs := account.Split()
	if err := m.store.WithTx(ctx, func(tx *store.Tx) error {
		return m.putObjects(ctx, tx, append([]canonical.Object{core}, subs...)...)
	}); err != nil {
		return nil, err
	}
	m.logger.Info("account created", "account_uri", core.URI, "debtor_uri", debtorURI)
	return m.account(core.URI)
}

func (m *Manager) debtorData(ctx context.Context, d *accounts.FullData, infoURI string) (canonical.DebtorData, records.DebtorDataSource, error) {
	if k := d.Knowledge; k.DebtorData != nil && d.DebtorName() != "" {
		return *k.DebtorData, records.SourceKnowledge, nil
	}
	if di := d.Info.DebtorInfo; di != nil && di.IRI != "" {
		data, err := m.loadDebtorInfo(ctx, di.IRI, d.DebtorURI())
		if err == nil {
			return data, records.SourceInfo, nil
		}
		if !fault.Is(err, fault.KindInvalidDocument) && fault.Class(fault.KindOf(err)) != fault.ClassTransport {
			return canonical.DebtorData{}, "", err
		}
		m.logger.Warn("falling back to coin document", "iri", di.IRI, "error", err)
	}
	if infoURI == "" {
		return canonical.DebtorData{}, "", fault.New(fault.KindInvalidDocument, "get debtor data",
			"no debtor info document for "+d.DebtorURI())
	}
	data, err := m.loadDebtorInfo(ctx, infoURI, d.DebtorURI())
	if err != nil {
		return canonical.DebtorData{}, "", err
	}
	return data, records.SourceURI, nil
}

// loadDebtorInfo parses the debtor info document at iri, fetching it when
// no copy is stored, and checks that it describes debtorURI.
func (m *Manager) loadDebtorInfo(ctx context.Context, iri, debtorURI string) (canonical.DebtorData, error) {
	doc, err := m.store.GetDocument(ctx, iri)
	if fault.Is(err, fault.KindRecordDoesNotExist) {
		doc, err = debtorinfo.Fetch(ctx, m.client, iri, m.now())
		if err == nil {
			err = m.store.PutDocument(ctx, doc)
		}
	}
	if err != nil {
		return canonical.DebtorData{}, err
	}
	data, err := m.parser.Parse(doc)
	if err != nil {
		return canonical.DebtorData{}, err
	}
	if accounts.DebtorKey(data.DebtorIdentity.URI) != accounts.DebtorKey(debtorURI) {
		return canonical.DebtorData{}, fault.New(fault.KindInvalidDocument, "load debtor info",
			fmt.Sprintf("%s describes %s, not %s", iri, data.DebtorIdentity.URI, debtorURI))
	}
	return data, nil
}

// tinyAmount is the smallest amount the display can show, in raw units.
func tinyAmount(divisor float64, decimalPlaces int64) float64 {
	if !(divisor > 0) {
		return 0
	}
	return divisor * math.Pow10(-int(decimalPlaces))
}

// ConfirmCreateAccount finishes account initialization with the user's
// confirmed name and negligible amount: the debtor data is saved in the
// account knowledge and the display and config are updated. A CreateAccount
// action is then deleted; an ApprovePeg action moves on to its approval
// stage.
func (m *Manager) ConfirmCreateAccount(ctx context.Context, a records.Action) (Outcome, error) {
	a, err := m.current(ctx, a)
	if err != nil {
		return Outcome{}, err
	}
	s := creationState(a)
	if s == nil || s.Status == records.InitNotStarted {
		return Outcome{}, fmt.Errorf("confirm account: action %d is not initialized", a.ActionID)
	}
	if s.Status == records.InitLocallyFinalized {
		if a.Type == records.ActionCreateAccount {
			if err := m.store.DeleteAction(ctx, a.ActionID); err != nil {
				return Outcome{}, err
			}
		}
		return m.afterConfirm(a, *s), nil
	}
	if s.EditedDebtorName == "" {
		return Outcome{}, fault.New(fault.KindInvalidDocument, "confirm account", "empty debtor name")
	}

	d, err := m.account(s.AccountURI)
	if fault.Is(err, fault.KindRecordDoesNotExist) {
		// The account was removed after initialization.
		return Outcome{}, m.dropAction(ctx, a, "account is gone")
	}
	if err != nil {
		return Outcome{}, err
	}

	if err := m.finalizeAccount(ctx, d, *s); err != nil {
		return Outcome{}, err
	}

	done := *s
	done.Status = records.InitLocallyFinalized
	done.Confirmed = true
	next := a.WithCreationState(done)
	err = m.store.WithTx(ctx, func(tx *store.Tx) error {
		if a.Type == records.ActionCreateAccount {
			return tx.DeleteAction(ctx, a.ActionID)
		}
		return tx.ReplaceAction(ctx, a, next)
	})
	if err != nil {
		return Outcome{}, err
	}
	m.logger.Info("account confirmed", "action_id", a.ActionID, "account_uri", s.AccountURI)
	return m.afterConfirm(next, done), nil
}

func (m *Manager) afterConfirm(a records.Action, s records.AccountCreationState) Outcome {
	if a.Type == records.ActionCreateAccount {
		return showAccount(s.AccountURI)
	}
	return showAction(a)
}

// finalizeAccount writes knowledge, display and config of a new account,
// storing each updated object as soon as the server accepts it. Knowledge
// already written by an interrupted attempt is not written again.
func (m *Manager) finalizeAccount(ctx context.Context, d *accounts.FullData, s records.AccountCreationState) error {
	data := s.DebtorData

	k := d.Knowledge
	if k.DebtorData == nil || k.DebtorData.Revision != data.Revision ||
		k.DebtorData.LatestDebtorInfo.URI != data.LatestDebtorInfo.URI {
		updated, err := patch(ctx, m, "update knowledge", k.URI, knowledgeBody{
			Type:                  canonical.TypeAccountKnowledge,
			InterestRate:          k.InterestRate,
			InterestRateChangedAt: k.InterestRateChangedAt,
			Identity:              k.Identity,
			DebtorInfo:            k.DebtorInfo,
			ConfigError:           k.ConfigError,
			DebtorData:            &data,
			LatestUpdateID:        k.LatestUpdateID + 1,
		}, canonical.MapAccountKnowledge, canonical.AccountKnowledgeURI)
		if err := m.save(ctx, updated, err); err != nil {
			return err
		}
	}

	name, unit := s.EditedDebtorName, data.Unit
	display, err := patch(ctx, m, "update display", d.Display.URI, displayBody{
		Type:           canonical.TypeAccountDisplay,
		DebtorName:     &name,
		AmountDivisor:  data.AmountDivisor,
		DecimalPlaces:  data.DecimalPlaces,
		Unit:           &unit,
		KnownDebtor:    true,
		LatestUpdateID: d.Display.LatestUpdateID + 1,
	}, canonical.MapAccountDisplay, canonical.AccountDisplayURI)
	if err := m.save(ctx, display, err); err != nil {
		return err
	}

	negligible := math.Max(s.EditedNegligibleAmount, s.TinyNegligibleAmount)
	config, err := patch(ctx, m, "update config", d.Config.URI, configBody{
		Type:                 canonical.TypeAccountConfig,
		ScheduledForDeletion: false,
		NegligibleAmount:     negligible,
		AllowUnsafeDeletion:  d.Config.AllowUnsafeDeletion,
		LatestUpdateID:       d.Config.LatestUpdateID + 1,
	}, canonical.MapAccountConfig, canonical.AccountConfigURI)
	return m.save(ctx, config, err)
}
