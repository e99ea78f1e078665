package logstream

import (
	"context"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
)

// Provision registers the wallet at walletURI and loads its replica.
// Provisioning a wallet that is already registered reprovisions it.
//
// Returns the local user id of the wallet.
func (s *Synchronizer) Provision(ctx context.Context, walletURI string) (int64, error) {
	wallet, err := canonical.Fetch(ctx, s.client, walletURI, canonical.MapWallet, canonical.WalletURI)
	if err != nil {
		return 0, err
	}
	var userID int64
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		w, _, err := tx.CreateWallet(ctx, *wallet)
		userID = w.UserID
		return err
	})
	if err != nil {
		return 0, err
	}
	return userID, s.reprovision(ctx, userID, wallet)
}

// Reprovision discards the user's replica and reloads it from the server:
// wallet entrypoints, creditor, PIN info and every account. The log cursor
// restarts at the wallet's forthcoming page and the transfer bootstrap runs
// again on the next Sync. Pending actions are kept.
func (s *Synchronizer) Reprovision(ctx context.Context, userID int64) error {
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return err
	}
	wallet, err := canonical.Fetch(ctx, s.client, w.Entrypoints.URI, canonical.MapWallet, canonical.WalletURI)
	if err != nil {
		return err
	}
	return s.reprovision(ctx, userID, wallet)
}

func (s *Synchronizer) reprovision(ctx context.Context, userID int64, wallet *canonical.Wallet) error {
	creditor, err := canonical.Fetch(ctx, s.client, wallet.Creditor.URI, canonical.MapCreditor, canonical.CreditorURI)
	if err != nil {
		return err
	}
	pin, err := canonical.Fetch(ctx, s.client, wallet.PinInfo.URI, canonical.MapPinInfo, canonical.PinInfoURI)
	if err != nil {
		return err
	}
	accountURIs, err := s.listRefs(ctx, wallet.AccountsList.URI, canonical.TypeAccountsList)
	if err != nil {
		return err
	}
	accounts, err := s.fetchAll(ctx, canonical.TypeAccount, accountURIs)
	if err != nil {
		return err
	}
	// Aborting a transfer is local state the server does not know about.
	aborted, err := s.abortedTransfers(ctx, userID)
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.ClearObjects(ctx, userID); err != nil {
			return err
		}
		for _, t := range aborted {
			if err := tx.PutObject(ctx, userID, t); err != nil {
				return err
			}
		}
		objects := []canonical.Object{creditor, pin}
		for _, objs := range accounts {
			objects = append(objects, objs...)
		}
		if err := s.putObjects(ctx, tx, userID, objects); err != nil {
			return err
		}
		return tx.PutWallet(ctx, records.Wallet{
			UserID:      userID,
			Entrypoints: *wallet,
			LogStream: records.LogStream{
				LatestEntryID:  wallet.LogLatestEntryID,
				ForthcomingURI: wallet.Log.Forthcoming,
			},
		})
	})
	if err != nil {
		return err
	}
	s.logger.Info("replica provisioned", "user_id", userID, "accounts", len(accountURIs),
		"entry_id", wallet.LogLatestEntryID)
	return nil
}

func (s *Synchronizer) abortedTransfers(ctx context.Context, userID int64) ([]*canonical.Transfer, error) {
	transfers, err := store.List[*canonical.Transfer](ctx, s.store, userID, canonical.TypeTransfer)
	if err != nil {
		return nil, err
	}
	var out []*canonical.Transfer
	for _, t := range transfers {
		if t.Aborted {
			out = append(out, t)
		}
	}
	return out, nil
}
