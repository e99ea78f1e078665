package logstream

import (
	"context"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/tasks"
)

// InfoChanges compares what the server reports about an account with what
// the user acknowledged last, as recorded in the account knowledge. A nil
// knowledge counts as nothing acknowledged.
func InfoChanges(info *canonical.AccountInfo, k *canonical.AccountKnowledge) records.InfoChanges {
	if k == nil {
		k = &canonical.AccountKnowledge{}
	}
	var c records.InfoChanges
	if k.InterestRateChangedAt == nil {
		c.InterestRate = info.InterestRate != 0
	} else {
		c.InterestRate = !k.InterestRateChangedAt.Equal(info.InterestRateChangedAt) ||
			k.InterestRate == nil || *k.InterestRate != info.InterestRate
	}
	c.Info = !sameIdentity(info.Identity, k.Identity) || !sameDebtorInfo(info.DebtorInfo, k.DebtorInfo)
	c.ConfigError = deref(info.ConfigError) != deref(k.ConfigError)
	return c
}

func sameIdentity(a, b *canonical.AccountIdentity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.URI == b.URI
}

func sameDebtorInfo(a, b *canonical.DebtorInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IRI == b.IRI && deref(a.ContentType) == deref(b.ContentType) && deref(a.SHA256) == deref(b.SHA256)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ackAccountInfo keeps the account's AckAccountInfo action in line with a
// newly stored AccountInfo: it is created or refreshed while the info
// diverges from the knowledge, and removed once it no longer does. A
// changed debtor info document is queued for fetching.
func (s *Synchronizer) ackAccountInfo(ctx context.Context, tx *store.Tx, userID int64, info *canonical.AccountInfo) error {
	accountURI := info.Account.URI
	objects, err := tx.ListAccountObjects(ctx, userID, accountURI)
	if err != nil {
		return err
	}
	var knowledge *canonical.AccountKnowledge
	for _, obj := range objects {
		if k, ok := obj.(*canonical.AccountKnowledge); ok {
			knowledge = k
		}
	}

	existing, found, err := tx.FindAccountAction(ctx, userID, records.ActionAckAccountInfo, accountURI)
	if err != nil {
		return err
	}
	changes := InfoChanges(info, knowledge)
	if !changes.Any() {
		if found {
			return tx.DeleteAction(ctx, existing.ActionID)
		}
		return nil
	}
	if found && existing.AckAccountInfo.InfoLatestUpdateID >= info.LatestUpdateID {
		return nil
	}

	ack := &records.AckAccountInfo{
		InfoLatestUpdateID:    info.LatestUpdateID,
		InterestRate:          info.InterestRate,
		InterestRateChangedAt: info.InterestRateChangedAt,
		Identity:              info.Identity,
		DebtorInfo:            info.DebtorInfo,
		ConfigError:           info.ConfigError,
		Changes:               changes,
	}
	if knowledge != nil {
		ack.PreviousInterestRate = knowledge.InterestRate
	}
	action := records.Action{
		UserID:         userID,
		Type:           records.ActionAckAccountInfo,
		CreatedAt:      s.now(),
		AccountURI:     accountURI,
		AckAccountInfo: ack,
	}
	if found {
		_, err = tx.ReplaceAccountAction(ctx, action)
	} else {
		_, _, err = tx.EnsureAccountAction(ctx, action)
	}
	if err != nil {
		return err
	}

	if changes.Info && info.DebtorInfo != nil && info.DebtorInfo.IRI != "" {
		err = tasks.ScheduleFetchDebtorInfo(ctx, tx, userID, info.DebtorInfo.IRI, accountURI, s.now())
	}
	return err
}
