package logstream

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/tasks"
	"github.com/roach88/creditors/internal/transport"
)

// BatchTimeout bounds a batch of n fetches run at most p at a time:
// base * ceil(n/p).
func BatchTimeout(base time.Duration, n, p int) time.Duration {
	if n <= 0 {
		return 0
	}
	if p < 1 {
		p = 1
	}
	rounds := (n + p - 1) / p
	return base * time.Duration(rounds)
}

// listRefs walks a paginated reference list and returns every item URI.
func (s *Synchronizer) listRefs(ctx context.Context, listURI, family string) ([]string, error) {
	list, err := canonical.Fetch(ctx, s.client, listURI, canonical.MapObjectList(family),
		canonical.ObjectListURI, transport.WithTimeout(s.pageTimeout))
	if err != nil {
		return nil, err
	}

	var uris []string
	seen := map[string]bool{}
	for next := list.First; next != ""; {
		if seen[next] {
			return nil, fault.New(fault.KindInvalidDocument, "list "+family,
				fmt.Sprintf("page %s repeats", next))
		}
		seen[next] = true
		page, err := canonical.Fetch(ctx, s.client, next, canonical.MapObjectReferencesPage,
			canonical.ObjectRefsPageURI, transport.WithTimeout(s.pageTimeout))
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			uris = append(uris, item.URI)
		}
		next = page.Next
	}
	return uris, nil
}

// fetchAll fetches every URI in parallel, at most maxParallel at a time and
// within BatchTimeout. An object that answers 404 is dropped. Results keep
// the order of uris; a dropped object leaves a nil slot.
func (s *Synchronizer) fetchAll(ctx context.Context, objectType string, uris []string) ([][]canonical.Object, error) {
	if len(uris) == 0 {
		return nil, nil
	}
	if d := BatchTimeout(s.fetchTimeoutBase, len(uris), s.maxParallel); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	results := make([][]canonical.Object, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for i, uri := range uris {
		i, uri := i, uri
		g.Go(func() error {
			objs, err := canonical.FetchObject(gctx, s.client, objectType, uri)
			if fault.IsNotFound(err) {
				s.logger.Debug("object gone", "uri", uri, "object_type", objectType)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w", uri, err)
			}
			results[i] = objs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// loadTransfers fetches every transfer not already concluded locally and
// marks the bootstrap complete in the same transaction.
func (s *Synchronizer) loadTransfers(ctx context.Context, w records.Wallet) error {
	uris, err := s.listRefs(ctx, w.Entrypoints.TransfersList.URI, canonical.TypeTransfersList)
	if err != nil {
		return err
	}

	var pending []string
	for _, uri := range uris {
		t, err := store.Get[*canonical.Transfer](ctx, s.store, w.UserID, uri)
		switch {
		case err == nil && t.IsConcluded():
			continue
		case err != nil && !fault.Is(err, fault.KindRecordDoesNotExist):
			return err
		}
		pending = append(pending, uri)
	}

	fetched, err := s.fetchAll(ctx, canonical.TypeTransfer, pending)
	if err != nil {
		return err
	}

	loaded := 0
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		for _, objs := range fetched {
			for _, obj := range objs {
				if err := s.putTransfer(ctx, tx, w.UserID, obj.(*canonical.Transfer)); err != nil {
					return err
				}
				loaded++
			}
		}
		cur, err := tx.GetWallet(ctx, w.UserID)
		if err != nil {
			return err
		}
		ls := cur.LogStream
		ls.LoadedTransfers = true
		return tx.UpdateLogStream(ctx, w.UserID, ls)
	})
	if err != nil {
		return err
	}
	s.logger.Info("transfers loaded", "user_id", w.UserID, "listed", len(uris), "loaded", loaded)
	return nil
}

// putTransfer stores a transfer fetched from the server. The local Aborted
// flag survives, and a successful transfer gets its server-side deletion
// scheduled.
func (s *Synchronizer) putTransfer(ctx context.Context, tx *store.Tx, userID int64, t *canonical.Transfer) error {
	prev, err := store.Get[*canonical.Transfer](ctx, tx, userID, t.URI)
	switch {
	case err == nil:
		t.Aborted = t.Aborted || prev.Aborted
	case !fault.Is(err, fault.KindRecordDoesNotExist):
		return err
	}
	if err := tx.PutObject(ctx, userID, t); err != nil {
		return err
	}
	if t.Result == nil || t.Result.Error != nil {
		return nil
	}
	return tasks.ScheduleDeleteTransfer(ctx, tx, userID, t.URI, t.Result.FinalizedAt.Add(s.transferDeletionDelay))
}
