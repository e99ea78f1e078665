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
	"github.com/roach88/creditors/internal/transport"
)

// change is the net effect of the log entries about one object.
type change struct {
	entry   canonical.LogEntry
	deleted bool
	objects []canonical.Object
}

// stream applies log pages starting at the cursor until a page without a
// next link has been applied.
func (s *Synchronizer) stream(ctx context.Context, userID int64, ls records.LogStream) error {
	for {
		page, err := canonical.Fetch(ctx, s.client, ls.ForthcomingURI, canonical.MapLogEntriesPage,
			canonical.LogEntriesPageURI, transport.WithTimeout(s.pageTimeout))
		if err != nil {
			return err
		}
		next, err := s.applyPage(ctx, userID, ls, page)
		if err != nil {
			return err
		}
		if page.Next == "" {
			return nil
		}
		ls = next
	}
}

// applyPage applies one log page and advances the cursor past it.
func (s *Synchronizer) applyPage(ctx context.Context, userID int64, ls records.LogStream, page *canonical.LogEntriesPage) (records.LogStream, error) {
	if err := checkContiguous(ls.LatestEntryID, page.Items); err != nil {
		broken := ls
		broken.IsBroken = true
		if serr := s.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.UpdateLogStream(ctx, userID, broken)
		}); serr != nil {
			return ls, fmt.Errorf("mark log stream broken: %w", serr)
		}
		s.logger.Error("log stream broken", "user_id", userID, "page", page.URI, "error", err)
		return broken, err
	}

	changes, err := s.plan(ctx, userID, collapse(page.Items))
	if err != nil {
		return ls, err
	}

	next := ls
	if n := len(page.Items); n > 0 {
		next.LatestEntryID = page.Items[n-1].EntryID
	}
	switch {
	case page.Next != "":
		next.ForthcomingURI = page.Next
	case page.Forthcoming != "":
		next.ForthcomingURI = page.Forthcoming
	}
	if next == ls {
		return ls, nil
	}

	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.GetWallet(ctx, userID)
		if err != nil {
			return err
		}
		if cur.LogStream != ls {
			return fault.New(fault.KindConflictingUpdate, "apply log page",
				"log stream cursor moved during sync")
		}
		for _, c := range changes {
			if err := s.applyChange(ctx, tx, userID, c); err != nil {
				return err
			}
		}
		return tx.UpdateLogStream(ctx, userID, next)
	})
	if err != nil {
		return ls, err
	}
	s.logger.Debug("log page applied", "user_id", userID, "entries", len(page.Items),
		"changes", len(changes), "entry_id", next.LatestEntryID)
	return next, nil
}

// checkContiguous requires items to continue exactly after latest.
func checkContiguous(latest int64, items []canonical.LogEntry) error {
	want := latest + 1
	for _, e := range items {
		if e.EntryID != want {
			return fault.New(fault.KindBrokenLogStream, "apply log page",
				fmt.Sprintf("expected entry %d, got %d", want, e.EntryID))
		}
		want++
	}
	return nil
}

// collapse keeps the last entry about each object, in order of that last
// appearance.
func collapse(items []canonical.LogEntry) []canonical.LogEntry {
	last := make(map[string]int, len(items))
	for i, e := range items {
		last[e.Object.URI] = i
	}
	out := make([]canonical.LogEntry, 0, len(last))
	for i, e := range items {
		if last[e.Object.URI] == i {
			out = append(out, e)
		}
	}
	return out
}

// plan turns collapsed entries into changes. Entries already reflected
// locally are skipped; inline deltas are applied to the stored object;
// everything else is fetched, a 404 meaning the object is gone.
func (s *Synchronizer) plan(ctx context.Context, userID int64, entries []canonical.LogEntry) ([]change, error) {
	var (
		changes []change
		fetches []int
	)
	for _, e := range entries {
		if !canonical.IsStorable(e.ObjectType) {
			continue
		}
		if e.Deleted {
			changes = append(changes, change{entry: e, deleted: true})
			continue
		}
		if e.ObjectUpdateID != nil {
			stored, ok, err := s.store.ObjectUpdateID(ctx, userID, e.Object.URI)
			if err != nil {
				return nil, err
			}
			if ok && stored >= *e.ObjectUpdateID {
				continue
			}
		}
		obj, err := s.inline(ctx, userID, e)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			changes = append(changes, change{entry: e, objects: []canonical.Object{obj}})
			continue
		}
		changes = append(changes, change{entry: e})
		fetches = append(fetches, len(changes)-1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, i := range fetches {
		c := &changes[i]
		g.Go(func() error {
			var opts []transport.Option
			if s.fetchTimeoutBase > 0 {
				opts = append(opts, transport.WithTimeout(s.fetchTimeoutBase))
			}
			objs, err := canonical.FetchObject(gctx, s.client, c.entry.ObjectType, c.entry.Object.URI, opts...)
			if fault.IsNotFound(err) {
				c.deleted = true
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch %s: %w", c.entry.Object.URI, err)
			}
			c.objects = objs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return changes, nil
}

// inline applies the entry's inline data to the stored object. It returns
// nil when the entry carries no data or the object is not stored yet.
func (s *Synchronizer) inline(ctx context.Context, userID int64, e canonical.LogEntry) (canonical.Object, error) {
	switch e.ObjectType {
	case canonical.TypeAccountLedger:
		d, ok, err := e.LedgerDelta()
		if err != nil || !ok {
			return nil, err
		}
		l, err := store.Get[*canonical.AccountLedger](ctx, s.store, userID, e.Object.URI)
		if fault.Is(err, fault.KindRecordDoesNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		next := *l
		next.Principal = d.Principal
		next.NextEntryID = d.NextEntryID
		stamp(&next.LatestUpdateID, &next.LatestUpdateAt, e)
		return &next, nil

	case canonical.TypeTransfer:
		d, ok, err := e.TransferDelta()
		if err != nil || !ok {
			return nil, err
		}
		t, err := store.Get[*canonical.Transfer](ctx, s.store, userID, e.Object.URI)
		if fault.Is(err, fault.KindRecordDoesNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		next := *t
		if d.FinalizedAt != nil {
			res := &canonical.TransferResult{
				Type:            "TransferResult",
				FinalizedAt:     *d.FinalizedAt,
				CommittedAmount: d.CommittedAmount,
			}
			if d.ErrorCode != nil {
				res.Error = &canonical.TransferError{Type: "TransferError", ErrorCode: *d.ErrorCode}
			}
			next.Result = res
		}
		stamp(&next.LatestUpdateID, &next.LatestUpdateAt, e)
		return &next, nil
	}
	return nil, nil
}

func stamp(id *int64, at *time.Time, e canonical.LogEntry) {
	if e.ObjectUpdateID != nil {
		*id = *e.ObjectUpdateID
	}
	*at = e.AddedAt
}

// applyChange writes one change inside the page transaction.
func (s *Synchronizer) applyChange(ctx context.Context, tx *store.Tx, userID int64, c change) error {
	uri := c.entry.Object.URI
	if c.deleted {
		if c.entry.ObjectType == canonical.TypeAccount {
			return tx.DeleteAccount(ctx, userID, uri)
		}
		return tx.DeleteObject(ctx, userID, uri)
	}
	return s.putObjects(ctx, tx, userID, c.objects)
}

// putObjects stores fetched objects and runs the follow-ups that depend on
// their family.
func (s *Synchronizer) putObjects(ctx context.Context, tx *store.Tx, userID int64, objects []canonical.Object) error {
	for _, obj := range objects {
		switch o := obj.(type) {
		case *canonical.Transfer:
			if err := s.putTransfer(ctx, tx, userID, o); err != nil {
				return err
			}
		case *canonical.AccountInfo:
			if err := tx.PutObject(ctx, userID, o); err != nil {
				return err
			}
			if err := s.ackAccountInfo(ctx, tx, userID, o); err != nil {
				return err
			}
		default:
			if err := tx.PutObject(ctx, userID, obj); err != nil {
				return err
			}
		}
	}
	return nil
}
