package store

import (
	"context"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/pubsub"
	"github.com/roach88/creditors/internal/records"
)

// watch runs load once, then again after every commit for which touches
// reports true, publishing each result. A failed reload keeps the previous
// value and is logged.
func watch[T any](ctx context.Context, s *Store, name string, touches func([]Change) bool, load func(context.Context) (T, error)) (*pubsub.Topic[T], func(), error) {
	initial, err := load(ctx)
	if err != nil {
		return nil, nil, err
	}
	topic := pubsub.New(initial)
	bg := context.WithoutCancel(ctx)
	cancel := s.OnCommit(func(changes []Change) {
		if !touches(changes) {
			return
		}
		v, err := load(bg)
		if err != nil {
			s.logger.Warn("live query refresh failed", "query", name, "error", err)
			return
		}
		topic.Publish(v)
	})
	stop := func() {
		cancel()
		topic.Close()
	}
	return topic, stop, nil
}

// WatchActions returns a topic holding the user's actions in creation
// order, refreshed after every commit that changes them.
func (s *Store) WatchActions(ctx context.Context, userID int64) (*pubsub.Topic[[]records.Action], func(), error) {
	return watch(ctx, s, "actions",
		func(changes []Change) bool { return Touches(changes, ChangeAction, userID) },
		func(ctx context.Context) ([]records.Action, error) { return s.ListActions(ctx, userID) },
	)
}

// WatchTransfers returns a topic holding the user's transfers ordered by
// URI, refreshed after every commit that changes them.
func (s *Store) WatchTransfers(ctx context.Context, userID int64) (*pubsub.Topic[[]*canonical.Transfer], func(), error) {
	return watch(ctx, s, "transfers",
		func(changes []Change) bool {
			for _, c := range changes {
				if c.Kind == ChangeObject && c.UserID == userID &&
					(c.ObjectType == canonical.TypeTransfer || c.URI == "") {
					return true
				}
			}
			return false
		},
		func(ctx context.Context) ([]*canonical.Transfer, error) {
			return List[*canonical.Transfer](ctx, s, userID, canonical.TypeTransfer)
		},
	)
}
