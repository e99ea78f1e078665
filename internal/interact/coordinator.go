package interact

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/creditors/internal/actions"
	"github.com/roach88/creditors/internal/fault"
)

// DefaultWaitingDelay is how long an operation may run before the
// waiting indicator is shown.
const DefaultWaitingDelay = 250 * time.Millisecond

// Route is where the user is taken after an operation.
type Route = actions.Outcome

// Presenter is the user interface the coordinator reports to.
type Presenter interface {
	ShowWaiting(on bool)
	Alert(a Alert)
	Navigate(r Route)
}

// Operation is a user-triggered operation. A zero Route means stay.
type Operation func(ctx context.Context) (Route, error)

// Coordinator runs user-triggered operations within a Session.
type Coordinator struct {
	session      *Session
	presenter    Presenter
	logger       *slog.Logger
	waitingDelay time.Duration
	resync       func(ctx context.Context) error

	// mu guards the waiting indicator. latest is the generation of the
	// newest interaction started by this coordinator.
	mu      sync.Mutex
	showing bool
	latest  uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithWaitingDelay sets how long an operation may run before the waiting
// indicator is shown.
func WithWaitingDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.waitingDelay = d }
}

// WithResync sets the function called when the log stream is found
// broken. It should reload the local replica from the server.
func WithResync(fn func(ctx context.Context) error) Option {
	return func(c *Coordinator) { c.resync = fn }
}

// NewCoordinator creates a Coordinator reporting to p.
func NewCoordinator(s *Session, p Presenter, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:      s,
		presenter:    p,
		logger:       slog.Default(),
		waitingDelay: DefaultWaitingDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs op as a new interaction, superseding earlier ones.
//
// When the interaction is still current once op returns, its route is
// followed or its error reported: anticipated errors become alerts,
// RecordDoesNotExist leads back to the action list, and anything else is
// logged, alerted as unexpected and returned. The outcome of a superseded
// interaction is discarded.
func (c *Coordinator) Do(ctx context.Context, name string, op Operation) error {
	it := c.begin()

	finished := false
	waiting := time.AfterFunc(c.waitingDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !finished && it.Current() && !c.showing {
			c.showing = true
			c.presenter.ShowWaiting(true)
		}
	})
	route, err := op(ctx)
	c.finish(it, waiting, &finished)

	if !it.Current() {
		c.logger.Debug("discarding superseded interaction", "interaction", name, "error", err)
		return nil
	}
	if err == nil {
		if route.Kind != 0 {
			c.presenter.Navigate(route)
		}
		return nil
	}

	if fault.Is(err, fault.KindRecordDoesNotExist) {
		c.logger.Info("record is gone", "interaction", name, "error", err)
		c.presenter.Navigate(Route{Kind: actions.OutcomeShowActions})
		return nil
	}
	alert, ok := AlertFor(err)
	if !ok {
		c.logger.Error("unexpected error", "interaction", name, "error", err)
		c.presenter.Alert(Alert{Kind: AlertUnexpected, Message: messages[AlertUnexpected], Err: err})
		return err
	}
	c.logger.Info("operation failed", "interaction", name, "alert", alert.Kind, "error", err)
	c.presenter.Alert(alert)

	if alert.Kind == AlertBrokenLogStream && c.resync != nil {
		if err := c.resync(ctx); err != nil {
			c.logger.Error("resync failed", "error", err)
			return err
		}
	}
	return nil
}

func (c *Coordinator) begin() Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := c.session.Begin()
	c.latest = it.generation
	return it
}

// finish stops the interaction's waiting timer. The newest interaction of
// the coordinator hides the indicator, whoever showed it; older ones leave
// it to the newest.
func (c *Coordinator) finish(it Interaction, waiting *time.Timer, finished *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*finished = true
	waiting.Stop()
	if c.showing && c.latest == it.generation {
		c.showing = false
		c.presenter.ShowWaiting(false)
	}
}
