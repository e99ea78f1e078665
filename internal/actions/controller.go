package actions

import (
	"context"
	"sync"
	"time"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// DefaultSaveDelay is how long a Controller waits after the last edit
// before saving.
const DefaultSaveDelay = 500 * time.Millisecond

// Controller owns the current version of one action while the user edits
// it. Edits are saved in the background, saveDelay after the last one.
// When the stored record changes underneath (another device resolved or
// deleted it) the pending save is dropped and the controller goes stale.
type Controller struct {
	m         *Manager
	saveDelay time.Duration

	mu      sync.Mutex
	current records.Action
	version int
	timer   *time.Timer
	stale   bool

	// saveMu serializes saves; saved and savedVersion are guarded by it.
	saveMu       sync.Mutex
	saved        records.Action
	savedVersion int
}

// Controller starts editing a stored action.
func (m *Manager) Controller(a records.Action, saveDelay time.Duration) *Controller {
	return &Controller{m: m, saveDelay: saveDelay, current: a, saved: a}
}

// Current returns the latest edited version.
func (c *Controller) Current() records.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stale reports whether the stored record changed underneath the edits.
func (c *Controller) Stale() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale
}

// Edit applies fn to the current version and schedules a save. Edits made
// after the controller went stale are ignored.
func (c *Controller) Edit(fn func(records.Action) records.Action) records.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale {
		return c.current
	}
	c.current = fn(c.current)
	c.version++
	if c.timer == nil {
		c.timer = time.AfterFunc(c.saveDelay, c.backgroundSave)
	} else {
		c.timer.Reset(c.saveDelay)
	}
	return c.current
}

func (c *Controller) backgroundSave() {
	if err := c.save(context.Background()); err != nil {
		c.m.logger.Warn("saving action edits failed", "action_id", c.Current().ActionID, "error", err)
	}
}

// Flush saves pending edits and waits for them. It returns the stored
// version, or RecordDoesNotExist when the controller went stale.
func (c *Controller) Flush(ctx context.Context) (records.Action, error) {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	if err := c.save(ctx); err != nil {
		return records.Action{}, err
	}
	if c.Stale() {
		return records.Action{}, fault.New(fault.KindRecordDoesNotExist, "flush action",
			"action changed underneath")
	}
	return c.Current(), nil
}

func (c *Controller) save(ctx context.Context) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	next, version, stale := c.current, c.version, c.stale
	c.mu.Unlock()
	if stale || version == c.savedVersion {
		return nil
	}

	err := c.m.replace(ctx, c.saved, next)
	if fault.Is(err, fault.KindRecordDoesNotExist) {
		c.m.logger.Debug("dropping stale action edits", "action_id", next.ActionID)
		c.mu.Lock()
		c.stale = true
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}
	c.saved, c.savedVersion = next, version
	return nil
}
