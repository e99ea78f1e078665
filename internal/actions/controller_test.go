package actions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

func configAction(t *testing.T, f *fixture) records.Action {
	t.Helper()
	f.putAccount(testAccount(account1, "swpt:1", true))
	a, err := f.manager.EnsureUniqueAccountAction(f.ctx, records.ActionConfigAccount, account1)
	require.NoError(t, err)
	return a
}

func rename(name string) func(records.Action) records.Action {
	return func(a records.Action) records.Action { return a.WithEditedDebtorName(name) }
}

func TestController_FlushSavesEdits(t *testing.T) {
	f := newFixture(t)
	a := configAction(t, f)

	c := f.manager.Controller(a, time.Hour)
	c.Edit(rename("First"))
	c.Edit(rename("Second"))
	assert.Equal(t, "Demo Coin", f.action(a.ActionID).ConfigAccount.EditedDebtorName)

	saved, err := c.Flush(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "Second", saved.ConfigAccount.EditedDebtorName)
	assert.Equal(t, saved, f.action(a.ActionID))

	// Nothing new to save.
	_, err = c.Flush(f.ctx)
	require.NoError(t, err)
}

func TestController_SavesInBackground(t *testing.T) {
	f := newFixture(t)
	a := configAction(t, f)

	c := f.manager.Controller(a, 10*time.Millisecond)
	c.Edit(rename("Background"))

	require.Eventually(t, func() bool {
		return f.action(a.ActionID).ConfigAccount.EditedDebtorName == "Background"
	}, time.Second, 5*time.Millisecond)
}

func TestController_StaleSaveIsDropped(t *testing.T) {
	f := newFixture(t)
	a := configAction(t, f)

	c := f.manager.Controller(a, time.Hour)
	c.Edit(rename("Mine"))

	// Another device resolves the action first.
	require.NoError(t, f.store.DeleteAction(f.ctx, a.ActionID))

	_, err := c.Flush(f.ctx)
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist), "got %v", err)
	assert.True(t, c.Stale())

	// Further edits are ignored.
	got := c.Edit(rename("Ignored"))
	assert.Equal(t, "Mine", got.ConfigAccount.EditedDebtorName)
}

func TestController_StaleAfterConcurrentEdit(t *testing.T) {
	f := newFixture(t)
	a := configAction(t, f)

	c := f.manager.Controller(a, time.Hour)
	require.NoError(t, f.manager.replace(f.ctx, a, a.WithEditedNegligibleAmount(7)))
	c.Edit(rename("Mine"))

	_, err := c.Flush(f.ctx)
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
	assert.Equal(t, 7.0, f.action(a.ActionID).ConfigAccount.EditedNegligibleAmount)
	assert.Equal(t, "Demo Coin", f.action(a.ActionID).ConfigAccount.EditedDebtorName)
}
