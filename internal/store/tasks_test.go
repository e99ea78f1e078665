package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/records"
)

func deleteTransferTask(userID int64, uri string, at time.Time) records.Task {
	return records.Task{
		UserID:       userID,
		Type:         records.TaskDeleteTransfer,
		ScheduledFor: at,
		TransferURI:  uri,
	}
}

func TestPutTask_Dedup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	first, inserted, err := s.PutTask(ctx, deleteTransferTask(userID, "https://x/transfers/1", at))
	require.NoError(t, err)
	assert.True(t, inserted)

	second, inserted, err := s.PutTask(ctx, deleteTransferTask(userID, "https://x/transfers/1", at.Add(time.Hour)))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.TaskID, second.TaskID)
	assert.True(t, second.ScheduledFor.Equal(at))

	fetch := records.Task{
		UserID:       userID,
		Type:         records.TaskFetchDebtorInfo,
		ScheduledFor: at,
		IRI:          "https://x/debtors/1/public",
		AccountURI:   testAccountURI,
	}
	_, inserted, err = s.PutTask(ctx, fetch)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestPutTask_Incomplete(t *testing.T) {
	s := createTestStore(t)
	userID := createTestWallet(t, s)

	_, _, err := s.PutTask(context.Background(), records.Task{UserID: userID, Type: records.TaskDeleteTransfer})
	assert.Error(t, err)
}

func TestListDueTasks(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{3 * time.Minute, time.Minute, 2 * time.Minute, time.Hour} {
		uri := "https://x/transfers/" + string(rune('a'+i))
		_, _, err := s.PutTask(ctx, deleteTransferTask(userID, uri, base.Add(offset)))
		require.NoError(t, err)
	}

	due, err := s.ListDueTasks(ctx, userID, base.Add(10*time.Minute), 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "https://x/transfers/b", due[0].TransferURI)
	assert.Equal(t, "https://x/transfers/c", due[1].TransferURI)

	due, err = s.ListDueTasks(ctx, userID, base.Add(10*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, due, 3)
}

func TestRescheduleAndDeleteTask(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	userID := createTestWallet(t, s)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	task, _, err := s.PutTask(ctx, deleteTransferTask(userID, "https://x/transfers/1", base))
	require.NoError(t, err)

	later := base.Add(time.Hour)
	updated, err := s.RescheduleTask(ctx, task, later)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Attempts)

	due, err := s.ListDueTasks(ctx, userID, base.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	tasks, err := s.ListTasks(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].ScheduledFor.Equal(later))
	assert.Equal(t, 1, tasks[0].Attempts)

	require.NoError(t, s.DeleteTask(ctx, updated))
	require.NoError(t, s.DeleteTask(ctx, updated))
	tasks, err = s.ListTasks(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = s.RescheduleTask(ctx, updated, later)
	assert.Error(t, err)
}
