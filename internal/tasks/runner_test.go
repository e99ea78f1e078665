package tasks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/creditors/internal/canonical"
	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
	"github.com/roach88/creditors/internal/store"
	"github.com/roach88/creditors/internal/testutil"
	"github.com/roach88/creditors/internal/transport"
	"github.com/roach88/creditors/internal/transport/transporttest"
)

const (
	base    = "https://demo.example.com/creditors/1/"
	infoIRI = "https://demo.example.com/debtors/1/public"
)

type fixture struct {
	store  *store.Store
	server *transporttest.Server
	clock  *testutil.FakeClock
	runner *Runner
	userID int64
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	var userID int64
	err = s.WithTx(context.Background(), func(tx *store.Tx) error {
		w, _, err := tx.CreateWallet(context.Background(), canonical.Wallet{
			URI:  base + "wallet",
			Type: canonical.TypeWallet,
			Log:  canonical.PaginatedStream{Type: "PaginatedStream", First: base + "log", Forthcoming: base + "log?prev=0"},
		})
		userID = w.UserID
		return err
	})
	require.NoError(t, err)

	f := &fixture{
		store:  s,
		server: transporttest.New(),
		clock:  testutil.NewFakeClock(time.Time{}),
		userID: userID,
	}
	opts = append([]Option{WithClock(f.clock.Now), WithRetryDelay(time.Minute)}, opts...)
	f.runner = New(s, f.server, opts...)
	return f
}

func (f *fixture) scheduleDelete(t *testing.T, uri string, at time.Time) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(tx *store.Tx) error {
		if err := tx.PutObject(context.Background(), f.userID, &canonical.Transfer{
			URI: uri, Type: canonical.TypeTransfer, LatestUpdateID: 1,
		}); err != nil {
			return err
		}
		return ScheduleDeleteTransfer(context.Background(), tx, f.userID, uri, at)
	})
	require.NoError(t, err)
}

func (f *fixture) scheduleFetch(t *testing.T) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(tx *store.Tx) error {
		return ScheduleFetchDebtorInfo(context.Background(), tx, f.userID, infoIRI, base+"accounts/1/", f.clock.Now())
	})
	require.NoError(t, err)
}

func (f *fixture) tasks(t *testing.T) []records.Task {
	t.Helper()
	tasks, err := f.store.ListTasks(context.Background(), f.userID)
	require.NoError(t, err)
	return tasks
}

func TestExecuteReady_DeleteTransfer(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *transporttest.Server, uri string)
	}{
		{"deleted", func(s *transporttest.Server, uri string) { s.Put(uri, map[string]string{"uri": uri}) }},
		{"already gone", func(s *transporttest.Server, uri string) {}},
		{"forbidden", func(s *transporttest.Server, uri string) {
			s.Fail(http.MethodDelete, uri, transporttest.Status(http.MethodDelete, uri, http.StatusForbidden))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			uri := base + "transfers/1"
			tt.setup(f.server, uri)
			f.scheduleDelete(t, uri, f.clock.Now())

			done, err := f.runner.ExecuteReady(ctx, f.userID)
			require.NoError(t, err)
			assert.Equal(t, 1, done)
			assert.Empty(t, f.tasks(t))
			assert.Equal(t, 1, f.server.Calls(http.MethodDelete, uri))

			_, err = f.store.GetObject(ctx, f.userID, uri)
			assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))
		})
	}
}

func TestExecuteReady_SkipsTasksNotDue(t *testing.T) {
	f := newFixture(t)
	uri := base + "transfers/1"
	f.scheduleDelete(t, uri, f.clock.Now().Add(time.Hour))

	done, err := f.runner.ExecuteReady(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Len(t, f.tasks(t), 1)
	assert.Zero(t, f.server.Calls(http.MethodDelete, uri))
}

func TestExecuteReady_ServerErrorReschedules(t *testing.T) {
	f := newFixture(t)
	uri := base + "transfers/1"
	f.server.Fail(http.MethodDelete, uri, transporttest.Status(http.MethodDelete, uri, http.StatusInternalServerError))
	f.scheduleDelete(t, uri, f.clock.Now())

	done, err := f.runner.ExecuteReady(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Zero(t, done)

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, tasks[0].Attempts)
	assert.True(t, tasks[0].ScheduledFor.Equal(f.clock.Now().Add(time.Minute)))

	_, err = f.store.GetObject(context.Background(), f.userID, uri)
	assert.NoError(t, err)
}

func TestExecuteReady_DrainsInBatches(t *testing.T) {
	f := newFixture(t, WithBatchSize(2))
	for i := 0; i < 5; i++ {
		f.scheduleDelete(t, fmt.Sprintf("%stransfers/%d", base, i), f.clock.Now())
	}

	done, err := f.runner.ExecuteReady(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, 5, done)
	assert.Empty(t, f.tasks(t))

	deletes := 0
	for _, req := range f.server.Requests() {
		if req.Method == http.MethodDelete {
			deletes++
		}
	}
	assert.Equal(t, 5, deletes)
}

func TestExecuteReady_FetchDebtorInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := []byte(`{"type":"CoinInfo","debtorName":"Demo Coin"}`)
	f.server.Handle(http.MethodGet, infoIRI, func(req transporttest.Request) (*transport.Response, error) {
		return &transport.Response{
			URL:    infoIRI,
			Status: http.StatusOK,
			Header: http.Header{"Content-Type": []string{"application/vnd.swaptacular.coin-info+json"}},
			Body:   body,
		}, nil
	})
	f.scheduleFetch(t)

	done, err := f.runner.ExecuteReady(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Empty(t, f.tasks(t))

	doc, err := f.store.GetDocument(ctx, infoIRI)
	require.NoError(t, err)
	sum := sha256.Sum256(body)
	assert.Equal(t, strings.ToUpper(hex.EncodeToString(sum[:])), doc.SHA256)
	assert.Equal(t, "application/vnd.swaptacular.coin-info+json", doc.ContentType)
	assert.Equal(t, body, doc.Content)
	assert.True(t, doc.FetchedAt.Equal(testutil.Epoch))
}

func TestExecuteReady_FetchGivesUpAfterMaxAttempts(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, WithMaxAttempts(2), WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	ctx := context.Background()
	f.server.Fail(http.MethodGet, infoIRI,
		transporttest.Offline(http.MethodGet, infoIRI),
		transporttest.Offline(http.MethodGet, infoIRI),
	)
	f.scheduleFetch(t)

	done, err := f.runner.ExecuteReady(ctx, f.userID)
	require.NoError(t, err)
	assert.Zero(t, done)
	require.Len(t, f.tasks(t), 1)

	// Not due again until the retry delay has passed.
	done, err = f.runner.ExecuteReady(ctx, f.userID)
	require.NoError(t, err)
	assert.Zero(t, done)
	assert.Equal(t, 1, f.server.Calls(http.MethodGet, infoIRI))

	f.clock.Advance(time.Minute)
	done, err = f.runner.ExecuteReady(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Empty(t, f.tasks(t))

	_, err = f.store.GetDocument(ctx, infoIRI)
	assert.True(t, fault.Is(err, fault.KindRecordDoesNotExist))

	out := logs.String()
	assert.Contains(t, out, "giving up on task")
	assert.Contains(t, out, "iri="+infoIRI)
	assert.Contains(t, out, "account_uri="+base+"accounts/1/")
}

func TestScheduleDeleteTransfer_Deduplicates(t *testing.T) {
	f := newFixture(t)
	uri := base + "transfers/1"
	f.scheduleDelete(t, uri, f.clock.Now())
	f.scheduleDelete(t, uri, f.clock.Now().Add(time.Hour))

	tasks := f.tasks(t)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].ScheduledFor.Equal(f.clock.Now()))
}
