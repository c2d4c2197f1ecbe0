package operator

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/memory"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
	"github.com/carson-networks/allowance-server/internal/xerrors"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, ...events.Event) error {
	return errors.New("redis down")
}

type emitThenFail struct {
	actions.IAction
}

func (emitThenFail) Perform(_ context.Context, writer *storage.Writer) error {
	writer.Emit(events.RecurringCompleted(uuid.Must(uuid.NewV4()), time.Now()))
	return errors.New("boom")
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newDelegator(t *testing.T, publisher events.Publisher) (*OperatorDelegator, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.New()
	m := metrics.New()
	delegator := NewOperatorDelegator(store, publisher, quietLogger(), m, 4)
	delegator.Start()
	t.Cleanup(delegator.Stop)
	return delegator, store, m
}

func createAccount(t *testing.T, delegator *OperatorDelegator, balance string) uuid.UUID {
	t.Helper()
	create := &actions.CreateAccount{
		Name:            "Allowance",
		StartingBalance: decimal.RequireFromString(balance),
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, delegator.Process(context.Background(), create))
	return create.Result.ID
}

func TestProcess_PublishesAfterCommit(t *testing.T) {
	recorder := events.NewRecorder()
	delegator, store, m := newDelegator(t, recorder)
	accountID := createAccount(t, delegator, "0.00")

	create := &actions.CreateTransaction{
		AccountID:   accountID,
		Direction:   transaction.DirectionCredit,
		Amount:      decimal.RequireFromString("4.00"),
		Description: "Chores",
		Now:         time.Now().UTC(),
	}
	require.NoError(t, delegator.Process(context.Background(), create))

	committed := recorder.OfType(events.TypeTransactionCommitted)
	require.Len(t, committed, 1)
	assert.Equal(t, create.Result.ID, *committed[0].TransactionID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransactionsCommitted.WithLabelValues("credit")))

	acct, err := store.Read().Accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.RequireFromString("4.00")))
}

func TestProcess_RollbackDropsEvents(t *testing.T) {
	recorder := events.NewRecorder()
	delegator, _, _ := newDelegator(t, recorder)

	err := delegator.Process(context.Background(), emitThenFail{})
	assert.EqualError(t, err, "boom")
	assert.Empty(t, recorder.Events())
}

func TestProcess_ActionErrorPassesThrough(t *testing.T) {
	delegator, _, _ := newDelegator(t, events.NewRecorder())
	accountID := createAccount(t, delegator, "1.00")

	err := delegator.Process(context.Background(), &actions.CreateTransaction{
		AccountID:   accountID,
		Direction:   transaction.DirectionDebit,
		Amount:      decimal.RequireFromString("4.00"),
		Description: "Too much",
	})
	assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
}

func TestProcess_PublishFailureDoesNotFailCommit(t *testing.T) {
	delegator, store, m := newDelegator(t, failingPublisher{})
	accountID := createAccount(t, delegator, "0.00")

	err := delegator.Process(context.Background(), &actions.CreateTransaction{
		AccountID:   accountID,
		Direction:   transaction.DirectionCredit,
		Amount:      decimal.RequireFromString("1.00"),
		Description: "Gift",
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublishFailures))

	acct, err := store.Read().Accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.RequireFromString("1.00")))
}

func TestProcess_StoreUnavailable(t *testing.T) {
	delegator, store, _ := newDelegator(t, events.NewRecorder())
	failure := errors.New("store unavailable")
	store.SetWriteError(failure)

	err := delegator.Process(context.Background(), &actions.CreateAccount{Name: "x"})
	assert.ErrorIs(t, err, failure)
}

func TestProcess_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	delegator, store, _ := newDelegator(t, events.NewRecorder())
	accountID := createAccount(t, delegator, "10.00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := delegator.Process(context.Background(), &actions.CreateTransaction{
				AccountID:   accountID,
				Direction:   transaction.DirectionDebit,
				Amount:      decimal.RequireFromString("1.00"),
				Description: "Candy",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, xerrors.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	acct, err := store.Read().Accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())
}

func TestProcess_AfterStop(t *testing.T) {
	delegator, _, _ := newDelegator(t, events.NewRecorder())
	delegator.Stop()

	err := delegator.Process(context.Background(), &actions.CreateAccount{Name: "x"})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestProcess_CancelledContext(t *testing.T) {
	delegator, _, _ := newDelegator(t, events.NewRecorder())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := delegator.Process(ctx, &actions.CreateAccount{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

// gatedCredit waits for release before crediting the account.
type gatedCredit struct {
	actions.IAction
	accountID uuid.UUID
	started   chan struct{}
	release   chan struct{}
}

func (g *gatedCredit) Perform(ctx context.Context, writer *storage.Writer) error {
	close(g.started)
	<-g.release
	credit := &actions.CreateTransaction{
		AccountID:   g.accountID,
		Direction:   transaction.DirectionCredit,
		Amount:      decimal.RequireFromString("5.00"),
		Description: "Allowance",
		Now:         time.Now().UTC(),
	}
	return credit.Perform(ctx, writer)
}

func TestProcess_ReportsCommitAfterContextEnds(t *testing.T) {
	delegator, store, _ := newDelegator(t, events.NewRecorder())
	accountID := createAccount(t, delegator, "0.00")

	action := &gatedCredit{
		accountID: accountID,
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- delegator.Process(ctx, action)
	}()

	<-action.started
	cancel()
	select {
	case err := <-result:
		t.Fatalf("Process returned before the action finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(action.release)

	require.NoError(t, <-result)
	acct, err := store.Read().Accounts.FindByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acct.Balance.Equal(decimal.RequireFromString("5.00")))
}
