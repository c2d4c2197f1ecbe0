package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/memory"
)

var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	store    *memory.Store
	recorder *events.Recorder
	clock    *clock.Manual
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.New()
	recorder := events.NewRecorder()
	manual := clock.NewManual(testStart)

	delegator := operator.NewOperatorDelegator(store, recorder, logger, nil, 4)
	delegator.Start()
	t.Cleanup(delegator.Stop)

	return &testEnv{
		svc:      NewService(store, delegator, manual, logger),
		store:    store,
		recorder: recorder,
		clock:    manual,
	}
}

func (e *testEnv) account(t *testing.T, balance string) *Account {
	t.Helper()
	created, err := e.svc.Account.CreateAccount(context.Background(), AccountCreate{
		OwnerID:         uuid.Must(uuid.NewV4()),
		Name:            "Allowance",
		StartingBalance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return created
}

// stubStorage serves reads from the given reader and refuses writes.
type stubStorage struct {
	reader *storage.Reader
}

func (s *stubStorage) Read() *storage.Reader {
	return s.reader
}

func (s *stubStorage) Write(context.Context) (*storage.Writer, error) {
	panic("stubStorage does not write")
}

func (s *stubStorage) Close() error {
	return nil
}
