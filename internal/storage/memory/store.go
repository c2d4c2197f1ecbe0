// Package memory is an in-process Storage. It has a single writer: Write
// blocks until the previous writer committed or rolled back, and a writer
// works on a private copy of the data that replaces the shared copy on commit.
// Readers always see the last committed copy.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/outbox"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

type state struct {
	accounts     map[uuid.UUID]account.Account
	transactions []*transaction.Transaction
	definitions  map[uuid.UUID]recurring.Definition
	sequence     int64

	outbox         []outbox.Entry
	outboxSequence int64
}

func newState() *state {
	return &state{
		accounts:    make(map[uuid.UUID]account.Account),
		definitions: make(map[uuid.UUID]recurring.Definition),
	}
}

// clone copies everything a writer may change. Transactions are immutable so
// the slice is shared, capped so appends never touch the committed array.
// Outbox entries are updated in place and get copied.
func (s *state) clone() *state {
	c := &state{
		accounts:     make(map[uuid.UUID]account.Account, len(s.accounts)),
		transactions: s.transactions[:len(s.transactions):len(s.transactions)],
		definitions:  make(map[uuid.UUID]recurring.Definition, len(s.definitions)),
		sequence:     s.sequence,

		outbox:         append([]outbox.Entry(nil), s.outbox...),
		outboxSequence: s.outboxSequence,
	}
	for id, a := range s.accounts {
		c.accounts[id] = a
	}
	for id, d := range s.definitions {
		c.definitions[id] = d
	}
	return c
}

type Store struct {
	writeMutex sync.Mutex
	mutex      sync.RWMutex
	current    *state
	writeErr   error
}

var _ storage.Storage = (*Store)(nil)

func New() *Store {
	return &Store{current: newState()}
}

func (s *Store) committed() *state {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

func (s *Store) Read() *storage.Reader {
	return &storage.Reader{
		Accounts:     &accountStore{view: s.committed},
		Transactions: &transactionStore{view: s.committed},
		Recurring:    &recurringStore{view: s.committed},
	}
}

func (s *Store) Write(ctx context.Context) (*storage.Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writeMutex.Lock()
	s.mutex.RLock()
	writeErr := s.writeErr
	working := s.current.clone()
	s.mutex.RUnlock()

	if writeErr != nil {
		s.writeMutex.Unlock()
		return nil, writeErr
	}

	view := func() *state { return working }
	tx := &memoryTx{store: s, working: working}
	return storage.NewWriter(tx,
		&accountStore{view: view},
		&transactionStore{view: view},
		&recurringStore{view: view},
		&outboxStore{view: view},
	), nil
}

func (s *Store) Close() error {
	return nil
}

// SetWriteError makes every following Write fail with err until it is reset
// with nil. Reads keep working.
func (s *Store) SetWriteError(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writeErr = err
}

type memoryTx struct {
	store   *Store
	working *state
	done    bool
}

func (t *memoryTx) Commit(_ context.Context) error {
	if t.done {
		return ErrTxDone
	}
	t.done = true

	t.store.mutex.Lock()
	t.store.current = t.working
	t.store.mutex.Unlock()
	t.store.writeMutex.Unlock()
	return nil
}

func (t *memoryTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.writeMutex.Unlock()
	return nil
}
