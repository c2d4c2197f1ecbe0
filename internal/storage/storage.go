package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/allowance-server/internal/config"
)

// Storage hands out readers and storage transactions. Every balance-affecting
// change happens through a Writer.
type Storage interface {
	Read() *Reader
	Write(ctx context.Context) (*Writer, error)
	Close() error
}

// SQLStorage is the Postgres-backed Storage.
type SQLStorage struct {
	DB     *sql.DB
	bobDB  bob.DB
	reader *Reader
}

var _ Storage = (*SQLStorage)(nil)

func NewStorage(env *config.Config) (*SQLStorage, error) {
	db, err := sql.Open("postgres", env.PostgresConnectionString())
	if err != nil {
		return nil, err
	}
	return NewSQLStorage(db), nil
}

func NewSQLStorage(db *sql.DB) *SQLStorage {
	bobDB := bob.NewDB(db)
	return &SQLStorage{
		DB:     db,
		bobDB:  bobDB,
		reader: NewReader(bobDB),
	}
}

func (s *SQLStorage) Read() *Reader {
	return s.reader
}

// Write begins a read-committed transaction. Row locks taken through the
// writer's FindByIDForUpdate methods serialize concurrent writers per row.
func (s *SQLStorage) Write(ctx context.Context) (*Writer, error) {
	tx, err := s.bobDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewSQLWriter(tx), nil
}

func (s *SQLStorage) Close() error {
	return s.DB.Close()
}
