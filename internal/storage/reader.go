package storage

import (
	"github.com/stephenafamo/bob"

	"github.com/carson-networks/allowance-server/internal/storage/account"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
	"github.com/carson-networks/allowance-server/internal/storage/transaction"
)

type Reader struct {
	Accounts     account.IReader
	Transactions transaction.IReader
	Recurring    recurring.IReader
}

func NewReader(exec bob.Executor) *Reader {
	return &Reader{
		Accounts:     account.NewReader(exec),
		Transactions: transaction.NewReader(exec),
		Recurring:    recurring.NewReader(exec),
	}
}
