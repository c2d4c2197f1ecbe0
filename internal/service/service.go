package service

import (
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/storage"
)

// Service holds all business logic services. Reads go straight to storage;
// every write is an operator action.
type Service struct {
	Transaction *TransactionService
	Account     *AccountService
	Recurring   *RecurringService
}

// NewService creates a new Service with the given storage.
func NewService(store storage.Storage, delegator operator.IDelegator, clk clock.Clock, logger *logrus.Logger) *Service {
	return &Service{
		Transaction: NewTransactionService(store, delegator, clk),
		Account:     NewAccountService(store, delegator, clk),
		Recurring:   NewRecurringService(store, delegator, clk, logger),
	}
}
