package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/internal/handlers/v1/account"
	"github.com/carson-networks/allowance-server/internal/handlers/v1/recurring"
	"github.com/carson-networks/allowance-server/internal/handlers/v1/status"
	"github.com/carson-networks/allowance-server/internal/handlers/v1/transaction"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/service"
)

type Rest struct {
	Logger  *logrus.Logger
	Port    string
	Service *service.Service
	Metrics *metrics.Metrics
	// DB is pinged by /status, nil when there is no database.
	DB status.Pinger
}

// Router builds the chi router with every route mounted.
func (r *Rest) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	statusHandler := status.NewHandler(r.DB)
	router.Get("/status", logging.LoggingWrapper("Status", r.Logger, statusHandler.Handler))
	if r.Metrics != nil {
		router.Handle("/metrics", r.Metrics.Handler())
	}

	api := humachi.New(router, huma.DefaultConfig("Allowance Server", "1.0.0"))
	api.UseMiddleware(logging.HumaMiddleware(r.Logger))

	accounts := r.Service.Account
	account.NewCreateAccountHandler(accounts).Register(api)
	account.NewGetAccountHandler(accounts).Register(api)
	account.NewListAccountsHandler(accounts).Register(api)
	account.NewConfigureSavingsHandler(accounts).Register(api)
	account.NewRetireAccountHandler(accounts).Register(api)

	transactions := r.Service.Transaction
	transaction.NewCreateTransactionHandler(transactions).Register(api)
	transaction.NewListTransactionsHandler(transactions).Register(api)
	transaction.NewGetBalanceHandler(transactions).Register(api)
	transaction.NewReplayBalanceHandler(transactions).Register(api)

	definitions := r.Service.Recurring
	recurring.NewCreateDefinitionHandler(definitions).Register(api)
	recurring.NewListAwaitingApprovalHandler(definitions).Register(api)
	recurring.NewGetDefinitionHandler(definitions).Register(api)
	recurring.NewListDefinitionsHandler(definitions).Register(api)
	recurring.NewChangeStateHandler(definitions).Register(api)
	recurring.NewExecuteNowHandler(definitions).Register(api)

	return router
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (r *Rest) Serve(ctx context.Context) {
	server := http.Server{
		Addr:              ":" + r.Port,
		Handler:           r.Router(),
		ReadTimeout:       time.Duration(30) * time.Second,
		WriteTimeout:      time.Duration(30) * time.Second,
		IdleTimeout:       time.Duration(10) * time.Second,
		ReadHeaderTimeout: time.Duration(10) * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.Logger.WithError(err).Error("HttpServer.Serve.shutdown error")
		}
	}()

	r.Logger.WithField("port", r.Port).Info("HttpServer.Serve.listening")
	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		r.Logger.WithError(err).Error("HttpServer.Serve.listen error")
	}
	r.Logger.Info("HttpServer.Serve.shutting down")
}
