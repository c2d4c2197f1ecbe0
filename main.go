package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/api"
	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/config"
	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/logging"
	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/operator"
	"github.com/carson-networks/allowance-server/internal/scheduler"
	"github.com/carson-networks/allowance-server/internal/service"
	"github.com/carson-networks/allowance-server/internal/storage"
	"github.com/carson-networks/allowance-server/internal/storage/memory"
)

func main() {
	logger := logging.SetupLogging()
	logrus.Info("allowance-server starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logrus.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}
	logger = logging.SetupLoggingWithLevel(envConfig.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	rest := api.Rest{
		Logger:  logger,
		Port:    envConfig.HTTPPort,
		Metrics: m,
	}

	var store storage.Storage
	switch envConfig.StorageDriver {
	case config.StorageDriverMemory:
		logger.Warn("Using the in-memory store, nothing survives a restart")
		store = memory.New()
	default:
		sqlStorage, err := storage.NewStorage(envConfig)
		if err != nil {
			logger.WithError(err).Fatal("storage.NewStorage")
			return
		}
		store = sqlStorage
		rest.DB = sqlStorage.DB
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Error("storage.Close")
		}
	}()

	var publisher events.Publisher = events.NewLogPublisher(logger)
	if envConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     envConfig.RedisAddress,
			Password: envConfig.RedisPassword,
			DB:       envConfig.RedisDB,
		})
		defer func() {
			_ = redisClient.Close()
		}()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis.Ping")
		}
		publisher = events.NewRedisPublisher(redisClient, logger)
	}

	delegator := operator.NewOperatorDelegator(store, publisher, logger, m, envConfig.OperatorWorkers)
	delegator.Start()

	relay := operator.NewOutboxRelay(store, publisher, clock.Real(), operator.RelayConfig{
		Interval:  envConfig.OutboxRelayInterval,
		Grace:     envConfig.OutboxRelayGrace,
		Retention: envConfig.OutboxRetention,
	}, logger, m)
	go relay.Start(context.WithoutCancel(ctx))

	svc := service.NewService(store, delegator, clock.Real(), logger)
	rest.Service = svc

	wg := sync.WaitGroup{}

	var recurringScheduler *scheduler.Scheduler
	if envConfig.SchedulerEnabled {
		recurringScheduler = scheduler.NewScheduler(svc.Recurring, scheduler.Config{
			Interval:    envConfig.SchedulerInterval,
			TickTimeout: envConfig.SchedulerTickTimeout,
			ClaimLease:  envConfig.SchedulerClaimLease,
			PageSize:    envConfig.SchedulerPageSize,
			Workers:     envConfig.SchedulerWorkers,
			InstanceID:  envConfig.SchedulerInstanceID,
		}, logger, m)

		wg.Add(1)
		go func() {
			defer wg.Done()
			recurringScheduler.Start(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rest.Serve(ctx)
	}()

	<-ctx.Done()
	logger.Info("allowance-server shutting down")
	if recurringScheduler != nil {
		recurringScheduler.Stop()
	}
	wg.Wait()
	delegator.Stop()
	relay.Stop()
}
