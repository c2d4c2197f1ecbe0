package operator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/internal/clock"
	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/storage"
)

type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
	// Grace leaves fresh entries to the operator that committed them.
	Grace time.Duration
	// Retention is how long published entries are kept before Prune.
	Retention time.Duration
}

// OutboxRelay republishes outbox entries the operator could not publish. It
// claims pending entries with SKIP LOCKED, so relays on several replicas
// never hand the same entry to the publisher at once.
type OutboxRelay struct {
	storage   storage.Storage
	publisher events.Publisher
	clock     clock.Clock
	config    RelayConfig
	logger    *logrus.Logger
	metrics   *metrics.Metrics

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewOutboxRelay(s storage.Storage, publisher events.Publisher, clk clock.Clock, config RelayConfig, logger *logrus.Logger, m *metrics.Metrics) *OutboxRelay {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.BatchSize < 1 {
		config.BatchSize = 100
	}
	if config.Grace < 0 {
		config.Grace = 0
	}
	if config.Retention <= 0 {
		config.Retention = 24 * time.Hour
	}
	return &OutboxRelay{
		storage:   s,
		publisher: publisher,
		clock:     clk,
		config:    config,
		logger:    logger,
		metrics:   m,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start relays every Interval until Stop is called or ctx is cancelled. A
// last pass runs on the way out. It blocks.
func (r *OutboxRelay) Start(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.pass(ctx)

		case <-r.stopChan:
			r.pass(context.Background())
			return

		case <-ctx.Done():
			r.pass(context.WithoutCancel(ctx))
			return
		}
	}
}

// Stop ends Start and waits for its last pass.
func (r *OutboxRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	<-r.done
}

func (r *OutboxRelay) pass(ctx context.Context) {
	if _, err := r.Flush(ctx); err != nil {
		r.logger.WithError(err).Warn("OutboxRelay.Flush")
	}
	if err := r.prune(ctx); err != nil {
		r.logger.WithError(err).Warn("OutboxRelay.prune")
	}
}

// Flush publishes pending entries batch by batch until none are left or the
// publisher fails. It returns how many entries were delivered.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	delivered := 0
	for {
		count, more, err := r.flushBatch(ctx)
		delivered += count
		if err != nil || !more {
			return delivered, err
		}
	}
}

func (r *OutboxRelay) flushBatch(ctx context.Context) (int, bool, error) {
	writer, err := r.storage.Write(ctx)
	if err != nil {
		return 0, false, err
	}

	now := r.clock.Now()
	pending, err := writer.Outbox.ClaimPending(ctx, now.Add(-r.config.Grace), r.config.BatchSize)
	if err != nil || len(pending) == 0 {
		_ = writer.Rollback()
		return 0, false, err
	}

	ids := make([]int64, 0, len(pending))
	batch := make([]events.Event, 0, len(pending))
	for _, entry := range pending {
		ids = append(ids, entry.ID)
		var event events.Event
		if err := json.Unmarshal([]byte(entry.Payload), &event); err != nil {
			// never decodable, so it is marked with the batch and dropped
			r.logger.WithError(err).WithField("eventKey", entry.EventKey).Error("OutboxRelay.decode")
			continue
		}
		batch = append(batch, event)
	}

	if err = r.publisher.Publish(ctx, batch...); err != nil {
		if markErr := writer.Outbox.MarkFailed(ctx, ids); markErr != nil {
			_ = writer.Rollback()
			return 0, false, markErr
		}
		if r.metrics != nil {
			r.metrics.EventsPublishFailures.Add(float64(len(batch)))
		}
		if commitErr := writer.Commit(); commitErr != nil {
			return 0, false, commitErr
		}
		return 0, false, err
	}

	if err = writer.Outbox.MarkPublished(ctx, ids, now); err != nil {
		_ = writer.Rollback()
		return 0, false, err
	}
	if err = writer.Commit(); err != nil {
		return 0, false, err
	}

	if r.metrics != nil {
		r.metrics.EventsRelayed.Add(float64(len(batch)))
	}
	r.logger.WithField("eventCount", len(batch)).Info("OutboxRelay.Flush.relayed")
	return len(batch), len(pending) == r.config.BatchSize, nil
}

func (r *OutboxRelay) prune(ctx context.Context) error {
	writer, err := r.storage.Write(ctx)
	if err != nil {
		return err
	}
	pruned, err := writer.Outbox.Prune(ctx, r.clock.Now().Add(-r.config.Retention))
	if err != nil {
		_ = writer.Rollback()
		return err
	}
	if err = writer.Commit(); err != nil {
		return err
	}
	if pruned > 0 {
		r.logger.WithField("pruned", pruned).Debug("OutboxRelay.prune")
	}
	return nil
}
