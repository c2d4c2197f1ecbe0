package operator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/allowance-server/internal/events"
	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/storage"
)

// Operator is the worker that processes items from the queue. Each item runs
// in its own storage transaction. Events the action emitted are committed to
// the outbox with it and published once that transaction committed; whatever
// could not be published is left to the OutboxRelay.
type Operator struct {
	storage   storage.Storage
	publisher events.Publisher
	logger    *logrus.Logger
	metrics   *metrics.Metrics
	queue     chan ActionItem
}

func NewOperator(s storage.Storage, publisher events.Publisher, logger *logrus.Logger, m *metrics.Metrics, queue chan ActionItem) *Operator {
	return &Operator{
		storage:   s,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		queue:     queue,
	}
}

// Run listens to the queue and processes items. Exits when the queue is closed.
func (o *Operator) Run() {
	for item := range o.queue {
		o.processItem(item)
	}
}

func (o *Operator) processItem(item ActionItem) {
	start := time.Now()
	err := o.perform(item)
	o.observe(item.action, start, err)
	item.response <- ActionItemResponse{err: err}
}

func (o *Operator) perform(item ActionItem) error {
	if err := item.ctx.Err(); err != nil {
		return err
	}

	writer, err := o.storage.Write(item.ctx)
	if err != nil {
		return err
	}

	err = item.action.Perform(item.ctx, writer)
	if err != nil {
		_ = writer.Rollback()
		return err
	}

	if err = writer.Commit(); err != nil {
		return err
	}

	o.publish(item.ctx, writer.Events(), writer.Staged())
	return nil
}

// publish hands committed events to the publisher and marks their outbox
// entries. The transaction is already durable, so a publish failure is logged
// and counted, never returned.
func (o *Operator) publish(ctx context.Context, committed []events.Event, staged []int64) {
	if len(committed) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	for _, event := range committed {
		if event.Type == events.TypeTransactionCommitted && o.metrics != nil {
			o.metrics.TransactionsCommitted.WithLabelValues(event.Direction).Inc()
		}
	}

	err := o.publisher.Publish(ctx, committed...)
	if err != nil {
		if o.metrics != nil {
			o.metrics.EventsPublishFailures.Add(float64(len(committed)))
		}
		o.logger.WithError(err).WithField("eventCount", len(committed)).Error("Operator.publish")
		return
	}

	if err = markPublished(ctx, o.storage, staged, time.Now().UTC()); err != nil {
		o.logger.WithError(err).WithField("eventCount", len(staged)).Warn("Operator.publish.markPublished")
	}
}

func markPublished(ctx context.Context, store storage.Storage, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	writer, err := store.Write(ctx)
	if err != nil {
		return err
	}
	if err = writer.Outbox.MarkPublished(ctx, ids, at); err != nil {
		_ = writer.Rollback()
		return err
	}
	return writer.Commit()
}

func (o *Operator) observe(action actions.IAction, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.metrics.OperatorActions.
		WithLabelValues(actionName(action), status).
		Observe(time.Since(start).Seconds())
}

func actionName(action actions.IAction) string {
	name := strings.TrimPrefix(strings.TrimPrefix(fmt.Sprintf("%T", action), "*"), "actions.")
	if name == "" {
		return "unknown"
	}
	return name
}

type ActionItem struct {
	ctx      context.Context
	action   actions.IAction
	response chan ActionItemResponse
}

type ActionItemResponse struct {
	err error
}
