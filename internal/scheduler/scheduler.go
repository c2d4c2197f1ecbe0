// Package scheduler drives recurring definitions: on every tick it expires
// definitions past their end date, claims the due ones page by page and runs
// each claimed definition in isolation.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carson-networks/allowance-server/internal/metrics"
	"github.com/carson-networks/allowance-server/internal/operator/actions"
	"github.com/carson-networks/allowance-server/internal/service"
	"github.com/carson-networks/allowance-server/internal/storage/recurring"
)

// IRecurringRunner is the part of the recurring service the scheduler drives.
type IRecurringRunner interface {
	ExpireEnded(ctx context.Context, limit int) ([]uuid.UUID, error)
	ClaimDue(ctx context.Context, owner string, lease time.Duration, limit int) ([]*recurring.Definition, error)
	ExecuteClaimed(ctx context.Context, claimed *recurring.Definition, owner string) (*service.Execution, error)
}

type Config struct {
	Interval    time.Duration
	TickTimeout time.Duration
	ClaimLease  time.Duration
	PageSize    int
	Workers     int
	InstanceID  string
}

// TickResult counts what one tick did.
type TickResult struct {
	Expired  int
	Executed int
	Skipped  int
	NotDue   int
	Failed   int
}

type Scheduler struct {
	runner  IRecurringRunner
	config  Config
	logger  *logrus.Logger
	metrics *metrics.Metrics

	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewScheduler(runner IRecurringRunner, config Config, logger *logrus.Logger, m *metrics.Metrics) *Scheduler {
	if config.PageSize < 1 {
		config.PageSize = 100
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = config.Interval
	}
	// A skipped or failed item keeps its lease; it must run out before the
	// next tick so the item is retried there.
	if config.ClaimLease <= 0 || config.ClaimLease >= config.Interval {
		config.ClaimLease = config.Interval / 2
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.Must(uuid.NewV4()).String()
	}

	return &Scheduler{
		runner:   runner,
		config:   config,
		logger:   logger,
		metrics:  m,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start ticks once right away and then every Interval until Stop is called or
// ctx is cancelled. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.done)
	s.logger.WithFields(logrus.Fields{
		"interval":   s.config.Interval.String(),
		"instanceId": s.config.InstanceID,
	}).Info("Starting recurring scheduler")

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ticker.C:
			s.runTick(ctx)

		case <-s.stopChan:
			s.logger.Info("Stopping recurring scheduler")
			return

		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping recurring scheduler")
			return
		}
	}
}

// Stop ends the loop and waits for an in-flight tick to finish. Only call it
// after Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.done
}

func (s *Scheduler) runTick(ctx context.Context) {
	result, err := s.Tick(ctx)
	fields := logrus.Fields{
		"expired":  result.Expired,
		"executed": result.Executed,
		"skipped":  result.Skipped,
		"notDue":   result.NotDue,
		"failed":   result.Failed,
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Scheduler.Tick")
		return
	}
	s.logger.WithFields(fields).Info("Scheduler.Tick")
}

// Tick runs one bounded pass. An error means the tick was aborted, e.g. the
// store is unavailable or the tick ran out of time; whatever stayed claimed is
// picked up again once its lease expires.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	result, err := s.tick(ctx)

	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.SchedulerTicks.WithLabelValues(status).Inc()
		s.metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
		s.metrics.RecurringOutcomes.WithLabelValues(metrics.OutcomeExpired).Add(float64(result.Expired))
		s.metrics.RecurringOutcomes.WithLabelValues(metrics.OutcomeExecuted).Add(float64(result.Executed))
		s.metrics.RecurringOutcomes.WithLabelValues(metrics.OutcomeSkipped).Add(float64(result.Skipped))
		s.metrics.RecurringOutcomes.WithLabelValues(metrics.OutcomeFailed).Add(float64(result.Failed))
	}
	return result, err
}

func (s *Scheduler) tick(ctx context.Context) (TickResult, error) {
	var result TickResult

	for {
		expired, err := s.runner.ExpireEnded(ctx, s.config.PageSize)
		if err != nil {
			return result, err
		}
		result.Expired += len(expired)
		if len(expired) < s.config.PageSize {
			break
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		claimed, err := s.runner.ClaimDue(ctx, s.config.InstanceID, s.config.ClaimLease, s.config.PageSize)
		if err != nil {
			return result, err
		}
		if len(claimed) == 0 {
			return result, nil
		}
		if s.logger.IsLevelEnabled(logrus.DebugLevel) {
			s.logger.WithField("claimed", spew.Sdump(claimed)).Debug("Scheduler.ClaimDue")
		}

		s.executePage(ctx, claimed, &result)

		if len(claimed) < s.config.PageSize {
			return result, nil
		}
	}
}

// executePage runs every claimed definition with at most Workers in flight. A
// failure only counts against its own definition.
func (s *Scheduler) executePage(ctx context.Context, claimed []*recurring.Definition, result *TickResult) {
	var mutex sync.Mutex
	var group errgroup.Group
	group.SetLimit(s.config.Workers)

	for _, definition := range claimed {
		group.Go(func() error {
			execution, err := s.runner.ExecuteClaimed(ctx, definition, s.config.InstanceID)

			mutex.Lock()
			defer mutex.Unlock()
			if err != nil {
				result.Failed++
				entry := s.logger.WithError(err).WithField("definitionId", definition.ID)
				if errors.Is(err, context.DeadlineExceeded) {
					entry.Warn("Scheduler.ExecuteClaimed timed out")
				} else {
					entry.Error("Scheduler.ExecuteClaimed")
				}
				return nil
			}

			switch execution.Outcome {
			case actions.OutcomeExecuted:
				result.Executed++
			case actions.OutcomeSkipped:
				result.Skipped++
			case actions.OutcomeCompleted:
				result.Expired++
			default:
				result.NotDue++
			}
			return nil
		})
	}

	_ = group.Wait()
}
