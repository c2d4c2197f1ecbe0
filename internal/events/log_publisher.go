package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events to the log. It is used when no Redis address is
// configured.
type LogPublisher struct {
	logger *logrus.Logger
}

var _ Publisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, events ...Event) error {
	for _, event := range events {
		p.logger.WithFields(logrus.Fields{
			"eventType": event.Type,
			"eventKey":  event.Key(),
			"reason":    event.Reason,
		}).Info("LogPublisher.Publish")
	}
	return nil
}
