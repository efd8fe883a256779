// Package sink delivers received MESSAGE bodies to their destinations.
package sink

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/stompsock/core/logx"
	"github.com/gaspardpetit/stompsock/internal/metrics"
)

// Sink accepts one message body received on destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, destination string, body []byte) error
}

// Log writes each message to a zerolog logger.
type Log struct {
	logger *zerolog.Logger
}

// NewLog returns a Log sink. A nil logger selects the shared logger.
func NewLog(l *zerolog.Logger) *Log {
	if l == nil {
		l = &logx.Log
	}
	return &Log{logger: l}
}

func (*Log) Name() string { return "log" }

func (s *Log) Deliver(_ context.Context, destination string, body []byte) error {
	s.logger.Info().Str("destination", destination).Int("bytes", len(body)).Bytes("body", body).Msg("message")
	return nil
}

// Multi fans a message out to every sink in order.
type Multi []Sink

func (Multi) Name() string { return "multi" }

// Deliver tries every sink and joins their errors.
func (m Multi) Deliver(ctx context.Context, destination string, body []byte) error {
	var errs []error
	for _, s := range m {
		start := time.Now()
		err := s.Deliver(ctx, destination, body)
		metrics.ObserveDelivery(s.Name(), time.Since(start), err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
