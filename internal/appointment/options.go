package appointment

import (
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/hours"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

// Metrics receives engine measurements. *metrics.Collector implements it.
type Metrics interface {
	ObserveOperation(op, outcome string, d time.Duration)
	IncRetry(op string)
	IncTransition(from, to string)
	IncNotifyFailure(eventType string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) IncRetry(string)                                {}
func (noopMetrics) IncTransition(string, string)                   {}
func (noopMetrics) IncNotifyFailure(string)                        {}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithHours(p hours.Provider) Option {
	return func(s *Service) { s.hours = p }
}

func WithNotifier(n notify.Sender) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}
