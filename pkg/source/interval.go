package source

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sense-engine/sense-go/pkg/sensor"
	"github.com/sense-engine/sense-go/pkg/topic"
)

// ErrNegativeInterval is returned by NewInterval for a negative period.
var ErrNegativeInterval = errors.New("negative interval")

// Interval is a timer-driven sensor. With a zero period it notifies once
// per activation; otherwise it notifies on every tick.
type Interval struct {
	*sensor.Base

	period time.Duration
	ticks  atomic.Uint64

	mu   sync.Mutex
	stop chan struct{}
}

var _ sensor.Sensor = (*Interval)(nil)

// NewInterval creates an idle interval sensor.
func NewInterval(period time.Duration, opts ...topic.Option) (*Interval, error) {
	if period < 0 {
		return nil, ErrNegativeInterval
	}
	s := &Interval{period: period}
	s.Base = sensor.NewBase(s, opts...)
	return s, nil
}

// Period returns the tick period.
func (s *Interval) Period() time.Duration { return s.period }

// Ticks returns the number of notifications so far.
func (s *Interval) Ticks() uint64 { return s.ticks.Load() }

// HasValidReading reports whether the sensor has ticked at least once.
func (s *Interval) HasValidReading() bool { return s.ticks.Load() > 0 }

// Quality is Good once the sensor has ticked.
func (s *Interval) Quality() sensor.Quality {
	if s.HasValidReading() {
		return sensor.QualityGood
	}
	return sensor.QualityUnknown
}

// StartImpl launches the timer goroutine.
func (s *Interval) StartImpl() error {
	stop := make(chan struct{})
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	go s.run(stop)
	return nil
}

// StopImpl signals the timer goroutine to exit. It does not wait: the
// goroutine itself may be the one delivering the last unsubscribe.
func (s *Interval) StopImpl() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

func (s *Interval) run(stop <-chan struct{}) {
	if s.period == 0 {
		select {
		case <-stop:
		default:
			s.tick()
		}
		return
	}

	t := time.NewTicker(s.period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.tick()
		}
	}
}

func (s *Interval) tick() {
	s.ticks.Add(1)
	s.NotifyListeners()
}
