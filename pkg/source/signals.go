package source

import (
	"os"
	"os/signal"
	"sync"

	"github.com/sense-engine/sense-go/pkg/topic"
)

// Signals relays OS signals to subscribers. signal.Notify is registered on
// activation and released with signal.Stop when the last subscriber leaves,
// so the default signal behaviour applies while nobody listens.
type Signals struct {
	*topic.Value[os.Signal]

	signals []os.Signal

	mu   sync.Mutex
	ch   chan os.Signal
	stop chan struct{}
}

// NewSignals creates an idle relay for sigs. With no sigs every incoming
// signal is relayed.
func NewSignals(sigs []os.Signal, opts ...topic.Option) *Signals {
	s := &Signals{signals: append([]os.Signal(nil), sigs...)}
	all := make([]topic.Option, 0, len(opts)+2)
	all = append(all, opts...)
	all = append(all, topic.WithOnActivated(s.activate), topic.WithOnDeactivated(s.deactivate))
	s.Value = topic.NewValue[os.Signal](all...)
	return s
}

func (s *Signals) activate() error {
	ch := make(chan os.Signal, 1)
	stop := make(chan struct{})
	signal.Notify(ch, s.signals...)

	s.mu.Lock()
	s.ch, s.stop = ch, stop
	s.mu.Unlock()

	go s.relay(ch, stop)
	return nil
}

func (s *Signals) deactivate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return nil
	}
	signal.Stop(s.ch)
	close(s.stop)
	s.ch, s.stop = nil, nil
	return nil
}

func (s *Signals) relay(ch <-chan os.Signal, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case sig := <-ch:
			s.Publish(sig)
		}
	}
}
