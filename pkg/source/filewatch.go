package source

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/sense-engine/sense-go/pkg/sensor"
	"github.com/sense-engine/sense-go/pkg/topic"
)

// ErrNoPaths is returned by NewFileWatch without paths.
var ErrNoPaths = errors.New("no paths to watch")

// FileWatch notifies its listeners on file-system events for a set of
// paths. The underlying watcher exists only while there are listeners.
type FileWatch struct {
	*sensor.Base

	paths []string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	last    fsnotify.Event
	seen    bool
	lastErr error
}

var _ sensor.Sensor = (*FileWatch)(nil)

// NewFileWatch creates an idle watcher for paths.
func NewFileWatch(paths []string, opts ...topic.Option) (*FileWatch, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	s := &FileWatch{paths: append([]string(nil), paths...)}
	s.Base = sensor.NewBase(s, opts...)
	return s, nil
}

// Paths returns the watched paths.
func (s *FileWatch) Paths() []string {
	return append([]string(nil), s.paths...)
}

// LastEvent returns the most recent event and whether there has been one.
func (s *FileWatch) LastEvent() (fsnotify.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seen
}

// Err returns the last error reported by the watcher.
func (s *FileWatch) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// HasValidReading reports whether an event has been observed.
func (s *FileWatch) HasValidReading() bool {
	_, ok := s.LastEvent()
	return ok
}

// Quality is Good while the watcher runs and Poor after a watcher error.
func (s *FileWatch) Quality() sensor.Quality {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.watcher == nil:
		return sensor.QualityUnknown
	case s.lastErr != nil:
		return sensor.QualityPoor
	default:
		return sensor.QualityGood
	}
}

// StartImpl creates the watcher and adds every path.
func (s *FileWatch) StartImpl() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, p := range s.paths {
		if err := w.Add(p); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	s.mu.Lock()
	s.watcher = w
	s.lastErr = nil
	s.mu.Unlock()

	go s.run(w)
	return nil
}

// StopImpl closes the watcher.
func (s *FileWatch) StopImpl() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.Close()
}

func (s *FileWatch) run(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			s.mu.Lock()
			s.last = ev
			s.seen = true
			s.mu.Unlock()
			s.NotifyListeners()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}
}
