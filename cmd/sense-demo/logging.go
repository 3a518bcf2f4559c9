package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/sense-engine/sense-go/pkg/config"
	"github.com/sense-engine/sense-go/pkg/log"
)

// newLogger builds the operational logger.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch cfg.Format {
	case config.FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), nil
}

// zerologLevel maps a configured level name to zerolog.
func zerologLevel(name string) zerolog.Level {
	level, err := config.ParseLevel(name)
	switch {
	case err != nil:
		return zerolog.InfoLevel
	case level <= slog.LevelDebug:
		return zerolog.DebugLevel
	case level <= slog.LevelInfo:
		return zerolog.InfoLevel
	case level <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// traceSink is the engine trace destination plus the file to close on
// shutdown.
type traceSink struct {
	logger log.Logger
	file   *log.FileLogger
}

func (s *traceSink) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// newTraceSink routes engine events to the configured log backend and, if a
// trace path is set, to a CBOR trace file.
func newTraceSink(cfg config.LogConfig, logger *slog.Logger, w io.Writer) (*traceSink, error) {
	var backend log.Logger
	switch cfg.Backend {
	case config.BackendZerolog:
		zl := zerolog.New(w).Level(zerologLevel(cfg.Level)).With().Timestamp().Logger()
		backend = log.NewZerologAdapter(zl)
	default:
		backend = log.NewSlogAdapter(logger)
	}

	cats, err := cfg.Categories()
	if err != nil {
		return nil, err
	}
	if len(cats) > 0 {
		backend = log.Filtered(backend, log.InCategories(cats...))
	}

	sink := &traceSink{logger: backend}
	if cfg.TracePath != "" {
		f, err := log.NewFileLogger(cfg.TracePath)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		sink.file = f
		sink.logger = log.NewMultiLogger(backend, f)
	}
	return sink, nil
}
