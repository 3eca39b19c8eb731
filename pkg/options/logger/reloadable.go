package logger

import (
	"fmt"
	"sync"

	"github.com/kart-io/logger"
)

// Reloader rebuilds the global logger when the log section changes. Level,
// format, outputs, development mode, caller and stacktrace settings are
// reloadable; the engine is fixed at start.
type Reloader struct {
	mu   sync.Mutex
	opts *Options
}

// NewReloader creates a reloader starting from the options in effect.
func NewReloader(opts *Options) *Reloader {
	return &Reloader{opts: opts}
}

// OnConfigChange applies newConfig, an *Options, and keeps the previous
// logger when the new one cannot be built.
func (r *Reloader) OnConfigChange(newConfig any) error {
	next, ok := newConfig.(*Options)
	if !ok {
		return fmt.Errorf("invalid config type: expected *logger.Options, got %T", newConfig)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid logger configuration: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := *r.opts.LogOption
	candidate.Level = next.Level
	candidate.Format = next.Format
	candidate.OutputPaths = append([]string(nil), next.OutputPaths...)
	candidate.Development = next.Development
	candidate.DisableCaller = next.DisableCaller
	candidate.DisableStacktrace = next.DisableStacktrace

	applied := &Options{LogOption: &candidate}
	if err := applied.Init(); err != nil {
		return fmt.Errorf("failed to apply logger config: %w", err)
	}
	r.opts = applied

	logger.Infow("Logger configuration reloaded",
		"level", candidate.Level,
		"format", candidate.Format,
		"development", candidate.Development,
	)
	return nil
}

// Current returns the options in effect.
func (r *Reloader) Current() *Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts
}
