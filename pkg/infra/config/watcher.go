// Package config watches the configuration file and hands changed sections
// to the components that can apply them without a restart.
//
//	watcher := config.NewWatcher(v)
//	config.WatchSupervisorOptions(watcher, "supervisor", mgr)
//	watcher.Start()
//
// Handlers run sequentially, in the order of their ids. A failing handler is
// logged and does not stop the others; the component keeps its previous
// configuration.
package config

import (
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"
	"github.com/spf13/viper"
)

// ChangeHandler is invoked with the reloaded viper instance.
type ChangeHandler func(v *viper.Viper) error

// Watcher manages configuration file watching and change notifications.
type Watcher struct {
	viper    *viper.Viper
	handlers map[string]ChangeHandler
	mu       sync.RWMutex
	watching bool
	started  bool
}

// NewWatcher creates a watcher over v, which must already have read its
// configuration file.
func NewWatcher(v *viper.Viper) *Watcher {
	return &Watcher{
		viper:    v,
		handlers: make(map[string]ChangeHandler),
	}
}

// Subscribe registers handler under id, replacing any previous one.
func (w *Watcher) Subscribe(id string, handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[id] = handler
	logger.Infow("Config watcher: handler subscribed", "id", id)
}

// Unsubscribe removes the handler registered under id.
func (w *Watcher) Unsubscribe(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.handlers[id]; exists {
		delete(w.handlers, id)
		logger.Infow("Config watcher: handler unsubscribed", "id", id)
	}
}

// Start begins watching the configuration file. Calling it again after Stop
// resumes notifications.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watching {
		return
	}
	w.watching = true

	// viper cannot stop a watch, so it is set up once and gated by watching.
	if !w.started {
		w.started = true
		w.viper.OnConfigChange(func(e fsnotify.Event) {
			w.dispatch(e.Name)
		})
		w.viper.WatchConfig()
	}
	logger.Infow("Config watcher: started", "file", w.viper.ConfigFileUsed())
}

// Stop suppresses further notifications.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watching {
		return
	}
	w.watching = false
	logger.Infow("Config watcher: stopped")
}

// IsWatching returns whether the watcher is currently active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// HandlerCount returns the number of registered handlers.
func (w *Watcher) HandlerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.handlers)
}

// dispatch calls every handler, without holding the lock, and returns the
// number that failed.
func (w *Watcher) dispatch(file string) int {
	w.mu.RLock()
	if !w.watching {
		w.mu.RUnlock()
		return 0
	}
	ids := make([]string, 0, len(w.handlers))
	for id := range w.handlers {
		ids = append(ids, id)
	}
	handlers := make(map[string]ChangeHandler, len(w.handlers))
	for id, h := range w.handlers {
		handlers[id] = h
	}
	w.mu.RUnlock()

	sort.Strings(ids)
	logger.Infow("Config file changed", "file", file, "handlers", len(ids))

	failed := 0
	for _, id := range ids {
		if err := handlers[id](w.viper); err != nil {
			failed++
			logger.Errorw("Config watcher: handler failed", "id", id, "error", err)
			continue
		}
		logger.Debugw("Config watcher: handler applied change", "id", id)
	}
	return failed
}
