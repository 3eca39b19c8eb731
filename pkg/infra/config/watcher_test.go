package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/spf13/viper"
)

type fakeReconfigurer struct {
	mu    sync.Mutex
	calls []*supervisor.Options
	err   error
}

func (f *fakeReconfigurer) Reconfigure(opts *supervisor.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return f.err
}

func (f *fakeReconfigurer) last() (*supervisor.Options, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil, 0
	}
	return f.calls[len(f.calls)-1], len(f.calls)
}

func yamlViper(t *testing.T, content string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		t.Fatalf("read config: %v", err)
	}
	return v
}

func TestSubscribeUnsubscribe(t *testing.T) {
	w := NewWatcher(viper.New())

	w.Subscribe("a", func(*viper.Viper) error { return nil })
	w.Subscribe("a", func(*viper.Viper) error { return nil })
	w.Subscribe("b", func(*viper.Viper) error { return nil })
	if got := w.HandlerCount(); got != 2 {
		t.Fatalf("HandlerCount() = %d, want 2", got)
	}

	w.Unsubscribe("a")
	w.Unsubscribe("missing")
	if got := w.HandlerCount(); got != 1 {
		t.Fatalf("HandlerCount() = %d, want 1", got)
	}
}

func TestDispatchOrderAndFailures(t *testing.T) {
	w := NewWatcher(viper.New())
	w.watching = true

	var order []string
	w.Subscribe("b", func(*viper.Viper) error {
		order = append(order, "b")
		return errors.New("rejected")
	})
	w.Subscribe("a", func(*viper.Viper) error {
		order = append(order, "a")
		return nil
	})
	w.Subscribe("c", func(*viper.Viper) error {
		order = append(order, "c")
		return nil
	})

	if failed := w.dispatch("lifeline.yaml"); failed != 1 {
		t.Errorf("dispatch() failed = %d, want 1", failed)
	}
	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Errorf("handler order = %s, want a,b,c", got)
	}
}

func TestDispatchIgnoredWhileStopped(t *testing.T) {
	w := NewWatcher(viper.New())
	called := false
	w.Subscribe("a", func(*viper.Viper) error {
		called = true
		return nil
	})

	w.dispatch("lifeline.yaml")
	if called {
		t.Error("handler called while the watcher is not watching")
	}
}

func TestSupervisorOptionsReload(t *testing.T) {
	v := yamlViper(t, `
supervisor:
  auto-restart: true
  restart-delay: 250ms
  max-restart-attempts: 4
`)
	target := &fakeReconfigurer{}
	w := NewWatcher(v)
	w.watching = true
	WatchSupervisorOptions(w, "supervisor", target)

	if failed := w.dispatch("lifeline.yaml"); failed != 0 {
		t.Fatalf("dispatch() failed = %d, want 0", failed)
	}

	opts, calls := target.last()
	if calls != 1 {
		t.Fatalf("Reconfigure called %d times, want 1", calls)
	}
	if !opts.AutoRestart {
		t.Error("AutoRestart = false, want true")
	}
	if opts.RestartDelay != 250*time.Millisecond {
		t.Errorf("RestartDelay = %s, want 250ms", opts.RestartDelay)
	}
	if opts.MaxRestartAttempts != 4 {
		t.Errorf("MaxRestartAttempts = %d, want 4", opts.MaxRestartAttempts)
	}
	// Unset keys keep their defaults.
	if want := supervisor.NewOptions().ActionTimeout; opts.ActionTimeout != want {
		t.Errorf("ActionTimeout = %s, want default %s", opts.ActionTimeout, want)
	}
}

func TestSupervisorOptionsRejected(t *testing.T) {
	v := yamlViper(t, "supervisor:\n  backoff-coefficient: 0.5\n")
	target := &fakeReconfigurer{err: supervisor.ErrInvalidOptions}
	w := NewWatcher(v)
	w.watching = true
	WatchSupervisorOptions(w, "supervisor", target)

	if failed := w.dispatch("lifeline.yaml"); failed != 1 {
		t.Fatalf("dispatch() failed = %d, want 1", failed)
	}
}

func TestSupervisorReloaderRejectsWrongType(t *testing.T) {
	r := NewSupervisorReloader(&fakeReconfigurer{})
	if err := r.OnConfigChange(struct{}{}); err == nil {
		t.Fatal("OnConfigChange() accepted a foreign type")
	}
}

func TestConfigFileChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watch test in short mode")
	}

	path := filepath.Join(t.TempDir(), "lifeline.yaml")
	if err := os.WriteFile(path, []byte("supervisor:\n  auto-restart: false\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	target := &fakeReconfigurer{}
	w := NewWatcher(v)
	WatchSupervisorOptions(w, "supervisor", target)
	w.Start()
	defer w.Stop()

	if !w.IsWatching() {
		t.Fatal("IsWatching() = false after Start")
	}

	// Give fsnotify a moment to register the watch.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("supervisor:\n  auto-restart: true\n"), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if opts, _ := target.last(); opts != nil && opts.AutoRestart {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("supervisor options were not reloaded")
}
