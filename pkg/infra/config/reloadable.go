package config

import (
	"fmt"

	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/spf13/viper"
)

// Reloadable is implemented by components that apply configuration changes
// at runtime. OnConfigChange validates the new configuration and applies it
// atomically, or returns an error and keeps the old one.
type Reloadable interface {
	OnConfigChange(newConfig any) error
}

// ReloadableSubscriber unmarshals one configuration section into a fresh
// target and passes it to a Reloadable.
type ReloadableSubscriber struct {
	component Reloadable
	configKey string
	newTarget func() any
}

// NewReloadableSubscriber creates a subscriber for the section at configKey.
// newTarget returns a pointer to a defaulted configuration structure; it is
// called for every change so removed keys fall back to their defaults.
func NewReloadableSubscriber(component Reloadable, configKey string, newTarget func() any) *ReloadableSubscriber {
	return &ReloadableSubscriber{
		component: component,
		configKey: configKey,
		newTarget: newTarget,
	}
}

// Handler returns the ChangeHandler to register with a Watcher.
func (rs *ReloadableSubscriber) Handler() ChangeHandler {
	return func(v *viper.Viper) error {
		target := rs.newTarget()
		if err := v.UnmarshalKey(rs.configKey, target); err != nil {
			return fmt.Errorf("failed to unmarshal config key '%s': %w", rs.configKey, err)
		}
		if err := rs.component.OnConfigChange(target); err != nil {
			return fmt.Errorf("component rejected config change: %w", err)
		}
		return nil
	}
}

// Reconfigurer is a supervisor, or a registry of them, whose options can be
// replaced at runtime.
type Reconfigurer interface {
	Reconfigure(opts *supervisor.Options) error
}

// SupervisorReloader applies reloaded supervisor options to a Reconfigurer.
type SupervisorReloader struct {
	target Reconfigurer
}

var _ Reloadable = (*SupervisorReloader)(nil)

// NewSupervisorReloader creates a reloader for target.
func NewSupervisorReloader(target Reconfigurer) *SupervisorReloader {
	return &SupervisorReloader{target: target}
}

// OnConfigChange implements Reloadable.
func (r *SupervisorReloader) OnConfigChange(newConfig any) error {
	opts, ok := newConfig.(*supervisor.Options)
	if !ok {
		return fmt.Errorf("expected *supervisor.Options, got %T", newConfig)
	}
	return r.target.Reconfigure(opts)
}

// WatchSupervisorOptions subscribes target to changes of the supervisor
// options section at key.
func WatchSupervisorOptions(w *Watcher, key string, target Reconfigurer) {
	sub := NewReloadableSubscriber(NewSupervisorReloader(target), key, func() any {
		return supervisor.NewOptions()
	})
	w.Subscribe(key, sub.Handler())
}
