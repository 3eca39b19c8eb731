package storage

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kart-io/logger/core"
)

// probe pings a client every interval and calls onFailure each time the
// number of consecutive failures reaches threshold. It keeps running until
// stopped.
type probe struct {
	client    Client
	interval  time.Duration
	timeout   time.Duration
	threshold int
	clock     clockwork.Clock
	run       Runner
	log       core.Logger
	onFailure func(err error)

	stopCh chan struct{}
	once   sync.Once
}

func (p *probe) start() {
	p.stopCh = make(chan struct{})
	go p.loop()
}

func (p *probe) stop() {
	p.once.Do(func() { close(p.stopCh) })
}

func (p *probe) loop() {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.Chan():
		}

		stopped, err := p.check()
		if stopped {
			return
		}
		if err == nil {
			failures = 0
			continue
		}

		failures++
		p.log.Debugw("Health probe failed", "failures", failures, "error", err)
		if failures >= p.threshold {
			failures = 0
			p.onFailure(err)
		}
	}
}

// check runs one ping on the probe runner. stopped reports that the probe
// was stopped while waiting for the result.
func (p *probe) check() (stopped bool, err error) {
	result := make(chan error, 1)
	p.run(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		result <- p.client.Ping(ctx)
	})

	select {
	case err := <-result:
		return false, err
	case <-p.stopCh:
		return true, nil
	}
}
