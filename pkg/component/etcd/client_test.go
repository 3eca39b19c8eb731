package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var _ component.ConfigOptions = (*Options)(nil)

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Options)
		wantErr bool
	}{
		{name: "defaults", modify: func(*Options) {}},
		{name: "no endpoints", modify: func(o *Options) { o.Endpoints = nil }, wantErr: true},
		{name: "blank endpoint", modify: func(o *Options) { o.Endpoints = []string{""} }, wantErr: true},
		{name: "zero dial timeout", modify: func(o *Options) { o.DialTimeout = 0 }, wantErr: true},
		{name: "zero request timeout", modify: func(o *Options) { o.RequestTimeout = 0 }, wantErr: true},
		{name: "negative lease", modify: func(o *Options) { o.LeaseTTL = -1 }, wantErr: true},
		{name: "lease disabled", modify: func(o *Options) { o.LeaseTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions()
			tt.modify(opts)
			err := opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOptionsRedactPassword(t *testing.T) {
	opts := NewOptions()
	opts.Password = "s3cret"

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "s3cret")
	assert.NotContains(t, opts.String(), "s3cret")
}

func TestAddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs, "etcd.")

	require.NoError(t, fs.Parse([]string{
		"--etcd.endpoints=10.0.0.1:2379,10.0.0.2:2379",
		"--etcd.lease-ttl=0",
	}))
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, opts.Endpoints)
	assert.Zero(t, opts.LeaseTTL)
}

func TestWatchReportsLostLease(t *testing.T) {
	ch := make(chan *clientv3.LeaseKeepAliveResponse, 1)
	c := &Client{lease: 42, keepAlive: ch}

	lost := make(chan error, 1)
	c.Watch(func(err error) { lost <- err })

	ch <- &clientv3.LeaseKeepAliveResponse{ID: 42, TTL: 60}
	close(ch)

	select {
	case err := <-lost:
		assert.True(t, errors.Is(err, ErrLeaseLost))
	case <-time.After(time.Second):
		t.Fatal("lease loss was not reported")
	}
}

func TestWatchIgnoresClose(t *testing.T) {
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	cancelled := false
	c := &Client{lease: 7, keepAlive: ch, cancel: func() { cancelled = true; close(ch) }}

	lost := make(chan error, 1)
	c.Watch(func(err error) { lost <- err })

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, cancelled)

	select {
	case err := <-lost:
		t.Fatalf("unexpected loss report: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartUpFailsWithoutCluster(t *testing.T) {
	opts := NewOptions()
	opts.Endpoints = []string{"127.0.0.1:1"}
	opts.DialTimeout = 100 * time.Millisecond
	opts.RequestTimeout = 100 * time.Millisecond
	opts.Lifecycle.ProbeInterval = 0

	s, err := NewSupervisor("registry", opts)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = s.StartUpContext(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConnectionFailed)
	assert.True(t, s.IsDown())
}
