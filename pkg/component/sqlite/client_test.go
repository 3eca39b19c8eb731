package sqlite

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ component.ConfigOptions = (*Options)(nil)

type note struct {
	ID   uint
	Body string
}

func testOptions(t *testing.T) *Options {
	t.Helper()
	opts := NewOptions()
	opts.Path = filepath.Join(t.TempDir(), "test.db")
	opts.Lifecycle.ProbeInterval = 0
	return opts
}

func TestSupervisedDatabase(t *testing.T) {
	s, err := NewSupervisor("notes", testOptions(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := s.StartUpContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", client.Name())
	require.NoError(t, client.Ping(ctx))

	db := client.DB()
	require.NoError(t, db.AutoMigrate(&note{}))
	require.NoError(t, db.Create(&note{Body: "hello"}).Error)

	var count int64
	require.NoError(t, db.Model(&note{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	stats, err := client.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 1)

	require.NoError(t, s.ShutDownContext(ctx))
	assert.Error(t, client.Ping(ctx))
}

func TestRestartReopensDatabase(t *testing.T) {
	s, err := NewSupervisor("notes", testOptions(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := s.StartUpContext(ctx)
	require.NoError(t, err)
	require.NoError(t, first.DB().AutoMigrate(&note{}))
	require.NoError(t, first.DB().Create(&note{Body: "kept"}).Error)

	second, err := s.RestartContext(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Error(t, first.Ping(ctx))

	var got note
	require.NoError(t, second.DB().First(&got).Error)
	assert.Equal(t, "kept", got.Body)
}

func TestDropTerminatesClient(t *testing.T) {
	var drops atomic.Int32
	s, err := NewSupervisor("notes", testOptions(t),
		storage.WithSupervisorOptions(supervisor.WithEventHandler(func(ev supervisor.Event) {
			if ev.Type == supervisor.EventDropped {
				drops.Add(1)
			}
		})),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := s.StartUpContext(ctx)
	require.NoError(t, err)

	s.Dropped()
	require.Eventually(t, func() bool {
		return drops.Load() == 1 && client.Ping(ctx) != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, s.IsDown())
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	opts.Path = ""
	assert.ErrorIs(t, opts.Validate(), storage.ErrInvalidConfig)
}
