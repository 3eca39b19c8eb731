package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Name    string        `mapstructure:"name"`
	Timeout time.Duration `mapstructure:"timeout"`
	DSN     string        `mapstructure:"dsn"`

	completed bool
}

func (o *testOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "name", o.Name, "name")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "timeout")
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAppLoadsConfig(t *testing.T) {
	t.Setenv("APP_TEST_HOST", "db.internal")
	path := writeConfig(t, "name: from-file\ntimeout: 3s\ndsn: postgres://${APP_TEST_HOST}/app\n")

	opts := &testOptions{Timeout: time.Second}
	var ran bool
	a := NewApp(
		WithName("app-test"),
		WithNoVersion(),
		WithOptions(opts),
		WithRunFunc(func(ctx context.Context) error {
			ran = true
			return ctx.Err()
		}),
	)
	a.Command().SetArgs([]string{"--config", path, "--timeout", "5s"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "from-file", opts.Name)
	assert.Equal(t, 5*time.Second, opts.Timeout, "flags win over the file")
	assert.Equal(t, "postgres://db.internal/app", opts.DSN)
	assert.Equal(t, "from-file", a.Viper().GetString("name"))
}

func TestAppValidates(t *testing.T) {
	path := writeConfig(t, "timeout: 1s\n")
	a := NewApp(WithName("app-test"), WithNoVersion(), WithOptions(&testOptions{}))
	a.Command().SetArgs([]string{"--config", path})
	assert.EqualError(t, a.Command().Execute(), "name is required")
}

func TestAppMissingConfig(t *testing.T) {
	a := NewApp(WithName("app-test"), WithNoVersion(), WithOptions(&testOptions{}))
	a.Command().SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, a.Command().Execute())
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "LIFELINE", EnvPrefix("lifeline"))
	assert.Equal(t, "MY_APP", EnvPrefix("my-app"))
}
