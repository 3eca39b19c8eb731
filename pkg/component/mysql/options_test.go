package mysql

import (
	"encoding/json"
	"testing"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ component.ConfigOptions = (*Options)(nil)

func TestBuildDSN(t *testing.T) {
	opts := NewOptions()
	opts.Host = "db.internal"
	opts.Password = "p@ss/word"
	opts.Database = "orders"

	assert.Equal(t,
		"root:p%40ss%2Fword@tcp(db.internal:3306)/orders?charset=utf8mb4&parseTime=True&loc=Local",
		BuildDSN(opts))
}

func TestOptionsRedactPassword(t *testing.T) {
	opts := NewOptions()
	opts.Password = "secret"

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), component.RedactedPassword)
	assert.Contains(t, string(data), `"max-open-connections":200`)
	assert.NotContains(t, opts.String(), "secret")
}

func TestOptionsValidate(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")

	opts := NewOptions()
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())
	assert.Equal(t, "from-env", opts.Password)

	opts.Host = ""
	opts.Port = 0
	err := opts.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Host")
	assert.Contains(t, err.Error(), "Port")
}

func TestOptionsAddFlags(t *testing.T) {
	opts := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts.AddFlags(fs, "mysql.")

	require.NoError(t, fs.Parse([]string{
		"--mysql.host=10.0.0.5",
		"--mysql.max-open-connections=10",
		"--mysql.lifecycle.probe-interval=0s",
	}))
	assert.Equal(t, "10.0.0.5", opts.Host)
	assert.Equal(t, 10, opts.MaxOpenConnections)
	assert.Zero(t, opts.Lifecycle.ProbeInterval)
}
