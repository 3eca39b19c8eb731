package postgres

import (
	"encoding/json"
	"testing"

	"github.com/kart-io/lifeline/pkg/component"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ component.ConfigOptions = (*Options)(nil)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     string
	}{
		{name: "simple", password: "secret", want: "password=secret "},
		{name: "empty", password: "", want: "password='' "},
		{name: "space", password: "pass word", want: "password='pass word' "},
		{name: "quote", password: "it's", want: `password='it\'s' `},
		{name: "backslash", password: `a\b`, want: `password='a\\b' `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions()
			opts.Password = tt.password
			dsn := BuildDSN(opts)
			assert.Contains(t, dsn, tt.want)
			assert.Contains(t, dsn, "host=127.0.0.1 port=5432 user=postgres")
			assert.Contains(t, dsn, "dbname=postgres sslmode=disable")
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Complete())
	require.NoError(t, opts.Validate())

	opts.SSLMode = "sometimes"
	err := opts.Validate()
	assert.ErrorIs(t, err, storage.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "SSLMode")
}

func TestOptionsRedactPassword(t *testing.T) {
	opts := NewOptions()
	opts.Password = "secret"

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, opts.String(), "secret")
}
