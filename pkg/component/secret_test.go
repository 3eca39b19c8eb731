package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, RedactedPassword, Redact("hunter2"))
}

func TestPasswordFromEnv(t *testing.T) {
	t.Setenv("LIFELINE_TEST_PASSWORD", "from-env")

	var empty string
	PasswordFromEnv(&empty, "LIFELINE_TEST_PASSWORD")
	assert.Equal(t, "from-env", empty)

	explicit := "from-flag"
	PasswordFromEnv(&explicit, "LIFELINE_TEST_PASSWORD")
	assert.Equal(t, "from-flag", explicit)
}

func TestValidateStruct(t *testing.T) {
	type sample struct {
		Host string `validate:"required"`
		Port int    `validate:"gt=0,lte=65535"`
	}

	assert.NoError(t, ValidateStruct(&sample{Host: "localhost", Port: 6379}))

	err := ValidateStruct(&sample{Port: 70000})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sample.Host")
	assert.Contains(t, err.Error(), "sample.Port")
}
