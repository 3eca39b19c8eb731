package component

import (
	"os"

	"github.com/kart-io/logger"
)

// RedactedPassword is the placeholder used when serializing passwords.
const RedactedPassword = "[REDACTED]"

// Redact hides a non-empty secret.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return RedactedPassword
}

// PasswordFromEnv fills *password from envVar when it is empty, and warns when
// the password came from a flag or a config file instead.
func PasswordFromEnv(password *string, envVar string) {
	env := os.Getenv(envVar)
	if *password == "" {
		*password = env
		return
	}
	if env == "" {
		logger.Warnw("Password passed via flag or config file, prefer the environment variable",
			"env", envVar,
		)
	}
}
