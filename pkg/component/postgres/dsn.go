package postgres

import (
	"fmt"
	"strings"
)

// BuildDSN creates a key=value PostgreSQL DSN from the options.
//
//	host=localhost port=5432 user=postgres password=secret dbname=mydb sslmode=disable
func BuildDSN(opts *Options) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host,
		opts.Port,
		opts.Username,
		quote(opts.Password),
		opts.Database,
		opts.SSLMode,
	)
}

// quote wraps values containing spaces, quotes or backslashes in single
// quotes, escaping quotes and backslashes inside.
func quote(value string) string {
	if value == "" {
		return "''"
	}
	if !strings.ContainsAny(value, " '\\") {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}
