// Package options holds helpers shared by option structs.
package options

import "strings"

// Join concatenates prefixes with "." and appends a trailing "." to a
// non-empty result, so Join("resources", "redis") + "host" yields
// "resources.redis.host".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}
