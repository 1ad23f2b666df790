package cache

import (
	"fmt"
	"strings"
)

// Key builds a normalized cache key from ordered parts. Each part is
// formatted, trimmed and lower-cased; empty parts are dropped and the rest
// joined with ":".
//
// Example:
//
//	Key("markets", "Sports", 20, 0, "") == "markets:sports:20:0"
func Key(parts ...any) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == nil {
			continue
		}
		s := strings.ToLower(strings.TrimSpace(fmt.Sprint(part)))
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, ":")
}
