package cache

import (
	"fmt"
	"strings"
)

// Key joins parts with ':', e.g. Key("predictions", "QQQ", "call") = "predictions:QQQ:call".
func Key(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = fmt.Sprint(p)
	}
	return strings.Join(s, ":")
}

// Under returns a glob matching every key nested below the given parts.
func Under(parts ...interface{}) string {
	return Key(parts...) + ":*"
}
