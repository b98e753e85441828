// Package ids mints prefixed identifiers for jobs, assets and outputs.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns "<prefix>_<uuid without dashes>".
func New(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// Valid reports whether s looks like an id minted by New with the given prefix.
func Valid(prefix, s string) bool {
	if prefix != "" {
		if !strings.HasPrefix(s, prefix+"_") {
			return false
		}
		s = strings.TrimPrefix(s, prefix+"_")
	}
	if len(s) != 32 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
