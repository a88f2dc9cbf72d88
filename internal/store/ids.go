package store

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

func newID() string {
	return ulid.Make().String()
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func prependUnique(history []string, videoID string) []string {
	out := make([]string, 0, len(history)+1)
	out = append(out, videoID)
	for _, id := range history {
		if id != videoID {
			out = append(out, id)
		}
	}
	return out
}
