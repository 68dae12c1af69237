// Package idgen generates journal event IDs backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// EventPrefix is prepended to journal event IDs.
	EventPrefix = "ev-"

	alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	length   = 12
)

// NewEventID returns a new journal event ID such as "ev-3k9x0c1m2q7z".
func NewEventID() (string, error) {
	return withPrefix(EventPrefix)
}

func withPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
