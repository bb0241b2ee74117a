package core

import (
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
)

// ID is a KSUID-backed identifier used for runs and persisted entities.
type ID string

func NewID() (ID, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return ID(id.String()), nil
}

// MustNewID panics when the random source fails, which only happens when the
// OS entropy pool is unavailable.
func MustNewID() ID {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}

func ParseID(raw string) (ID, error) {
	if raw == "" {
		return "", errors.New("empty ID")
	}
	if _, err := ksuid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid ID format: %w", err)
	}
	return ID(raw), nil
}

func (i ID) String() string {
	return string(i)
}

func (i ID) IsZero() bool {
	return i == ""
}
