package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// ID identifies the logical object an entity script is attached to.
// The zero value is Nil and denotes code that runs on behalf of no entity.
type ID uuid.UUID

// Nil is the "no entity" identity.
var Nil ID

// NewID returns a fresh, time-sortable identity (UUIDv7).
//
// Panics if UUID generation fails (should never happen in practice).
func NewID() ID {
	return ID(uuid.Must(uuid.NewV7()))
}

// Parse decodes the textual form of an identity.
// The empty string parses to Nil.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("parse entity id %q: %w", s, err)
	}
	return ID(u), nil
}

// MustParse is like Parse but panics on malformed input.
// Intended for tests and constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsNil reports whether the identity is the "no entity" value.
func (id ID) IsNil() bool {
	return id == Nil
}

// String returns the hyphenated UUID form, or "" for Nil.
func (id ID) String() string {
	if id.IsNil() {
		return ""
	}
	return uuid.UUID(id).String()
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
