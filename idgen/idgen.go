// Package idgen provides pluggable identifier generation for softnav.
//
// The session generates a restoration identifier for every history entry it
// pushes or replaces; drivers and the visit log need IDs of their own. All
// constructors accept a Generator so the ID strategy is a startup-time
// decision rather than a compile-time one.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings.
// Time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// NanoID returns a Generator producing base-36 IDs of the given length.
// Short and URL-safe; use where a full UUID is too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		out := make([]byte, length)
		for i, b := range buf {
			out[i] = alphabet[int(b)%len(alphabet)]
		}
		return string(out)
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID,
// for type-scoped identifiers ("rst_", "vis_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Restoration is the default generator for restoration identifiers: one
// opaque key per history entry, correlating the entry with its saved UI
// state.
var Restoration Generator = Prefixed("rst_", UUIDv7())

// Default is the general-purpose default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}
