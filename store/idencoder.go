package store

import "strings"

// colonEncoder is the default IDEncoder: ':' -> "__", invertible as long as
// raw IDs never themselves contain the literal substring "__". Record and
// actor IDs are restricted to [a-z0-9-] plus a leading "human:"/"agent:"
// prefix (§3), so this holds for every valid ID.
type colonEncoder struct{}

// DefaultIDEncoder is used by the filesystem backend for actor IDs, and is
// the identity mapping for every other record type (whose IDs never
// contain ':').
var DefaultIDEncoder IDEncoder = colonEncoder{}

func (colonEncoder) Encode(id string) string {
	return strings.ReplaceAll(id, ":", "__")
}

func (colonEncoder) Decode(name string) (string, error) {
	return strings.ReplaceAll(name, "__", ":"), nil
}
