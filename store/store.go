// Package store defines the polymorphic record-store capability set (§4.2)
// and its filesystem and remote-hosted implementations.
package store

import (
	"context"

	"github.com/gitgov-dev/gitgov-core/record"
)

// PutResult is returned by a successful Put; Ref carries a backend-specific
// revision marker (empty for the filesystem backend, a commit SHA for the
// hosted backend) so callers can diff across writes (§6).
type PutResult struct {
	Ref string
}

// Store is the capability set every backend implements (§4.2). Every method
// is a suspension point (§5): it may invoke the filesystem, a subprocess, or
// a network client, so all take a context for cancellation.
type Store interface {
	Put(ctx context.Context, id string, w *record.Wrapper) (*PutResult, error)
	Get(ctx context.Context, id string) (*record.Wrapper, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// IDEncoder maps a record ID to a safe filename and back. Actor IDs contain
// ':' (e.g. "human:alice"), which is not a safe filename character on every
// filesystem, so encoding must be invertible (§4.2).
type IDEncoder interface {
	Encode(id string) string
	Decode(name string) (string, error)
}
