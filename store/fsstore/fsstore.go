// Package fsstore implements store.Store over a plain directory of
// "<id>.json" files, grounded on the teacher's atomic-write idiom in
// server/store/kvstore/store.go (write-then-index) generalized to
// write-temp-then-rename for crash-safety (§4.2).
package fsstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
)

// FSStore persists records at <base>/<encoded-id>.json.
type FSStore struct {
	base    string
	encoder store.IDEncoder
}

// New creates an FSStore rooted at base, creating the directory if absent.
// encoder may be nil to use store.DefaultIDEncoder (identity except for
// actor-style "kind:name" IDs).
func New(base string, encoder store.IDEncoder) (*FSStore, error) {
	if encoder == nil {
		encoder = store.DefaultIDEncoder
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	return &FSStore{base: base, encoder: encoder}, nil
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.base, s.encoder.Encode(id)+".json")
}

// Put writes w atomically: write-temp + rename, so a crash mid-write never
// leaves a partially-written record visible to List/Get (§4.2).
func (s *FSStore) Put(_ context.Context, id string, w *record.Wrapper) (*store.PutResult, error) {
	raw, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal wrapper")
	}

	target := s.path(id)
	tmp, err := os.CreateTemp(s.base, ".tmp-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return nil, errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, target); err != nil {
		return nil, errors.Wrap(err, "failed to rename into place")
	}

	return &store.PutResult{}, nil
}

func (s *FSStore) Get(_ context.Context, id string) (*record.Wrapper, error) {
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, record.NewKindError(record.ErrRecordNotFound, "no record for id %q", id)
		}
		return nil, errors.Wrap(err, "failed to read record")
	}
	return record.DecodeWrapper(raw)
}

// List enumerates every "*.json" entry in base, decoding filenames back to
// record IDs (§4.2).
func (s *FSStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read store directory")
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		encoded := strings.TrimSuffix(name, ".json")
		id, err := s.encoder.Decode(encoded)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FSStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return record.NewKindError(record.ErrRecordNotFound, "no record for id %q", id)
		}
		return errors.Wrap(err, "failed to delete record")
	}
	return nil
}

func (s *FSStore) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(s.path(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "failed to stat record")
}

var _ store.Store = (*FSStore)(nil)
