// Package fssink implements projector.Sink by writing the IndexData
// snapshot to a single JSON file, grounded on the same write-temp-then-
// rename idiom used by store/fsstore for crash-safe record writes (§4.4
// "FS sink writes <.gitgov>/index.json atomically").
package fssink

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/gitgov-dev/gitgov-core/projector"
)

// FSSink persists an IndexData snapshot at the fixed path given to New,
// conventionally "<repoRoot>/.gitgov/index.json" (§6); there is no default.
type FSSink struct {
	path string
}

// New builds an FSSink writing to path.
func New(path string) *FSSink {
	return &FSSink{path: path}
}

// Persist writes data to s.path atomically: write-temp + rename.
func (s *FSSink) Persist(_ context.Context, data *projector.IndexData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal index data")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create index directory")
	}

	tmp, err := os.CreateTemp(dir, ".tmp-index-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return errors.Wrap(err, "failed to rename index file into place")
	}
	return nil
}

// Read reconstructs the IndexData last persisted at s.path (§4.4 "read").
func (s *FSSink) Read(_ context.Context) (*projector.IndexData, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read index file")
	}
	var data projector.IndexData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Wrap(err, "failed to parse index file")
	}
	return &data, nil
}

var _ projector.Sink = (*FSSink)(nil)
