// Package ghstore implements store.Store against a hosted git repository's
// content API, grounded on the teacher's server/ghclient.Client wrapper
// around go-github (§4.2 "Remote hosted backend").
package ghstore

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/pkg/errors"

	"github.com/gitgov-dev/gitgov-core/record"
	"github.com/gitgov-dev/gitgov-core/store"
)

func marshalIndent(w *record.Wrapper) ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}

// CommitAuthor names who writes a record to the state branch, mirroring
// the "gitgov: sync state [actor:...]" commit convention of §4.5.
type CommitAuthor struct {
	Name  string
	Email string
}

// GHStore stores records under <dir>/<id>.json at the HEAD of branch on a
// hosted repository, using create-or-update-file semantics per write.
type GHStore struct {
	client       *github.Client
	owner, repo  string
	branch       string
	dir          string
	encoder      store.IDEncoder
	commitAuthor CommitAuthor
}

// New builds a GHStore. client is a pre-authenticated *github.Client (the
// hosted-API client is injected per §9 "Injectable collaborators").
func New(client *github.Client, owner, repo, branch, dir string, encoder store.IDEncoder, author CommitAuthor) *GHStore {
	if encoder == nil {
		encoder = store.DefaultIDEncoder
	}
	return &GHStore{client: client, owner: owner, repo: repo, branch: branch, dir: dir, encoder: encoder, commitAuthor: author}
}

func (s *GHStore) filePath(id string) string {
	return path.Join(s.dir, s.encoder.Encode(id)+".json")
}

// Put commits via create-or-update-file. A conflicting write (the file was
// changed since the caller last read its SHA) surfaces as ConcurrentUpdate
// (§4.2), detected from go-github's 409/422 response for a stale `sha`.
func (s *GHStore) Put(ctx context.Context, id string, w *record.Wrapper) (*store.PutResult, error) {
	raw, err := marshalWrapper(w)
	if err != nil {
		return nil, err
	}

	fp := s.filePath(id)
	var existingSHA *string
	if content, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fp, &github.RepositoryContentGetOptions{Ref: s.branch}); err == nil && content != nil {
		existingSHA = content.SHA
	} else if resp != nil && resp.StatusCode != 404 && err != nil {
		return nil, errors.Wrap(err, "failed to check existing content")
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr("gitgov: put " + id),
		Content: raw,
		Branch:  github.Ptr(s.branch),
		SHA:     existingSHA,
	}
	if s.commitAuthor.Name != "" {
		opts.Author = &github.CommitAuthor{Name: &s.commitAuthor.Name, Email: &s.commitAuthor.Email}
		opts.Committer = &github.CommitAuthor{Name: &s.commitAuthor.Name, Email: &s.commitAuthor.Email}
	}

	resp, httpResp, err := s.client.Repositories.CreateFile(ctx, s.owner, s.repo, fp, opts)
	if err != nil {
		if httpResp != nil && (httpResp.StatusCode == 409 || httpResp.StatusCode == 422) {
			return nil, record.NewKindError(record.ErrConcurrentUpdate, "write to %q conflicted: %v", fp, err)
		}
		return nil, errors.Wrap(err, "failed to write record to hosted backend")
	}

	sha := ""
	if resp != nil && resp.Commit.SHA != nil {
		sha = *resp.Commit.SHA
	}
	return &store.PutResult{Ref: sha}, nil
}

// Get decodes the base64 content API response for the record at id (§4.2).
func (s *GHStore) Get(ctx context.Context, id string) (*record.Wrapper, error) {
	fp := s.filePath(id)
	content, _, resp, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fp, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == 404 {
			return nil, record.NewKindError(record.ErrRecordNotFound, "no record for id %q", id)
		}
		return nil, errors.Wrap(err, "failed to fetch record from hosted backend")
	}
	if content == nil {
		return nil, record.NewKindError(record.ErrRecordNotFound, "no record for id %q", id)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode hosted content")
	}
	return record.DecodeWrapper([]byte(decoded))
}

// List reads the directory listing under dir with a single contents-API
// call, decoding filenames back to record IDs. No further pages are
// requested, so only the entries that one response returns are listed.
func (s *GHStore) List(ctx context.Context) ([]string, error) {
	_, dirContent, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, s.dir, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list hosted directory")
	}

	ids := make([]string, 0, len(dirContent))
	for _, entry := range dirContent {
		if entry.GetType() != "file" {
			continue
		}
		name := entry.GetName()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		encoded := strings.TrimSuffix(name, ".json")
		id, err := s.encoder.Decode(encoded)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *GHStore) Delete(ctx context.Context, id string) error {
	fp := s.filePath(id)
	content, _, _, err := s.client.Repositories.GetContents(ctx, s.owner, s.repo, fp, &github.RepositoryContentGetOptions{Ref: s.branch})
	if err != nil {
		return record.NewKindError(record.ErrRecordNotFound, "no record for id %q", id)
	}
	_, _, err = s.client.Repositories.DeleteFile(ctx, s.owner, s.repo, fp, &github.RepositoryContentFileOptions{
		Message: github.Ptr("gitgov: delete " + id),
		SHA:     content.SHA,
		Branch:  github.Ptr(s.branch),
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete hosted record")
	}
	return nil
}

func (s *GHStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if err == nil {
		return true, nil
	}
	if record.IsKind(err, record.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// marshalWrapper renders w as indented JSON. go-github base64-encodes the
// Content field itself when building the content-API request body, so the
// bytes returned here are the raw (not pre-encoded) file content.
func marshalWrapper(w *record.Wrapper) ([]byte, error) {
	raw, err := marshalIndent(w)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal wrapper")
	}
	return raw, nil
}

var _ store.Store = (*GHStore)(nil)
