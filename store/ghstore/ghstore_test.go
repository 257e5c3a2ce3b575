package ghstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v68/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitgov-dev/gitgov-core/record"
)

const baseURLPath = "/api-v3"

// setup mirrors the teacher's server/ghclient test harness: a mux serving
// under baseURLPath, wired to a *github.Client whose BaseURL points at it.
func setup(t *testing.T) (*GHStore, *http.ServeMux) {
	t.Helper()

	mux := http.NewServeMux()
	apiHandler := http.NewServeMux()
	apiHandler.Handle(baseURLPath+"/", http.StripPrefix(baseURLPath, mux))

	server := httptest.NewServer(apiHandler)
	t.Cleanup(server.Close)

	ghClient := github.NewClient(nil)
	u, _ := url.Parse(server.URL + baseURLPath + "/")
	ghClient.BaseURL = u

	s := New(ghClient, "owner", "repo", "gitgov-state", ".gitgov/tasks", nil, CommitAuthor{Name: "gitgov-bot", Email: "bot@gitgov.dev"})
	return s, mux
}

func sampleWrapper(t *testing.T) *record.Wrapper {
	t.Helper()
	task := record.TaskRecord{
		ID: "1700000000-task-demo", Title: "Demo", Status: "draft", Priority: "medium",
		Description: "d", Tags: []string{}, References: []string{}, CycleIDs: []string{},
	}
	w, err := record.New(record.TypeTask, task)
	require.NoError(t, err)
	return w
}

func TestPutCreatesWhenFileDoesNotExist(t *testing.T) {
	s, mux := setup(t)

	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-demo.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"message":"Not Found"}`)
		case http.MethodPut:
			var body github.RepositoryContentFileOptions
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Nil(t, body.SHA)
			_, _ = fmt.Fprint(w, `{"content":{"sha":"abc123"},"commit":{"sha":"commitsha1"}}`)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	res, err := s.Put(context.Background(), "1700000000-task-demo", sampleWrapper(t))
	require.NoError(t, err)
	assert.Equal(t, "commitsha1", res.Ref)
}

func TestPutUpdatesWithExistingSHA(t *testing.T) {
	s, mux := setup(t)

	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-demo.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = fmt.Fprint(w, `{"sha":"oldsha","content":"","encoding":"base64"}`)
		case http.MethodPut:
			var body github.RepositoryContentFileOptions
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.NotNil(t, body.SHA)
			assert.Equal(t, "oldsha", *body.SHA)
			_, _ = fmt.Fprint(w, `{"content":{"sha":"newsha"},"commit":{"sha":"commitsha2"}}`)
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	})

	res, err := s.Put(context.Background(), "1700000000-task-demo", sampleWrapper(t))
	require.NoError(t, err)
	assert.Equal(t, "commitsha2", res.Ref)
}

func TestPutConflictMapsTo409(t *testing.T) {
	s, mux := setup(t)

	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-demo.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprint(w, `{"message":"Not Found"}`)
		case http.MethodPut:
			w.WriteHeader(http.StatusConflict)
			_, _ = fmt.Fprint(w, `{"message":"conflict"}`)
		}
	})

	_, err := s.Put(context.Background(), "1700000000-task-demo", sampleWrapper(t))
	require.Error(t, err)
	assert.True(t, record.IsKind(err, record.ErrConcurrentUpdate))
}

func TestGetDecodesWrapperFromContent(t *testing.T) {
	s, mux := setup(t)
	w := sampleWrapper(t)
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-demo.json", func(resp http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(resp, `{"sha":"abc","encoding":"base64","content":%q}`, encoded)
	})

	got, err := s.Get(context.Background(), "1700000000-task-demo")
	require.NoError(t, err)
	assert.Equal(t, w.Header.PayloadChecksum, got.Header.PayloadChecksum)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s, mux := setup(t)
	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-missing.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	_, err := s.Get(context.Background(), "1700000000-task-missing")
	require.Error(t, err)
	assert.True(t, record.IsKind(err, record.ErrRecordNotFound))
}

func TestListFiltersToJSONFiles(t *testing.T) {
	s, mux := setup(t)
	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[
			{"type":"file","name":"1700000000-task-demo.json"},
			{"type":"file","name":"README.md"},
			{"type":"dir","name":"nested"}
		]`)
	})

	ids, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1700000000-task-demo"}, ids)
}

func TestDeleteUsesFetchedSHA(t *testing.T) {
	s, mux := setup(t)
	mux.HandleFunc("/repos/owner/repo/contents/.gitgov/tasks/1700000000-task-demo.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = fmt.Fprint(w, `{"sha":"delsha"}`)
		case http.MethodDelete:
			var body github.RepositoryContentFileOptions
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.NotNil(t, body.SHA)
			assert.Equal(t, "delsha", *body.SHA)
			_, _ = fmt.Fprint(w, `{"commit":{"sha":"delcommit"}}`)
		}
	})

	require.NoError(t, s.Delete(context.Background(), "1700000000-task-demo"))
}
