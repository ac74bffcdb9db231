package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v59/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/prtwin/internal/changeset"
	"github.com/tildaslashalef/prtwin/internal/config"
	"github.com/tildaslashalef/prtwin/internal/loggy"
)

func TestParsePRURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PRRef
		ok    bool
	}{
		{
			name:  "full https URL",
			input: "https://github.com/acme/widgets/pull/42",
			want:  PRRef{Owner: "acme", Repo: "widgets", Number: 42},
			ok:    true,
		},
		{
			name:  "full URL with trailing path",
			input: "https://github.com/acme/widgets/pull/42/files",
			want:  PRRef{Owner: "acme", Repo: "widgets", Number: 42},
			ok:    true,
		},
		{
			name:  "host form without scheme",
			input: "github.com/acme/widgets/pull/42",
			want:  PRRef{Owner: "acme", Repo: "widgets", Number: 42},
			ok:    true,
		},
		{
			name:  "short owner/repo form",
			input: "acme/widgets/pull/42",
			want:  PRRef{Owner: "acme", Repo: "widgets", Number: 42},
			ok:    true,
		},
		{
			name:  "enterprise host",
			input: "https://github.example.com/acme/widgets/pull/7",
			want:  PRRef{Owner: "acme", Repo: "widgets", Number: 7},
			ok:    true,
		},
		{name: "issue URL", input: "https://github.com/acme/widgets/issues/42", ok: false},
		{name: "missing number", input: "https://github.com/acme/widgets/pull/", ok: false},
		{name: "garbage", input: "not a reference", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePRURL(tt.input)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrInvalidPRURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := gh.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = baseURL

	return NewServiceWithClient(client, config.New(), loggy.NewNoopLogger())
}

func TestFetchChangeSet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"number": 42,
			"title": "Raise flush threshold",
			"body": "Bumps the threshold for batch flushes.",
			"user": {"login": "octocat"},
			"base": {"ref": "main"},
			"head": {"ref": "raise-threshold"}
		}`)
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/42/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{
				"filename": "config.go",
				"status": "modified",
				"additions": 1,
				"deletions": 1,
				"patch": "@@ -3,1 +3,1 @@\n-const threshold = 5\n+const threshold = 10"
			},
			{
				"filename": "logo.png",
				"status": "added",
				"additions": 0,
				"deletions": 0
			}
		]`)
	})

	svc := newTestService(t, mux)

	cs, err := svc.FetchChangeSet(context.Background(), "https://github.com/acme/widgets/pull/42")
	require.NoError(t, err)

	assert.Equal(t, "Raise flush threshold", cs.Title)
	assert.Equal(t, "octocat", cs.Author)
	assert.Equal(t, "main", cs.BaseBranch)
	assert.Equal(t, "raise-threshold", cs.HeadBranch)
	require.Len(t, cs.Edits, 2)

	first := cs.Edits[0]
	assert.Equal(t, "config.go", first.Path)
	assert.Equal(t, changeset.KindModified, first.Kind)
	require.Len(t, first.Hunks, 1)
	assert.Equal(t, "const threshold = 5\n", first.Hunks[0].OldText)
	assert.Equal(t, "const threshold = 10\n", first.Hunks[0].NewText)

	// Binary file without a patch still appears
	second := cs.Edits[1]
	assert.Equal(t, changeset.KindAdded, second.Kind)
	assert.Empty(t, second.Hunks)
}

func TestFetchChangeSetNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/999", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	})

	svc := newTestService(t, mux)

	_, err := svc.FetchChangeSet(context.Background(), "acme/widgets/pull/999")
	assert.ErrorIs(t, err, ErrPRNotFound)
}

func TestFetchChangeSetAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	})

	svc := newTestService(t, mux)

	_, err := svc.FetchChangeSet(context.Background(), "acme/widgets/pull/42")
	assert.ErrorIs(t, err, ErrAuth)
}

func TestFetchChangeSetInvalidURL(t *testing.T) {
	svc := newTestService(t, http.NewServeMux())

	_, err := svc.FetchChangeSet(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidPRURL)
}

func TestCreatePR(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"number": 43, "html_url": "https://github.com/acme/widgets/pull/43"}`)
	})

	svc := newTestService(t, mux)

	handle, err := svc.CreatePR(context.Background(), "acme", "widgets", CreatePRParams{
		Title: "Raise flush threshold to 50",
		Body:  "Twin of #42.",
		Head:  "prtwin-bold-fox",
		Base:  "main",
	})
	require.NoError(t, err)

	assert.Equal(t, 43, handle.Number)
	assert.Equal(t, "https://github.com/acme/widgets/pull/43", handle.URL)
}
