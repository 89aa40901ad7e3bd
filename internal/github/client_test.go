package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/workaholic-kv/workaholic/internal/source"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewTLSServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Owner:      "octo",
		Repo:       "site",
		Ref:        "main",
		Token:      "secret",
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{BaseURL: "http://api.example.com", Owner: "o", Repo: "r"}); err == nil {
		t.Fatalf("expected plain HTTP to be rejected")
	}
	if _, err := NewClient(Config{Owner: "o"}); err == nil {
		t.Fatalf("expected missing repo to be rejected")
	}
	client, err := NewClient(Config{Owner: "o", Repo: "r"})
	if err != nil || client.baseURL != DefaultBaseURL {
		t.Fatalf("expected default base URL, got %v, %v", client, err)
	}
}

func TestListDirectory(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/site/contents/content/articles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("expected ref query, got %q", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected authorization header %q", got)
		}
		fmt.Fprint(w, `[
			{"type": "file", "name": "hello.md", "path": "content/articles/hello.md"},
			{"type": "dir", "name": "drafts", "path": "content/articles/drafts"}
		]`)
	}))

	entries, err := client.ListDirectory(context.Background(), "content/articles")
	if err != nil {
		t.Fatalf("ListDirectory failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Name != "hello.md" || entries[0].Type != source.TypeFile {
		t.Fatalf("unexpected file entry %#v", entries[0])
	}
	if entries[1].Type != source.TypeDirectory {
		t.Fatalf("unexpected directory entry %#v", entries[1])
	}
}

func TestGetFileDecodesWrappedBase64(t *testing.T) {
	body := "---\ntitle: Hello\n---\nThis body is long enough to wrap across several base64 lines in the API response."
	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	wrapped := encoded[:60] + "\\n" + encoded[60:]

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"type": "file", "name": "hello.md", "encoding": "base64", "content": "%s"}`, wrapped)
	}))

	data, err := client.GetFile(context.Background(), "content/articles/hello.md")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(data) != body {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestShapeMismatches(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/octo/site/contents/dir":
			fmt.Fprint(w, `[]`)
		case "/repos/octo/site/contents/file.md":
			fmt.Fprint(w, `{"type": "file", "name": "file.md", "content": ""}`)
		case "/repos/octo/site/contents/link":
			fmt.Fprint(w, `{"type": "symlink", "name": "link"}`)
		}
	}))
	ctx := context.Background()

	if _, err := client.GetFile(ctx, "dir"); !errors.Is(err, ErrNotFile) {
		t.Fatalf("expected ErrNotFile for a directory, got %v", err)
	}
	if _, err := client.GetFile(ctx, "link"); !errors.Is(err, ErrNotFile) {
		t.Fatalf("expected ErrNotFile for a symlink, got %v", err)
	}
	if _, err := client.ListDirectory(ctx, "file.md"); !errors.Is(err, ErrNotDirectory) {
		t.Fatalf("expected ErrNotDirectory for a file, got %v", err)
	}
}

func TestAPIErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/octo/site/contents/missing.md" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found", "documentation_url": "https://docs.github.com"}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	ctx := context.Background()

	_, err := client.GetFile(ctx, "missing.md")
	if !errors.Is(err, ErrNotFound) || !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.Message != "Not Found" {
		t.Fatalf("expected API error message, got %#v", err)
	}

	_, err = client.ListDirectory(ctx, "broken")
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 API error, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("a 500 must not match ErrNotFound")
	}
}

func TestConditionalRequestsReuseCachedBody(t *testing.T) {
	var requests atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		fmt.Fprint(w, `[{"type": "file", "name": "a.md", "path": "a.md"}]`)
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		entries, err := client.ListDirectory(ctx, "")
		if err != nil || len(entries) != 1 {
			t.Fatalf("request %d: unexpected result %v, %v", i, entries, err)
		}
	}
	if got := requests.Load(); got != 2 {
		t.Fatalf("expected two round trips, got %d", got)
	}
}
