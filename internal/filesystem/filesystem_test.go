package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestLoadDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "articles", "hello.md"), []byte("---\ntitle: Hello\n---\nbody"))
	writeFile(t, filepath.Join(root, "bookmarks.yml"), []byte("a:\n  url: https://example.com\n"))
	writeFile(t, filepath.Join(root, "articles", "cover.png"), []byte{0x89, 'P', 'N', 'G'})
	writeFile(t, filepath.Join(root, "blob.bin"), []byte{0xff, 0xfe, 0x00})
	writeFile(t, filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"))
	writeFile(t, filepath.Join(root, ".DS_Store"), []byte("junk"))

	entries, err := LoadDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("LoadDirectory failed: %v", err)
	}

	want := []struct {
		key    string
		binary bool
	}{
		{"articles/cover.png", true},
		{"articles/hello.md", false},
		{"blob.bin", true},
		{"bookmarks.yml", false},
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d: %#v", len(want), len(entries), entries)
	}
	for i, w := range want {
		if entries[i].Key != w.key || entries[i].IsBinary != w.binary {
			t.Fatalf("entry %d: got key %q binary %v, want %q %v", i, entries[i].Key, entries[i].IsBinary, w.key, w.binary)
		}
	}
	if entries[1].Text() != "---\ntitle: Hello\n---\nbody" {
		t.Fatalf("unexpected document body %q", entries[1].Text())
	}
}

func TestLoadDirectoryHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadDirectory(ctx, root); err == nil {
		t.Fatalf("expected cancelled walk to fail")
	}
}

func TestLoadBundleAcceptsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.jsonc")
	writeFile(t, path, []byte(`[
		// articles
		{"key": "articles/hello.md", "value": "body", "metadata": {"title": "Hello"}},
		{"key": "img.png", "value": "AAEC", "isBinary": true}, /* trailing comma */
	]`))

	entries, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Metadata["title"] != "Hello" || entries[0].Text() != "body" {
		t.Fatalf("unexpected document %#v", entries[0])
	}
	if !entries[1].IsBinary || len(entries[1].Value) != 3 || entries[1].Value[2] != 2 {
		t.Fatalf("unexpected binary entry %#v", entries[1])
	}
}

func TestLoadBundleRejectsMissingKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.json")
	writeFile(t, path, []byte(`[{"value": "orphan"}]`))

	if _, err := LoadBundle(path); err == nil {
		t.Fatalf("expected an entry without key to be rejected")
	}
}

func TestLoadMissingPath(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
