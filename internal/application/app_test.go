package application

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"github.com/workaholic-kv/workaholic/internal/config"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/source"
)

type emptyOrigin struct{}

func (emptyOrigin) ListDirectory(context.Context, string) ([]source.DirEntry, error) {
	return nil, nil
}

func (emptyOrigin) GetFile(context.Context, string) ([]byte, error) {
	return nil, source.ErrNotFound
}

func newApp(t *testing.T, cfg config.Config, opts Options) *App {
	t.Helper()
	opts.DBPath = database.MemoryPath
	app, err := New(context.Background(), cfg, zerolog.Nop(), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := app.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	})
	return app
}

func TestPluginOrder(t *testing.T) {
	app := newApp(t, config.Default(), Options{Origin: emptyOrigin{}})

	var namespaces []string
	for _, plugin := range app.Plugins() {
		namespaces = append(namespaces, plugin.Namespace)
	}
	want := []string{"collections", "frontmatter", "preview", "images", "list", "tags", "data"}
	if !slices.Equal(namespaces, want) {
		t.Fatalf("plugin order = %q, want %q", namespaces, want)
	}

	if _, err := app.Pipeline(); err != nil {
		t.Fatalf("Pipeline failed: %v", err)
	}
	if _, err := app.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
}

func TestPreviewsCanBeDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Build.Previews = false
	app := newApp(t, cfg, Options{Origin: emptyOrigin{}})

	for _, plugin := range app.Plugins() {
		if plugin.Namespace == "preview" {
			t.Fatalf("preview plugin should be disabled")
		}
	}
}

func TestRouterIncludesBlogWithOrigin(t *testing.T) {
	app := newApp(t, config.Default(), Options{Origin: emptyOrigin{}})

	want := []string{"blog", "data", "images", "list", "tags"}
	if got := app.Router.Namespaces(); !slices.Equal(got, want) {
		t.Fatalf("namespaces = %q, want %q", got, want)
	}
	if _, err := app.PostSource(); err != nil {
		t.Fatalf("PostSource failed: %v", err)
	}
}

func TestNoOriginWithoutRepository(t *testing.T) {
	cfg := config.Default()
	cfg.Origin.Owner = ""
	cfg.Origin.Repo = ""
	app := newApp(t, cfg, Options{})

	if _, err := app.PostSource(); !errors.Is(err, ErrNoOrigin) {
		t.Fatalf("expected ErrNoOrigin, got %v", err)
	}
	if slices.Contains(app.Router.Namespaces(), source.NamespaceBlog) {
		t.Fatalf("blog namespace registered without origin")
	}
}
