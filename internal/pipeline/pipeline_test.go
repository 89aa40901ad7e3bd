package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/plugins"
	"github.com/workaholic-kv/workaholic/internal/query"
	"github.com/workaholic-kv/workaholic/internal/services"
)

func setupStore(t *testing.T) *services.KVService {
	t.Helper()
	dbCtx, err := database.CreateDatabase(database.MemoryPath)
	if err != nil {
		t.Fatalf("CreateDatabase error: %v", err)
	}
	t.Cleanup(func() {
		if err := database.CloseDatabase(dbCtx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})
	return services.NewKVService(dbCtx, nil)
}

func defaultPlugins() []pipeline.Plugin {
	return []pipeline.Plugin{
		plugins.Collection([]string{"bookmarks"}),
		plugins.Frontmatter(plugins.FrontmatterOptions{}),
		plugins.List(nil),
		plugins.Tags(""),
		plugins.Data(),
	}
}

func newPipeline(t *testing.T, registrations []pipeline.Plugin, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	p, err := pipeline.New(registrations, opts...)
	if err != nil {
		t.Fatalf("pipeline.New error: %v", err)
	}
	return p
}

func rawEntries() []content.Entry {
	return []content.Entry{
		{Key: "articles/hello.md", Value: []byte("---\ntitle: Hello\ntags: [Web, CSS]\n---\nBody")},
		{Key: "articles/second.md", Value: []byte("---\ntitle: Second\ndate: 2022-01-01\ntags: [web]\n---\nMore")},
		{Key: "bookmarks.yml", Value: []byte("clean-code:\n  title: Goodbye Clean Code\n  tags: [Code]\n")},
	}
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	p := newPipeline(t, defaultPlugins())

	raw := []content.Entry{{Key: "articles/hello.md", Value: []byte("---\ntitle: Hello\ntags: [Web, CSS]\n---\nBody")}}
	if _, err := p.Build(ctx, store, raw); err != nil {
		t.Fatalf("Build error: %v", err)
	}

	router := query.New(store, plugins.Registrations()...)

	result, err := router.Query(ctx, "data", "articles/hello", query.Options{})
	if err != nil {
		t.Fatalf("data query error: %v", err)
	}
	document := result.(*content.Document)
	if document.Content != "Body" || document.Metadata["title"] != "Hello" {
		t.Fatalf("unexpected document %#v", document)
	}

	result, err = router.Query(ctx, "list", "articles", query.Options{})
	if err != nil {
		t.Fatalf("list query error: %v", err)
	}
	references := result.([]content.Reference)
	if len(references) != 1 || references[0].Slug != "articles/hello" || references[0].Metadata["title"] != "Hello" {
		t.Fatalf("unexpected list %#v", references)
	}

	result, err = router.Query(ctx, "tags", "", query.Options{})
	if err != nil {
		t.Fatalf("tags query error: %v", err)
	}
	dictionary := result.(map[string][]content.Reference)
	for _, tag := range []string{"web", "css"} {
		if len(dictionary[tag]) != 1 || dictionary[tag][0].Slug != "articles/hello" {
			t.Fatalf("tag %q: unexpected references %#v", tag, dictionary[tag])
		}
	}

	if _, err := router.Query(ctx, "nonexistent", "x", query.Options{}); !errors.Is(err, query.ErrUnknownNamespace) {
		t.Fatalf("expected ErrUnknownNamespace, got %v", err)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, defaultPlugins())

	first, err := p.Run(ctx, rawEntries())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	reversed := rawEntries()
	slices.Reverse(reversed)
	second, err := p.Run(ctx, reversed)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(first.Tables) != 3 || len(second.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d and %d", len(first.Tables), len(second.Tables))
	}
	for i := range first.Tables {
		a, b := first.Tables[i], second.Tables[i]
		if a.Namespace != b.Namespace || a.Digest != b.Digest {
			t.Fatalf("table %s differs between runs", a.Namespace)
		}
		for j := range a.Rows {
			if a.Rows[j].Key != b.Rows[j].Key || !bytes.Equal(a.Rows[j].Value, b.Rows[j].Value) {
				t.Fatalf("row %s/%s differs between runs", a.Namespace, a.Rows[j].Key)
			}
		}
	}
}

func TestListPrefixInvariant(t *testing.T) {
	ctx := context.Background()
	p := newPipeline(t, []pipeline.Plugin{plugins.List(nil)})

	result, err := p.Run(ctx, []content.Entry{
		{Key: "articles/a.md"},
		{Key: "articles/b.md"},
		{Key: "bookmarks/c.md"},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	buckets := map[string][]string{}
	for _, row := range result.Map()["list"] {
		var references []content.Reference
		if err := json.Unmarshal(row.Value, &references); err != nil {
			t.Fatalf("decode %q: %v", row.Key, err)
		}
		for _, reference := range references {
			buckets[row.Key] = append(buckets[row.Key], reference.Slug)
		}
	}
	if !slices.Equal(buckets[""], []string{"articles/a", "articles/b", "bookmarks/c"}) {
		t.Fatalf("unexpected root bucket %q", buckets[""])
	}
	if !slices.Equal(buckets["articles"], []string{"articles/a", "articles/b"}) {
		t.Fatalf("unexpected articles bucket %q", buckets["articles"])
	}
	if !slices.Equal(buckets["bookmarks"], []string{"bookmarks/c"}) {
		t.Fatalf("unexpected bookmarks bucket %q", buckets["bookmarks"])
	}
}

func TestIndexFailureKeepsPreviousNamespace(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	m := metrics.New(nil)

	if err := store.Put(ctx, "tags", "", []byte(`{"old":[]}`), kv.PutOptions{}); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	boom := errors.New("boom")
	failing := pipeline.Plugin{
		Namespace: "tags",
		Indexer: pipeline.IndexFunc(func(context.Context, []content.Entry) ([]content.Entry, error) {
			return nil, boom
		}),
	}
	p := newPipeline(t, []pipeline.Plugin{
		plugins.Frontmatter(plugins.FrontmatterOptions{}),
		plugins.List(nil),
		failing,
		plugins.Data(),
	}, pipeline.WithMetrics(m))

	result, err := p.Build(ctx, store, rawEntries())
	var buildErr *pipeline.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %v", err)
	}
	if !errors.Is(err, boom) || !slices.Equal(buildErr.Namespaces(), []string{"tags"}) {
		t.Fatalf("unexpected build error %v", err)
	}
	if len(result.Tables) != 2 {
		t.Fatalf("expected list and data tables, got %d", len(result.Tables))
	}

	old, err := store.Get(ctx, "tags", "")
	if err != nil || string(old) != `{"old":[]}` {
		t.Fatalf("expected previous tags to survive, got %q, %v", old, err)
	}
	if _, err := store.Get(ctx, "data", "articles/hello"); err != nil {
		t.Fatalf("expected data namespace to be written, got %v", err)
	}
	if got := testutil.ToFloat64(m.BuildStageFailuresTotal.WithLabelValues("tags")); got != 1 {
		t.Fatalf("expected one stage failure, got %v", got)
	}
}

func TestIndexPanicIsIsolated(t *testing.T) {
	p := newPipeline(t, []pipeline.Plugin{
		{Namespace: "bad", Indexer: pipeline.IndexFunc(func(context.Context, []content.Entry) ([]content.Entry, error) {
			panic("index exploded")
		})},
		plugins.Data(),
	})

	result, err := p.Run(context.Background(), []content.Entry{{Key: "a.md", Value: []byte("x")}})
	if err == nil || len(result.Tables) != 1 || result.Tables[0].Namespace != "data" {
		t.Fatalf("expected data to survive a panicking indexer, got %#v, %v", result, err)
	}
}

func TestDuplicateKeysFailNamespace(t *testing.T) {
	p := newPipeline(t, []pipeline.Plugin{
		{Namespace: "dup", Indexer: pipeline.IndexFunc(func(context.Context, []content.Entry) ([]content.Entry, error) {
			return []content.Entry{{Key: "a"}, {Key: "a"}}, nil
		})},
	})
	_, err := p.Run(context.Background(), nil)
	if !errors.Is(err, pipeline.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestInvalidEntryIsDropped(t *testing.T) {
	m := metrics.New(nil)
	p := newPipeline(t, []pipeline.Plugin{
		plugins.Frontmatter(plugins.FrontmatterOptions{Required: []string{"title"}}),
		plugins.Data(),
	}, pipeline.WithMetrics(m))

	result, err := p.Run(context.Background(), []content.Entry{
		{Key: "articles/ok.md", Value: []byte("---\ntitle: OK\n---\nfine")},
		{Key: "articles/bad.md", Value: []byte("---\ndate: 2021-01-01\n---\nno title")},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(result.Dropped) != 1 || result.Dropped[0].Key != "articles/bad.md" || !errors.Is(result.Dropped[0], content.ErrValidation) {
		t.Fatalf("unexpected dropped entries %#v", result.Dropped)
	}
	rows := result.Map()["data"]
	if len(rows) != 1 || rows[0].Key != "articles/ok" {
		t.Fatalf("unexpected data rows %#v", rows)
	}
	if got := testutil.ToFloat64(m.TransformFailuresTotal.WithLabelValues("frontmatter")); got != 1 {
		t.Fatalf("expected one transform failure, got %v", got)
	}
}

func TestTransformStagesChain(t *testing.T) {
	var order []string
	stage := func(name string) pipeline.Plugin {
		return pipeline.Plugin{Namespace: name, Transformer: pipeline.TransformFunc(func(_ context.Context, entry content.Entry) ([]content.Entry, error) {
			entry.Key += "/" + name
			return []content.Entry{entry, {Key: entry.Key + "+"}}, nil
		})}
	}
	p := newPipeline(t, []pipeline.Plugin{stage("one"), stage("two")})

	result, err := p.Run(context.Background(), []content.Entry{{Key: "x"}})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	for _, item := range result.Items {
		order = append(order, item.Key)
	}
	want := []string{"x/one/two", "x/one/two+", "x/one+/two", "x/one+/two+"}
	if !slices.Equal(order, want) {
		t.Fatalf("unexpected items %q, want %q", order, want)
	}
}

func TestNewValidatesPlugins(t *testing.T) {
	cases := [][]pipeline.Plugin{
		{{Indexer: plugins.Data().Indexer}},
		{{Namespace: "empty"}},
		{plugins.Data(), plugins.Data()},
	}
	for i, registrations := range cases {
		if _, err := pipeline.New(registrations); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(t, []pipeline.Plugin{{
		Namespace: "slow",
		Transformer: pipeline.TransformFunc(func(ctx context.Context, entry content.Entry) ([]content.Entry, error) {
			return nil, ctx.Err()
		}),
	}})
	if _, err := p.Run(ctx, []content.Entry{{Key: "a"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
