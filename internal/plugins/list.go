package plugins

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/query"
)

// NamespaceList is the namespace holding hierarchical listings.
const NamespaceList = "list"

// Comparator orders references within a listing bucket.
type Comparator func(a, b content.Reference) int

// ByDateDesc orders newest first on the given metadata field. References
// without a readable date sort after dated ones.
func ByDateDesc(field string) Comparator {
	return func(a, b content.Reference) int {
		at, aok := a.Metadata.Time(field)
		bt, bok := b.Metadata.Time(field)
		switch {
		case aok && bok:
			return bt.Compare(at)
		case aok:
			return -1
		case bok:
			return 1
		}
		return 0
	}
}

// ExplicitOrder places the listed slugs first, in the given order, and
// orders everything else with fallback.
func ExplicitOrder(order []string, fallback Comparator) Comparator {
	rank := make(map[string]int, len(order))
	for i, slug := range order {
		if _, dup := rank[slug]; !dup {
			rank[slug] = i
		}
	}
	return func(a, b content.Reference) int {
		ar, aok := rank[a.Slug]
		br, bok := rank[b.Slug]
		switch {
		case aok && bok:
			return cmp.Compare(ar, br)
		case aok:
			return -1
		case bok:
			return 1
		}
		if fallback == nil {
			return 0
		}
		return fallback(a, b)
	}
}

// List indexes every document under each of its ancestors. Bucket ""
// lists everything. compare orders each bucket, ties broken by slug; nil
// orders by "date", newest first.
func List(compare Comparator) pipeline.Plugin {
	if compare == nil {
		compare = ByDateDesc("date")
	}
	return pipeline.Plugin{
		Namespace: NamespaceList,
		Indexer: pipeline.IndexFunc(func(_ context.Context, entries []content.Entry) ([]content.Entry, error) {
			return buildList(entries, compare)
		}),
	}
}

func buildList(entries []content.Entry, compare Comparator) ([]content.Entry, error) {
	buckets := map[string][]content.Reference{}
	for _, entry := range entries {
		if !content.IsDocument(entry.Key) {
			continue
		}
		slug := content.Slug(entry.Key)
		reference := content.ReferenceTo(slug, entry)
		for _, ancestor := range content.Ancestors(slug) {
			buckets[ancestor] = append(buckets[ancestor], reference)
		}
	}

	rows := make([]content.Entry, 0, len(buckets))
	for key, references := range buckets {
		slices.SortStableFunc(references, func(a, b content.Reference) int {
			if c := compare(a, b); c != 0 {
				return c
			}
			return cmp.Compare(a.Slug, b.Slug)
		})
		value, err := json.Marshal(references)
		if err != nil {
			return nil, fmt.Errorf("list bucket %q: %w", key, err)
		}
		rows = append(rows, content.Entry{Key: key, Value: value})
	}
	return rows, nil
}

// ListHandler returns the references listed under key.
func ListHandler(store kv.Reader) query.Handler {
	return func(ctx context.Context, key string, _ query.Options) (any, error) {
		var references []content.Reference
		found, err := getJSON(ctx, store, NamespaceList, key, &references)
		if err != nil || !found {
			return nil, err
		}
		return references, nil
	}
}

// getJSON decodes the value at namespace/key into out. A missing key
// reports found=false with no error.
func getJSON(ctx context.Context, store kv.Reader, namespace, key string, out any) (bool, error) {
	data, err := store.Get(ctx, namespace, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}
