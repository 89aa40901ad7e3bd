package plugins

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/query"
)

// NamespaceTags is the namespace holding the tag dictionary.
const NamespaceTags = "tags"

// Tags builds a single dictionary row, keyed "", from normalised tag to
// the references carrying it. field defaults to "tags".
func Tags(field string) pipeline.Plugin {
	if field == "" {
		field = "tags"
	}
	return pipeline.Plugin{
		Namespace: NamespaceTags,
		Indexer: pipeline.IndexFunc(func(_ context.Context, entries []content.Entry) ([]content.Entry, error) {
			dictionary := map[string][]content.Reference{}
			for _, entry := range entries {
				tags := content.Tags(entry.Metadata, field)
				if len(tags) == 0 {
					continue
				}
				reference := content.ReferenceTo(content.Slug(entry.Key), entry)
				seen := map[string]bool{}
				for _, tag := range tags {
					normalized := content.NormalizeTag(tag)
					if seen[normalized] {
						continue
					}
					seen[normalized] = true
					dictionary[normalized] = append(dictionary[normalized], reference)
				}
			}

			for _, references := range dictionary {
				slices.SortStableFunc(references, func(a, b content.Reference) int {
					return cmp.Compare(a.Slug, b.Slug)
				})
			}

			value, err := json.Marshal(dictionary)
			if err != nil {
				return nil, err
			}
			return []content.Entry{{Key: "", Value: value}}, nil
		}),
	}
}

// TagsHandler returns the references for a tag, normalising key the same
// way the index does. An empty key returns the whole dictionary.
func TagsHandler(store kv.Reader) query.Handler {
	return func(ctx context.Context, key string, _ query.Options) (any, error) {
		var dictionary map[string][]content.Reference
		found, err := getJSON(ctx, store, NamespaceTags, "", &dictionary)
		if err != nil || !found {
			return nil, err
		}
		if key == "" {
			return dictionary, nil
		}
		references, ok := dictionary[content.NormalizeTag(key)]
		if !ok {
			return nil, nil
		}
		return references, nil
	}
}
