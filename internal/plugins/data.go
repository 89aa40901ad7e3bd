package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
	"github.com/workaholic-kv/workaholic/internal/query"
)

// NamespaceData is the namespace holding raw document lookups.
const NamespaceData = "data"

// Data stores every document under its slug as {content, metadata}.
func Data() pipeline.Plugin {
	return pipeline.Plugin{
		Namespace: NamespaceData,
		Indexer: pipeline.IndexFunc(func(_ context.Context, entries []content.Entry) ([]content.Entry, error) {
			var rows []content.Entry
			for _, entry := range entries {
				if entry.IsBinary || !content.IsDocument(entry.Key) {
					continue
				}
				slug := content.Slug(entry.Key)
				value, err := json.Marshal(content.Document{Content: entry.Text(), Metadata: entry.Metadata})
				if err != nil {
					return nil, fmt.Errorf("data %q: %w", slug, err)
				}
				rows = append(rows, content.Entry{Key: slug, Value: value, Metadata: entry.Metadata})
			}
			return rows, nil
		}),
	}
}

// DataHandler returns the document stored under key.
func DataHandler(store kv.Reader) query.Handler {
	return func(ctx context.Context, key string, _ query.Options) (any, error) {
		var document content.Document
		found, err := getJSON(ctx, store, NamespaceData, content.Slug(key), &document)
		if err != nil || !found {
			return nil, err
		}
		return &document, nil
	}
}

// Registrations returns the query registrations for every namespace this
// package indexes.
func Registrations() []query.Registration {
	return []query.Registration{
		{Namespace: NamespaceData, Factory: DataHandler},
		{Namespace: NamespaceImages, Factory: ImagesHandler},
		{Namespace: NamespaceList, Factory: ListHandler},
		{Namespace: NamespaceTags, Factory: TagsHandler},
	}
}
