package plugins

import (
	"context"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/workaholic-kv/workaholic/internal/content"
	"github.com/workaholic-kv/workaholic/internal/pipeline"
)

var collectionExtensions = []string{".yml", ".yaml", ".json"}

// Collection expands collection files such as "bookmarks.yml", a map of
// slug to record, into one empty document per record keyed
// "bookmarks/<slug>.md" with the record as its metadata.
func Collection(names []string) pipeline.Plugin {
	return pipeline.Plugin{
		Namespace: "collections",
		Transformer: pipeline.TransformFunc(func(_ context.Context, entry content.Entry) ([]content.Entry, error) {
			name, ok := collectionName(entry.Key, names)
			if !ok || entry.IsBinary {
				return []content.Entry{entry}, nil
			}
			return expandCollection(entry, name)
		}),
	}
}

func collectionName(key string, names []string) (string, bool) {
	ext := path.Ext(key)
	if !slices.Contains(collectionExtensions, ext) {
		return "", false
	}
	name := strings.TrimSuffix(key, ext)
	return name, slices.Contains(names, name)
}

func expandCollection(entry content.Entry, name string) ([]content.Entry, error) {
	// JSON documents are valid YAML, so one decoder covers every extension.
	var records map[string]any
	if err := yaml.Unmarshal(entry.Value, &records); err != nil {
		return nil, &content.ValidationError{Key: entry.Key, Reason: "malformed collection: " + err.Error()}
	}

	slugs := make([]string, 0, len(records))
	for slug := range records {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)

	out := make([]content.Entry, 0, len(slugs))
	for _, slug := range slugs {
		record, ok := records[slug].(map[string]any)
		if !ok {
			return nil, &content.ValidationError{Key: entry.Key, Field: slug, Reason: "is not a record"}
		}
		out = append(out, content.Entry{
			Key:      name + "/" + slug + content.DocumentExtensions[0],
			Value:    []byte{},
			Metadata: content.Metadata(record),
		})
	}
	return out, nil
}
