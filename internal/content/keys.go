package content

import (
	"path"
	"slices"
	"strings"
	"unicode"
)

// DocumentExtensions lists the suffixes that mark an entry as a document.
var DocumentExtensions = []string{".md"}

// ImageExtensions lists the suffixes recognised as downloadable images.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

// Ancestors returns every strict ancestor of key, nearest first, ending with
// the empty string. The empty key has no ancestors.
func Ancestors(key string) []string {
	var result []string
	for key != "" {
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			key = key[:idx]
		} else {
			key = ""
		}
		result = append(result, key)
	}
	return result
}

// IsDocument reports whether key carries a document extension.
func IsDocument(key string) bool {
	return slices.Contains(DocumentExtensions, path.Ext(key))
}

// IsImage reports whether key carries an image extension.
func IsImage(key string) bool {
	return slices.Contains(ImageExtensions, strings.ToLower(path.Ext(key)))
}

// Slug strips a trailing document extension from key.
func Slug(key string) string {
	for _, ext := range DocumentExtensions {
		if trimmed, ok := strings.CutSuffix(key, ext); ok {
			return trimmed
		}
	}
	return key
}

// TrimExtension removes the final extension of the last path segment.
func TrimExtension(key string) string {
	return strings.TrimSuffix(key, path.Ext(key))
}

// NormalizeTag lower-cases tag and replaces each whitespace rune with a
// hyphen. The index stage and the tag query both go through it.
func NormalizeTag(tag string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, strings.ToLower(tag))
}

// Tags reads a tag field that may hold a single string or a list.
func Tags(meta Metadata, field string) []string {
	switch value := meta[field].(type) {
	case string:
		return []string{value}
	case []string:
		return value
	case []any:
		tags := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	}
	return nil
}
