// Package filesystem loads raw content entries from a directory tree or a
// JSON bundle on disk.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/jsonc"

	"github.com/workaholic-kv/workaholic/internal/content"
)

// Load reads entries from path: a directory is walked, a file is decoded
// as a bundle.
func Load(ctx context.Context, path string) ([]content.Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return LoadDirectory(ctx, path)
	}
	return LoadBundle(path)
}

// LoadDirectory returns one entry per regular file under root, keyed by its
// slash-separated path relative to root. Hidden files and directories are
// skipped. Images and files that are not valid UTF-8 are marked binary.
func LoadDirectory(ctx context.Context, root string) ([]content.Entry, error) {
	var entries []content.Entry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		//nolint:gosec // G304: path comes from walking the user-supplied root
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		entries = append(entries, content.Entry{
			Key:      key,
			Value:    data,
			IsBinary: content.IsImage(key) || !utf8.Valid(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", root, err)
	}

	slices.SortFunc(entries, func(a, b content.Entry) int {
		return strings.Compare(a.Key, b.Key)
	})
	return entries, nil
}

// LoadBundle decodes a JSON array of entries. Comments and trailing commas
// are accepted.
func LoadBundle(path string) ([]content.Entry, error) {
	//nolint:gosec // G304: bundle path is supplied by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []content.Entry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse bundle %s: %w", path, err)
	}
	for i, entry := range entries {
		if entry.Key == "" {
			return nil, fmt.Errorf("failed to parse bundle %s: entry %d has no key", path, i)
		}
	}
	return entries, nil
}
