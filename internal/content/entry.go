// Package content holds the entry model shared by the build pipeline, the
// query router and the content source.
package content

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Metadata is the open, schema-less attribute map carried by an entry.
type Metadata map[string]any

// Entry is a raw or derived content unit.
type Entry struct {
	Key      string
	Value    []byte
	Metadata Metadata
	IsBinary bool
}

// Reference is the projection of an entry stored inside derived indices.
type Reference struct {
	Slug     string   `json:"slug"`
	Metadata Metadata `json:"metadata"`
}

// Document is a text entry split into its body and its metadata.
type Document struct {
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// ReferenceTo projects an entry under the given slug. A nil metadata map is
// kept as nil so the serialized form is "null", matching entries that never
// had metadata.
func ReferenceTo(slug string, entry Entry) Reference {
	return Reference{Slug: slug, Metadata: entry.Metadata}
}

// Text returns the value interpreted as UTF-8.
func (e Entry) Text() string {
	return string(e.Value)
}

// WithMetadata returns a copy of the entry whose metadata is the union of the
// existing map and extra. Keys in extra win.
func (e Entry) WithMetadata(extra Metadata) Entry {
	merged := make(Metadata, len(e.Metadata)+len(extra))
	maps.Copy(merged, e.Metadata)
	maps.Copy(merged, extra)
	e.Metadata = merged
	return e
}

type entryJSON struct {
	Key      string   `json:"key"`
	Value    string   `json:"value"`
	Metadata Metadata `json:"metadata,omitempty"`
	IsBinary bool     `json:"isBinary,omitempty"`
}

// MarshalJSON encodes binary values as base64 and text values verbatim.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{Key: e.Key, Metadata: e.Metadata, IsBinary: e.IsBinary}
	if e.IsBinary {
		out.Value = base64.StdEncoding.EncodeToString(e.Value)
	} else {
		out.Value = string(e.Value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var in entryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Key = in.Key
	e.Metadata = in.Metadata
	e.IsBinary = in.IsBinary
	if in.IsBinary {
		decoded, err := base64.StdEncoding.DecodeString(in.Value)
		if err != nil {
			return fmt.Errorf("entry %q: invalid base64 value: %w", in.Key, err)
		}
		e.Value = decoded
		return nil
	}
	e.Value = []byte(in.Value)
	return nil
}

// String returns the string stored under field, if any.
func (m Metadata) String(field string) (string, bool) {
	value, ok := m[field]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Text renders field as text. YAML decodes unquoted dates and timestamps
// into time.Time; those come back as a plain date when they carry no time of
// day and as RFC 3339 otherwise, matching how they were written.
func (m Metadata) Text(field string) string {
	switch value := m[field].(type) {
	case nil:
		return ""
	case string:
		return value
	case time.Time:
		if value.Equal(value.Truncate(24*time.Hour)) && value.Location() == time.UTC {
			return value.Format(time.DateOnly)
		}
		return value.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(value)
	}
}

// Has reports whether field is present.
func (m Metadata) Has(field string) bool {
	_, ok := m[field]
	return ok
}

// Time interprets field as a point in time. Strings are parsed as RFC 3339
// or as a plain date; numbers are taken as Unix milliseconds.
func (m Metadata) Time(field string) (time.Time, bool) {
	switch value := m[field].(type) {
	case time.Time:
		return value, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed, true
			}
		}
	case int:
		return time.UnixMilli(int64(value)).UTC(), true
	case int64:
		return time.UnixMilli(value).UTC(), true
	case uint64:
		return time.UnixMilli(int64(value)).UTC(), true
	case float64:
		return time.UnixMilli(int64(value)).UTC(), true
	}
	return time.Time{}, false
}
