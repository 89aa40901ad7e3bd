package content

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"
)

func TestAncestors(t *testing.T) {
	cases := map[string][]string{
		"articles/a":     {"articles", ""},
		"a":              {""},
		"x/y/z":          {"x/y", "x", ""},
		"":               nil,
		"bookmarks/c.md": {"bookmarks", ""},
	}
	for key, want := range cases {
		if got := Ancestors(key); !slices.Equal(got, want) {
			t.Fatalf("Ancestors(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"Web Dev":   "web-dev",
		"CSS":       "css",
		"a  b":      "a--b",
		"Tab\there": "tab-here",
	}
	for in, want := range cases {
		if got := NormalizeTag(in); got != want {
			t.Fatalf("NormalizeTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTags(t *testing.T) {
	meta := Metadata{"tags": []any{"Web", 3, "CSS"}, "single": "Go"}
	if got := Tags(meta, "tags"); !slices.Equal(got, []string{"Web", "CSS"}) {
		t.Fatalf("unexpected list tags: %q", got)
	}
	if got := Tags(meta, "single"); !slices.Equal(got, []string{"Go"}) {
		t.Fatalf("unexpected single tag: %q", got)
	}
	if got := Tags(meta, "missing"); got != nil {
		t.Fatalf("expected nil tags, got %q", got)
	}
}

func TestSlugAndDocument(t *testing.T) {
	if !IsDocument("articles/hello.md") || IsDocument("articles/hello.jpg") {
		t.Fatalf("IsDocument misclassified keys")
	}
	if got := Slug("articles/hello.md"); got != "articles/hello" {
		t.Fatalf("Slug = %q", got)
	}
	if got := TrimExtension("articles/hello.png"); got != "articles/hello" {
		t.Fatalf("TrimExtension = %q", got)
	}
	if !IsImage("a/b.JPG") {
		t.Fatalf("expected upper-case extension to be recognised")
	}
}

func TestEntryJSONRoundTripsBinary(t *testing.T) {
	entry := Entry{Key: "img.png", Value: []byte{0, 1, 2, 255}, IsBinary: true}
	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Entry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if !decoded.IsBinary || !slices.Equal(decoded.Value, entry.Value) {
		t.Fatalf("binary value not preserved: %#v", decoded)
	}
}

func TestMetadataTime(t *testing.T) {
	meta := Metadata{"date": "2021-06-01", "stamp": "2021-06-01T10:00:00Z", "bad": "soon"}
	got, ok := meta.Time("date")
	if !ok || !got.Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v %v", got, ok)
	}
	if _, ok := meta.Time("stamp"); !ok {
		t.Fatalf("expected RFC 3339 timestamp to parse")
	}
	if _, ok := meta.Time("bad"); ok {
		t.Fatalf("expected unparseable date to be rejected")
	}
}

func TestValidationErrorIs(t *testing.T) {
	err := error(&ValidationError{Key: "a.md", Field: "title", Reason: "is required"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError to match ErrValidation")
	}
}

func TestMetadataText(t *testing.T) {
	meta := Metadata{
		"day":    time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		"stamp":  time.Date(2021, 6, 1, 10, 30, 0, 0, time.UTC),
		"quoted": "2021-06-01",
		"count":  3,
	}
	cases := map[string]string{
		"day":     "2021-06-01",
		"stamp":   "2021-06-01T10:30:00Z",
		"quoted":  "2021-06-01",
		"count":   "3",
		"missing": "",
	}
	for field, want := range cases {
		if got := meta.Text(field); got != want {
			t.Fatalf("Text(%q) = %q, want %q", field, got, want)
		}
	}
}
