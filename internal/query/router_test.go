package query

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/workaholic-kv/workaholic/internal/kv"
	"github.com/workaholic-kv/workaholic/internal/metrics"
)

func staticFactory(result any, err error) Factory {
	return func(kv.Reader) Handler {
		return func(context.Context, string, Options) (any, error) {
			return result, err
		}
	}
}

func TestQueryUnknownNamespace(t *testing.T) {
	router := New(nil, Registration{Namespace: "list", Factory: staticFactory("ok", nil)})

	for _, key := range []string{"", "x", "a/b"} {
		result, err := router.Query(context.Background(), "nonexistent", key, Options{Accept: "image/avif"})
		if !errors.Is(err, ErrUnknownNamespace) {
			t.Fatalf("expected ErrUnknownNamespace for key %q, got %v", key, err)
		}
		var unknown *UnknownNamespaceError
		if !errors.As(err, &unknown) || unknown.Namespace != "nonexistent" {
			t.Fatalf("expected UnknownNamespaceError naming the namespace, got %#v", err)
		}
		if result != nil {
			t.Fatalf("expected nil result, got %#v", result)
		}
	}
}

func TestQueryPassesThroughResults(t *testing.T) {
	boom := errors.New("boom")
	m := metrics.New(nil)
	router := New(nil,
		Registration{Namespace: "list", Factory: staticFactory([]string{"a"}, nil)},
		Registration{Namespace: "data", Factory: staticFactory(nil, nil)},
		Registration{Namespace: "tags", Factory: staticFactory(nil, boom)},
	).WithMetrics(m)

	result, err := router.Query(context.Background(), "list", "", Options{})
	if err != nil || !slices.Equal(result.([]string), []string{"a"}) {
		t.Fatalf("unexpected list result %#v, %v", result, err)
	}

	result, err = router.Query(context.Background(), "data", "missing", Options{})
	if err != nil || result != nil {
		t.Fatalf("expected nil not-found result, got %#v, %v", result, err)
	}

	if _, err := router.Query(context.Background(), "tags", "x", Options{}); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}

	// A failing handler does not affect the others.
	if _, err := router.Query(context.Background(), "list", "", Options{}); err != nil {
		t.Fatalf("unexpected error after failing handler: %v", err)
	}

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("data", "not_found")); got != 1 {
		t.Fatalf("expected one not_found query, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("list", "ok")); got != 2 {
		t.Fatalf("expected two ok list queries, got %v", got)
	}
}

func TestNamespacesSorted(t *testing.T) {
	router := New(nil,
		Registration{Namespace: "tags", Factory: staticFactory(nil, nil)},
		Registration{Namespace: "data", Factory: staticFactory(nil, nil)},
	)
	if got := router.Namespaces(); !slices.Equal(got, []string{"data", "tags"}) {
		t.Fatalf("unexpected namespaces %q", got)
	}
}

func TestNewPanicsOnDuplicateNamespace(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for duplicate registration")
		}
	}()
	New(nil,
		Registration{Namespace: "list", Factory: staticFactory(nil, nil)},
		Registration{Namespace: "list", Factory: staticFactory(nil, nil)},
	)
}

func TestNegotiateImage(t *testing.T) {
	all := []string{"avif", "webp", "jpg"}
	cases := []struct {
		accept    string
		available []string
		want      string
	}{
		{"image/avif,image/webp,*/*", all, "avif"},
		{"image/webp,image/apng,*/*;q=0.8", all, "webp"},
		{"text/html,*/*", all, "jpg"},
		{"", all, "jpg"},
		{"image/avif;q=0, image/webp", all, "webp"},
		{"image/avif", []string{"webp", "jpg"}, "jpg"},
		{"image/avif", []string{"avif"}, "avif"},
		{"image/webp", nil, ""},
		{"image/webp", []string{"avif"}, ""},
	}
	for _, tc := range cases {
		if got := NegotiateImage(tc.accept, tc.available); got != tc.want {
			t.Fatalf("NegotiateImage(%q, %q) = %q, want %q", tc.accept, tc.available, got, tc.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := ContentType("WEBP"); got != "image/webp" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := ContentType("bin"); got != "application/octet-stream" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
