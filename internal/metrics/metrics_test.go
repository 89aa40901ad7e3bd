package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.QueriesTotal.WithLabelValues("list", "hit").Inc()
	m.QueriesTotal.WithLabelValues("list", "hit").Inc()

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("list", "hit")); got != 2 {
		t.Fatalf("expected 2 queries, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered metric families")
	}
}

func TestNewWithNilRegistryIsIsolated(t *testing.T) {
	first := New(nil)
	second := New(nil)

	first.BuildEntriesTotal.Add(3)
	if got := testutil.ToFloat64(second.BuildEntriesTotal); got != 0 {
		t.Fatalf("expected isolated counters, got %v", got)
	}
}
