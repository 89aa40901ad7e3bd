package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/workaholic-kv/workaholic/internal/database"
	"github.com/workaholic-kv/workaholic/internal/services"
	"github.com/workaholic-kv/workaholic/internal/usecase"
)

func TestFit(t *testing.T) {
	if got := fit("short", 10); got != "short" {
		t.Fatalf("fit shortened a fitting string: %q", got)
	}
	if got := fit("a  long\nline of text", 9); got != "a long..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := fit("日本語のタイトル", 7); got != "日本..." {
		t.Fatalf("wide runes should count double, got %q", got)
	}
}

func TestMaxWidth(t *testing.T) {
	if got := maxWidth([]string{"ab", "abcdef"}, 4, 5); got != 5 {
		t.Fatalf("expected ceiling, got %d", got)
	}
	if got := maxWidth(nil, 4, 10); got != 4 {
		t.Fatalf("expected floor, got %d", got)
	}
}

func TestOutputBuildTable(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := &usecase.BuildResult{
		Purged: 2,
		Summary: services.BuildSummary{
			Build: database.BuildRecord{
				ID:         "b-1",
				StartedAt:  started,
				FinishedAt: started.Add(1500 * time.Millisecond),
				EntryCount: 4,
				Status:     usecase.StatusOK,
			},
			Tables: []database.BuildTableRecord{
				{Namespace: "data", RowCount: 3, Digest: strings.Repeat("ab", 32), Status: usecase.StatusOK},
			},
		},
	}

	var buf bytes.Buffer
	outputBuildTable(&buf, out)
	rendered := strings.ToLower(buf.String())
	for _, want := range []string{"build b-1", "data", strings.Repeat("ab", 8), "4 entries", "1.5s", "purged 2 expired rows"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in output:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, strings.Repeat("ab", 9)) {
		t.Fatalf("digest should be shortened:\n%s", rendered)
	}
}
