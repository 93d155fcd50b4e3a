package memory

import (
	"context"
	"testing"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
)

func TestExporter_ReplacesMonth(t *testing.T) {
	e := New()
	ctx := context.Background()

	first := []core.MonthlySummary{{PropertyID: "P1", Month: "2025-06"}, {PropertyID: "P2", Month: "2025-06"}}
	ref, err := e.Export(ctx, "2025-06", first)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if ref != "memory:2025-06:2" {
		t.Fatalf("unexpected ref %q", ref)
	}

	if _, err := e.Export(ctx, "2025-06", first[:1]); err != nil {
		t.Fatalf("export again: %v", err)
	}
	rows, ok := e.Rows("2025-06")
	if !ok || len(rows) != 1 || rows[0].PropertyID != "P1" {
		t.Fatalf("expected replaced rows, got %+v", rows)
	}
	if e.Calls() != 2 {
		t.Fatalf("expected 2 calls, got %d", e.Calls())
	}

	first[0].PropertyID = "changed"
	rows, _ = e.Rows("2025-06")
	if rows[0].PropertyID != "P1" {
		t.Fatal("stored rows must not alias the input")
	}
}

func TestExporter_Months(t *testing.T) {
	e := New()
	ctx := context.Background()
	for _, m := range []string{"2025-07", "2025-05", "2025-06"} {
		if _, err := e.Export(ctx, m, nil); err != nil {
			t.Fatalf("export %s: %v", m, err)
		}
	}
	got := e.Months()
	want := []string{"2025-05", "2025-06", "2025-07"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("months = %v, want %v", got, want)
		}
	}
}

func TestExporter_Errors(t *testing.T) {
	e := New()
	if _, err := e.Export(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty month")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Export(ctx, "2025-06", nil); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if len(e.Months()) != 0 {
		t.Fatal("failed exports must not be stored")
	}
}
