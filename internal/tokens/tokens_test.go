package tokens

import (
	"strings"
	"testing"
)

func TestHeuristic_Estimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "", 0},
		{"one char", "a", 1},
		{"exactly four", "abcd", 1},
		{"five chars", "abcde", 2},
		{"forty chars", strings.Repeat("x", 40), 10},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := (Heuristic{}).Estimate(tt.input); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestEstimatorFunc(t *testing.T) {
	t.Parallel()
	var e Estimator = EstimatorFunc(func(s string) int { return len(strings.Fields(s)) })
	if got := e.Estimate("three little words"); got != 3 {
		t.Errorf("Estimate = %d, want 3", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	t.Run("fits", func(t *testing.T) {
		t.Parallel()
		if got := Truncate("short", 10); got != "short" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		long := strings.Repeat("x", 1000)
		if got := Truncate(long, 0); got != long {
			t.Error("non-positive budget should leave content untouched")
		}
	})

	t.Run("cuts at newline", func(t *testing.T) {
		t.Parallel()
		s := strings.Repeat("line of text\n", 20)
		got := Truncate(s, 10)
		if !strings.HasSuffix(got, truncatedMarker) {
			t.Fatalf("expected truncation marker, got %q", got)
		}
		if len(got) > 40 {
			t.Errorf("len = %d, want <= 40", len(got))
		}
		body := strings.TrimSuffix(got, truncatedMarker)
		if !strings.HasSuffix(body, "line of text") {
			t.Errorf("expected cut on a line boundary, got %q", body)
		}
	})

	t.Run("budget smaller than marker", func(t *testing.T) {
		t.Parallel()
		if got := Truncate(strings.Repeat("x", 100), 2); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}
