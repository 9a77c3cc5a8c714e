package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/papapumpkin/stratum/internal/prompt"
	"github.com/papapumpkin/stratum/internal/stability"
)

func TestCommands_Registered(t *testing.T) {
	t.Parallel()

	want := []string{"turn", "tiers", "seed", "purge-history", "stats", "telemetry", "serve", "dash"}
	have := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("expected %q subcommand to be registered on rootCmd", name)
		}
	}
}

func TestCommands_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd  string
		flag string
	}{
		{"turn", "input"},
		{"turn", "anthropic"},
		{"seed", "graph"},
		{"seed", "keys"},
		{"stats", "recent"},
		{"stats", "prune"},
		{"telemetry", "follow"},
		{"telemetry", "file"},
		{"serve", "port"},
		{"serve", "no-watch"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd+"/"+tt.flag, func(t *testing.T) {
			t.Parallel()
			c, _, err := rootCmd.Find([]string{tt.cmd})
			if err != nil {
				t.Fatalf("Find(%q): %v", tt.cmd, err)
			}
			if c.Flags().Lookup(tt.flag) == nil {
				t.Errorf("expected flag %q on %s", tt.flag, tt.cmd)
			}
		})
	}
}

func TestSeedKeyFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind    string
		want    string
		wantErr bool
	}{
		{"file", stability.FileKey("a.go"), false},
		{"symbol", stability.SymbolKey("a.go"), false},
		{"", stability.SymbolKey("a.go"), false},
		{"url", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Parallel()
			fn, err := seedKeyFunc(tt.kind)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := fn("a.go"); got != tt.want {
				t.Errorf("key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReadInput_Stdin(t *testing.T) {
	t.Parallel()

	in, err := readInput(strings.NewReader(`prompt = "hi"`+"\n"+`files = ["a.go"]`), "-")
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if in.Prompt != "hi" || len(in.Files) != 1 || in.Files[0] != "a.go" {
		t.Errorf("unexpected input: %+v", in)
	}
}

func TestWriteMessages(t *testing.T) {
	t.Parallel()

	msgs := prompt.BuildMessages(prompt.Request{
		SystemPrompt: "be brief",
		UserPrompt:   "hello",
	})

	t.Run("native", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeMessages(&buf, msgs, false); err != nil {
			t.Fatalf("writeMessages: %v", err)
		}
		var out []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("output is not a JSON array: %v", err)
		}
		if len(out) != len(msgs) {
			t.Errorf("got %d messages, want %d", len(out), len(msgs))
		}
		if out[0]["role"] != "system" {
			t.Errorf("first role = %v, want system", out[0]["role"])
		}
	})

	t.Run("anthropic", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		if err := writeMessages(&buf, msgs, true); err != nil {
			t.Fatalf("writeMessages: %v", err)
		}
		var out map[string]json.RawMessage
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatalf("output is not a JSON object: %v", err)
		}
		for _, key := range []string{"system", "messages"} {
			if _, ok := out[key]; !ok {
				t.Errorf("missing %q in anthropic output", key)
			}
		}
	})
}

func TestFormatDataMap(t *testing.T) {
	t.Parallel()

	got := formatDataMap(map[string]any{"to": "L3", "from": "ACTIVE", "n": 3})
	want := "from=ACTIVE n=3 to=L3"
	if got != want {
		t.Errorf("formatDataMap = %q, want %q", got, want)
	}
}

func TestPrintEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "tier change",
			line: `{"ts":"2026-01-02T03:04:05Z","kind":"tier_change","turn":7,"key":"file:a.go","data":{"from":"ACTIVE","to":"L3"}}`,
			want: []string{"tier_change", "turn=7", "key=file:a.go", "from=ACTIVE to=L3"},
		},
		{
			name: "no data",
			line: `{"ts":"2026-01-02T03:04:05Z","kind":"turn_start","turn":1}`,
			want: []string{"turn_start", "turn=1"},
		},
		{
			name: "malformed",
			line: `not json`,
			want: []string{"??? not json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printEvent(&buf, tt.line)
			got := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output %q missing %q", got, w)
				}
			}
		})
	}
}

func TestPrintLines(t *testing.T) {
	t.Parallel()

	input := `{"ts":"2026-01-02T03:04:05Z","kind":"turn_start","turn":1}` + "\n\n" +
		`{"ts":"2026-01-02T03:04:06Z","kind":"turn_done","turn":1}` + "\n"
	var buf bytes.Buffer
	if err := printLines(&buf, bufio.NewReader(strings.NewReader(input))); err != nil {
		t.Fatalf("printLines: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "turn_done") {
		t.Errorf("second line = %q, want turn_done", lines[1])
	}
}
