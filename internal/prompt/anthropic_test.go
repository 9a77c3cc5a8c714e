package prompt

import (
	"testing"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

func TestToAnthropic(t *testing.T) {
	t.Parallel()

	msgs := BuildMessages(Request{
		SystemPrompt: "SYS",
		FileTree:     "a.go\n",
		UserPrompt:   "look",
		Images:       []string{"data:image/png;base64,AAAA", "https://example.com/b.png"},
	})
	system, out, err := ToAnthropic(msgs)
	if err != nil {
		t.Fatalf("ToAnthropic: %v", err)
	}

	if len(system) != 1 || system[0].Text != "SYS" {
		t.Fatalf("system = %+v", system)
	}
	if system[0].CacheControl.Type == "" {
		t.Error("system block should carry cache control")
	}

	if len(out) != 3 {
		t.Fatalf("got %d messages, want 3", len(out))
	}
	if out[0].Role != anthropicsdk.MessageParamRoleUser || out[1].Role != anthropicsdk.MessageParamRoleAssistant {
		t.Errorf("roles = %s, %s", out[0].Role, out[1].Role)
	}
	if tb := out[0].Content[0].OfText; tb == nil || tb.CacheControl.Type != "" {
		t.Error("file tree message should be plain, untagged text")
	}

	final := out[2].Content
	if len(final) != 3 {
		t.Fatalf("final content has %d blocks, want 3", len(final))
	}
	if final[0].OfText == nil || final[0].OfText.Text != "look" {
		t.Errorf("first block = %+v", final[0])
	}
	if final[1].OfImage == nil || final[2].OfImage == nil {
		t.Error("expected two image blocks")
	}
}

func TestToAnthropic_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msgs []Message
	}{
		{"unknown role", []Message{{Role: "tool", Text: "x"}}},
		{"image in system", []Message{{Role: RoleSystem, Blocks: []Block{{Type: BlockImageURL, ImageURL: &ImageURL{URL: "u"}}}}}},
		{"image without url", []Message{{Role: RoleUser, Blocks: []Block{{Type: BlockImageURL}}}}},
		{"unknown block", []Message{{Role: RoleUser, Blocks: []Block{{Type: "audio"}}}}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, _, err := ToAnthropic(tt.msgs); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseDataURL(t *testing.T) {
	t.Parallel()

	mt, data, ok := parseDataURL("data:image/jpeg;base64,QUJD")
	if !ok || mt != "image/jpeg" || data != "QUJD" {
		t.Errorf("got (%q, %q, %v)", mt, data, ok)
	}
	for _, bad := range []string{"https://x/y.png", "data:image/png,raw", "data:;base64,AAAA", "data:image/png;base64"} {
		if _, _, ok := parseDataURL(bad); ok {
			t.Errorf("parseDataURL(%q) should fail", bad)
		}
	}
}
