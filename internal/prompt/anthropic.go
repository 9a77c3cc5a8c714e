package prompt

import (
	"errors"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// ToAnthropic converts built messages into Messages API parameters. System
// messages become system text blocks; cache markers become ephemeral
// cache_control on the matching block.
func ToAnthropic(msgs []Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam, error) {
	var (
		system []anthropicsdk.TextBlockParam
		out    = make([]anthropicsdk.MessageParam, 0, len(msgs))
	)
	for i, m := range msgs {
		blocks := m.Blocks
		if blocks == nil {
			if m.Text == "" {
				continue
			}
			blocks = []Block{{Type: BlockText, Text: m.Text}}
		}

		switch m.Role {
		case RoleSystem:
			for _, b := range blocks {
				if b.Type != BlockText {
					return nil, nil, fmt.Errorf("prompt: message %d: system block type %q", i, b.Type)
				}
				system = append(system, textParam(b))
			}
		case RoleUser, RoleAssistant:
			content := make([]anthropicsdk.ContentBlockParamUnion, 0, len(blocks))
			for _, b := range blocks {
				part, err := contentParam(b)
				if err != nil {
					return nil, nil, fmt.Errorf("prompt: message %d: %w", i, err)
				}
				content = append(content, part)
			}
			role := anthropicsdk.MessageParamRoleUser
			if m.Role == RoleAssistant {
				role = anthropicsdk.MessageParamRoleAssistant
			}
			out = append(out, anthropicsdk.MessageParam{Role: role, Content: content})
		default:
			return nil, nil, fmt.Errorf("prompt: message %d: unsupported role %q", i, m.Role)
		}
	}
	return system, out, nil
}

func textParam(b Block) anthropicsdk.TextBlockParam {
	p := anthropicsdk.TextBlockParam{Text: b.Text}
	if b.CacheControl != nil {
		p.CacheControl = anthropicsdk.NewCacheControlEphemeralParam()
	}
	return p
}

func contentParam(b Block) (anthropicsdk.ContentBlockParamUnion, error) {
	switch b.Type {
	case BlockText:
		p := textParam(b)
		return anthropicsdk.ContentBlockParamUnion{OfText: &p}, nil
	case BlockImageURL:
		if b.ImageURL == nil || b.ImageURL.URL == "" {
			return anthropicsdk.ContentBlockParamUnion{}, errors.New("image block without url")
		}
		if mediaType, data, ok := parseDataURL(b.ImageURL.URL); ok {
			return anthropicsdk.NewImageBlockBase64(mediaType, data), nil
		}
		return anthropicsdk.NewImageBlock(anthropicsdk.URLImageSourceParam{URL: b.ImageURL.URL}), nil
	default:
		return anthropicsdk.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", b.Type)
	}
}

// parseDataURL splits "data:<media>;base64,<payload>".
func parseDataURL(url string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(url, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", "", false
	}
	mediaType, found = strings.CutSuffix(meta, ";base64")
	if !found || mediaType == "" {
		return "", "", false
	}
	return mediaType, payload, true
}
