package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/papapumpkin/stratum/internal/tokens"
)

// renderFile formats a file's full contents for the prompt.
func renderFile(path, content string) string {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return fmt.Sprintf("%s\n```\n%s```", path, content)
}

// renderSymbols formats a file's symbol summary for the prompt.
func renderSymbols(path, summary string) string {
	return fmt.Sprintf("%s (symbols)\n%s", path, strings.TrimRight(summary, "\n"))
}

// renderHistory is the text hashed and estimated for a history message.
func renderHistory(role, content string) string {
	return role + ": " + content
}

// renderURLs joins fetched URL contents sorted by URL, capping each at
// maxTokens.
func renderURLs(urls map[string]string, maxTokens int) string {
	if len(urls) == 0 {
		return ""
	}
	keys := make([]string, 0, len(urls))
	for u := range urls {
		keys = append(keys, u)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, u := range keys {
		body := tokens.Truncate(strings.TrimSpace(urls[u]), maxTokens)
		parts = append(parts, "## "+u+"\n\n"+body)
	}
	return strings.Join(parts, "\n\n")
}
