package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/papapumpkin/stratum/internal/telemetry"
)

// Sender delivers messages to a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// TelemetryBridge tails a JSONL telemetry file and converts tier events into
// MsgEvent messages for the transitions feed. It runs as a background
// goroutine and stops when Stop is called.
type TelemetryBridge struct {
	program  Sender
	path     string
	done     chan struct{}
	stopOnce sync.Once
}

// NewTelemetryBridge creates a bridge that tails the telemetry file at path.
func NewTelemetryBridge(p Sender, path string) *TelemetryBridge {
	return &TelemetryBridge{
		program: p,
		path:    path,
		done:    make(chan struct{}),
	}
}

// Start begins tailing the telemetry file in a background goroutine.
// It reads from the current end of the file, so only new events are surfaced.
func (tb *TelemetryBridge) Start() error {
	f, err := os.Open(tb.path)
	if err != nil {
		return fmt.Errorf("telemetry bridge: open %s: %w", tb.path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("telemetry bridge: seek: %w", err)
	}
	go tb.tail(f)
	return nil
}

// Stop signals the tailing goroutine to exit. It is safe to call multiple times.
func (tb *TelemetryBridge) Stop() {
	tb.stopOnce.Do(func() { close(tb.done) })
}

// tail reads lines from the file, polling for new content.
func (tb *TelemetryBridge) tail(f *os.File) {
	defer f.Close()

	reader := bufio.NewReader(f)
	const pollInterval = 250 * time.Millisecond

	for {
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				// Partial line: rewind so it is re-read once complete.
				if len(line) > 0 {
					if _, serr := f.Seek(-int64(len(line)), io.SeekCurrent); serr == nil {
						reader.Reset(f)
					}
				}
				break
			}
			var evt telemetry.Event
			if err := json.Unmarshal(line, &evt); err != nil {
				continue // skip malformed lines
			}
			if text := eventText(evt); text != "" {
				tb.program.Send(MsgEvent{Text: text, At: evt.Timestamp})
			}
		}

		select {
		case <-tb.done:
			return
		case <-time.After(pollInterval):
		}
	}
}

// eventText converts a telemetry event to a feed line. Returns empty string
// for events that should not be surfaced.
func eventText(evt telemetry.Event) string {
	m, _ := evt.Data.(map[string]any)
	switch evt.Kind {
	case telemetry.KindTierChange:
		from, _ := m["from"].(string)
		to, _ := m["to"].(string)
		if from == "" || to == "" {
			return ""
		}
		style := styleDemote
		if tierRank(to) > tierRank(from) {
			style = stylePromote
		}
		return fmt.Sprintf("%s %s", evt.Key, style.Render(from+" → "+to))
	case telemetry.KindHistoryPurged:
		return fmt.Sprintf("history purged (%v items)", m["purged"])
	case telemetry.KindTiersSeeded:
		return fmt.Sprintf("tiers seeded (%v items)", m["seeded"])
	default:
		return ""
	}
}

// tierRank orders tier names from volatile to stable; unknown names rank lowest.
func tierRank(name string) int {
	switch name {
	case "L3":
		return 1
	case "L2":
		return 2
	case "L1":
		return 3
	case "L0":
		return 4
	default:
		return 0
	}
}
