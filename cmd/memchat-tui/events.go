package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"memchat/internal/observability"
)

// logLineMsg carries one controller event into the model's log ring.
type logLineMsg string

// uiLogObserver hands controller events to the bubbletea loop. Events are
// emitted from the goroutine running the exchange, so they travel over a
// channel instead of touching the model directly.
type uiLogObserver struct {
	lines chan string
}

func newUILogObserver(buffer int) *uiLogObserver {
	return &uiLogObserver{lines: make(chan string, maxInt(1, buffer))}
}

// OnEvent drops the line when the UI has fallen behind.
func (o *uiLogObserver) OnEvent(_ context.Context, event observability.Event) {
	if event.Level < observability.LevelInfo {
		return
	}
	select {
	case o.lines <- formatEvent(event):
	default:
	}
}

func (o *uiLogObserver) wait() tea.Cmd {
	lines := o.lines
	return func() tea.Msg {
		return logLineMsg(<-lines)
	}
}

func formatEvent(event observability.Event) string {
	keys := make([]string, 0, len(event.Data))
	for k := range event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(event.Type))
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, event.Data[k])
	}
	return b.String()
}
