package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/licentry/internal/models"
)

var _ list.Item = eventItem{}

// eventItem wraps [models.ProgressEvent] to implement [list.Item].
type eventItem struct {
	event models.ProgressEvent
}

func (i eventItem) FilterValue() string { return i.event.Message }
func (i eventItem) Title() string       { return i.event.Message }
func (i eventItem) Description() string {
	return fmt.Sprintf("%s • %.0f%%", i.event.Step, i.event.Progress)
}

// newEventList builds the list of steps shown on the result view.
func newEventList(events []models.ProgressEvent, width, height int) list.Model {
	items := make([]list.Item, len(events))
	for i, ev := range events {
		items[i] = eventItem{event: ev}
	}

	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Steps"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}
