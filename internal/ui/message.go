package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/licentry/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgEntryComplete
)

type entryOutcome struct {
	result *tasks.EntryResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// entryCompleteMsg is the constructor for [MsgEntryComplete]
func entryCompleteMsg(result *tasks.EntryResult, err error) Msg {
	return Msg{kind: MsgEntryComplete, data: entryOutcome{result: result, err: err}}
}
