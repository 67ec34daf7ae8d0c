// Package ui implements an interactive terminal interface for `entry create --tui` using bubbletea's Elm architecture.
//
// The TUI moves through three views:
//  1. [PrepareView] : Spinner while the entry is validated, tokens are loaded, and the request is sent
//  2. [StreamView] : Progress bar and current message while the backend streams progress
//  3. [ResultView] : Success message with the provider id, or the failure reported by the backend
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the tasks.EntryEngine, providing non-blocking status reporting during submission.
//
// Pressing q (or ctrl+c) while the entry is running cancels the operation context; the TUI exits once the engine returns.
// Contextual help is displayed via charmbracelet/bubbles/help.
package ui
