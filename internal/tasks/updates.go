package tasks

import (
	"fmt"

	"github.com/desertthunder/licentry/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase   // Operation phase
	Step    int     // Current step number within phase
	Total   int     // Total steps in this phase
	Percent float64 // Backend-reported progress, 0-100
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	PhaseValidate Phase = iota
	PhaseTokens
	PhaseSubmit
	PhaseStreaming
	PhaseMalformed
	PhaseComplete
	PhaseFailed
	PhaseBatch
)

func (p Phase) String() string {
	switch p {
	case PhaseValidate:
		return "validate"
	case PhaseTokens:
		return "tokens"
	case PhaseSubmit:
		return "submit"
	case PhaseStreaming:
		return "streaming"
	case PhaseMalformed:
		return "malformed"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	case PhaseBatch:
		return "batch"
	default:
		return ""
	}
}

// Terminal reports whether no further updates follow for this entry.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

func validateUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseValidate, Step: 1, Total: 3, Message: "Validating entry..."}
}

func tokensUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: PhaseTokens, Step: 2, Total: 3, Message: "Loading tokens..."}
}

func submitUpdate(username string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseSubmit,
		Step:    3,
		Total:   3,
		Message: fmt.Sprintf("Submitting entry for %s...", username),
	}
}

func eventUpdate(n int, ev models.ProgressEvent) ProgressUpdate {
	u := ProgressUpdate{
		Phase:   PhaseStreaming,
		Step:    n,
		Percent: ev.Progress,
		Message: ev.Message,
		Data:    ev,
	}
	if ev.Step == models.StepComplete {
		u.Phase = PhaseComplete
		u.Message = successMessage(ev.UserID)
	}
	return u
}

func malformedUpdate(n int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseMalformed,
		Step:    n,
		Message: fmt.Sprintf("Skipped malformed frame: %v", err),
		Data:    err,
	}
}

func failedUpdate(err error) ProgressUpdate {
	return ProgressUpdate{Phase: PhaseFailed, Message: err.Error(), Data: err}
}

func batchQueuedUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseBatch,
		Total:   total,
		Message: fmt.Sprintf("Submitting %d entries...", total),
	}
}

func batchEntryUpdate(done, total int, res BatchEntryResult) ProgressUpdate {
	u := ProgressUpdate{Phase: PhaseBatch, Step: done, Total: total, Data: res}
	if total > 0 {
		u.Percent = float64(done) / float64(total) * 100
	}
	if res.Err != nil {
		u.Message = fmt.Sprintf("[%d/%d] ✗ %s: %v", done, total, res.Entry.Username, res.Err)
	} else {
		u.Message = fmt.Sprintf("[%d/%d] ✓ %s (provider %s)", done, total, res.Entry.Username, res.UserID)
	}
	return u
}

// successMessage is what the user sees when an entry completes.
func successMessage(userID string) string {
	return fmt.Sprintf("License created successfully! Provider %s is created in CRM", userID)
}
