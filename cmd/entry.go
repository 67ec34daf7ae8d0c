package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/tasks"
	"github.com/desertthunder/licentry/internal/ui"
	"github.com/urfave/cli/v3"
)

// entryOutput is one line of `entry create --json`.
type entryOutput struct {
	Phase    string  `json:"phase"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	UserID   string  `json:"userId,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// EntryCreate submits a single license entry and follows its progress stream.
func (r *Runner) EntryCreate(ctx context.Context, cmd *cli.Command) error {
	entry := models.LicenseEntry{
		Username:  cmd.String("username"),
		BirthDate: cmd.String("birth-date"),
		Email:     cmd.String("email"),
		Phone:     cmd.String("phone"),
	}

	if cmd.Bool("tui") {
		return r.TUI(ctx, entry, cmd.Bool("lenient"))
	}

	engine := r.engine(cmd.Bool("lenient"))
	asJSON := cmd.Bool("json")

	r.logger.Info("creating license entry", "username", entry.Username)

	progressCh := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				if !update.Phase.Terminal() {
					r.writeJSON(entryOutput{Phase: update.Phase.String(), Progress: update.Percent, Message: update.Message}, false)
				}
				continue
			}
			switch update.Phase {
			case tasks.PhaseStreaming:
				r.writePlain("[%3.0f%%] %s\n", update.Percent, update.Message)
			case tasks.PhaseMalformed:
				r.writePlain("%s\n", ui.Warning("⚠ "+update.Message))
			case tasks.PhaseComplete, tasks.PhaseFailed:
				// summarized once Create returns
			default:
				r.writePlain("%s\n", ui.Muted(update.Message))
			}
		}
	}()

	result, err := engine.Create(ctx, entry, progressCh)
	close(progressCh)
	<-done

	if asJSON {
		return r.writeEntryJSON(result, err)
	}

	if err != nil {
		var are *shared.ApplicationReportedError
		if errors.As(err, &are) {
			r.writePlain("%s\n", ui.Failure("✗ "+are.Message))
		} else {
			r.writePlain("%s\n", ui.Failure("✗ "+err.Error()))
		}
		return err
	}

	r.writePlain("\n%s\n", ui.Success("✓ "+result.Message()))
	r.writePlain("Finished in %s\n", result.Duration.Round(time.Millisecond))
	if n := len(result.Malformed); n > 0 {
		r.writePlain("%s\n", ui.Warning(fmt.Sprintf("Skipped %d malformed frame(s)", n)))
	}
	return nil
}

func (r *Runner) writeEntryJSON(result *tasks.EntryResult, err error) error {
	out := entryOutput{Phase: tasks.PhaseComplete.String(), Progress: 100}
	if err != nil {
		out.Phase = tasks.PhaseFailed.String()
		out.Error = err.Error()
		var are *shared.ApplicationReportedError
		if errors.As(err, &are) {
			out.Message = are.Message
		}
		if last, ok := lastEvent(result); ok {
			out.Progress = last.Progress
		}
		if werr := r.writeJSON(out, false); werr != nil {
			return werr
		}
		return err
	}

	out.UserID = result.UserID
	out.Message = result.Message()
	return r.writeJSON(out, false)
}

func lastEvent(result *tasks.EntryResult) (models.ProgressEvent, bool) {
	if result == nil {
		return models.ProgressEvent{}, false
	}
	return result.Last()
}
