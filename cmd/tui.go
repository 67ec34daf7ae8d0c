package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/ui"
)

// TUI follows a single entry in the interactive terminal UI.
func (r *Runner) TUI(ctx context.Context, entry models.LicenseEntry, lenient bool) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	if err := shared.ApplyLogLevel(fileLogger, r.config.Log.Level); err != nil {
		return err
	}
	r.SetLogger(fileLogger)

	result, err := ui.Run(ctx, r.engine(lenient), entry)
	if err != nil {
		return err
	}

	r.logger.Info("entry created", "user_id", result.UserID)
	return nil
}
