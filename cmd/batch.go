package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/licentry/internal/formatter"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/tasks"
	"github.com/desertthunder/licentry/internal/ui"
	"github.com/urfave/cli/v3"
)

// EntryBatch submits every entry in a CSV file through a rate-limited worker pool.
func (r *Runner) EntryBatch(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("file")
	format := cmd.String("report")
	if format != formatter.FormatCSV && format != formatter.FormatText {
		return fmt.Errorf("%w: report format %q (must be csv or text)", shared.ErrInvalidArgument, format)
	}

	entries, err := formatter.ReadEntriesFile(path)
	if err != nil {
		return err
	}

	opts := tasks.BatchOpts{
		NumWorkers:   int(cmd.Int("workers")),
		RateLimit:    cmd.Float64("rate"),
		ReportFormat: format,
		ReportPath:   cmd.String("output"),
	}
	if !cmd.IsSet("workers") {
		opts.NumWorkers = r.config.Batch.Workers
	}
	if !cmd.IsSet("rate") {
		opts.RateLimit = r.config.Batch.RateLimit
	}

	r.logger.Info("starting batch", "file", path, "entries", len(entries), "workers", opts.NumWorkers, "rate", opts.RateLimit)

	progressCh := make(chan tasks.ProgressUpdate, progressBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if update.Phase == tasks.PhaseBatch {
				r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
			}
		}
	}()

	result, err := r.engine(cmd.Bool("lenient")).Batch(ctx, entries, progressCh, opts)
	close(progressCh)
	<-done

	if result == nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Batch Complete")
	if result.ReportPath == "" {
		if werr := formatter.WriteReport(r.output, result.Rows(), format); werr != nil {
			return werr
		}
	} else {
		r.writePlain("Report written to %s\n", result.ReportPath)
	}

	summary := fmt.Sprintf("%d/%d entries created", result.Succeeded, result.Total)
	if result.Failed > 0 {
		r.writePlain("%s\n", ui.Warning(summary))
	} else {
		r.writePlain("%s\n", ui.Success(summary))
	}

	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d entries failed", result.Failed, result.Total)
	}
	return nil
}

func batchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "Submit entries from a CSV file (username,birth_date,email,phone)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "CSV file with one entry per row",
				Required: true,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Concurrent submissions (max 10)",
				Value:   2,
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Submissions per second",
				Value: 0.5,
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Report format (csv or text)",
				Value: formatter.FormatText,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "lenient",
				Usage: "Skip malformed progress frames instead of failing",
			},
		},
		Action: r.EntryBatch,
	}
}
