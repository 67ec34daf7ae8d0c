package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/licentry/internal/formatter"
	"github.com/desertthunder/licentry/internal/models"
	"golang.org/x/time/rate"
)

const (
	defaultBatchWorkers = 2
	maxBatchWorkers     = 10
	defaultBatchRate    = 0.5
)

// BatchOpts contains configuration for batch entry creation.
type BatchOpts struct {
	NumWorkers   int     // Concurrent workers (default: 2, max: 10)
	RateLimit    float64 // Submissions per second (default: 0.5)
	ReportFormat string  // Report format: csv, text
	ReportPath   string  // Report file, skipped when empty
}

// BatchEntryResult is the outcome of one entry in a batch.
type BatchEntryResult struct {
	Index    int // Position in the input, 0-based
	Entry    models.LicenseEntry
	UserID   string
	Err      error
	Duration time.Duration
}

// BatchResult summarizes a batch run. Results are ordered by input position.
type BatchResult struct {
	Total      int
	Succeeded  int
	Failed     int
	Results    []BatchEntryResult
	ReportPath string
}

// Rows converts the results into report rows.
func (r *BatchResult) Rows() []formatter.ReportRow {
	rows := make([]formatter.ReportRow, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, formatter.ReportRow{
			Index:    res.Index + 1,
			Username: res.Entry.Username,
			Email:    res.Entry.Email,
			UserID:   res.UserID,
			Err:      res.Err,
			Duration: res.Duration,
		})
	}
	return rows
}

type batchJob struct {
	index int
	entry models.LicenseEntry
}

// Batch creates many entries concurrently with rate limiting and progress tracking.
//
// Workers share the engine's token source, so a cold cache is filled by a single fetch.
// Failed entries are recorded in the result and never retried. When ctx is cancelled, entries that were
// not yet submitted are recorded with the context error and the returned error is ctx.Err().
func (e *EntryEngine) Batch(
	ctx context.Context,
	entries []models.LicenseEntry,
	prog chan<- ProgressUpdate,
	opts BatchOpts,
) (*BatchResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultBatchWorkers
	}
	if opts.NumWorkers > maxBatchWorkers {
		opts.NumWorkers = maxBatchWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultBatchRate
	}

	result := &BatchResult{
		Total:   len(entries),
		Results: make([]BatchEntryResult, 0, len(entries)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan batchJob)
	results := make(chan BatchEntryResult, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go e.batchWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		e.sendProgress(prog, batchQueuedUpdate(len(entries)))
		for i, entry := range entries {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(entries); j++ {
					results <- BatchEntryResult{Index: j, Entry: entries[j], Err: ctx.Err()}
				}
				return
			}

			select {
			case jobs <- batchJob{index: i, entry: entry}:
			case <-ctx.Done():
				for j := i; j < len(entries); j++ {
					results <- BatchEntryResult{Index: j, Entry: entries[j], Err: ctx.Err()}
				}
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Err == nil {
			result.Succeeded++
		} else {
			result.Failed++
		}
		e.sendProgress(prog, batchEntryUpdate(completed, len(entries), res))
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].Index < result.Results[j].Index
	})

	if opts.ReportPath != "" {
		path, err := formatter.WriteReportFile(result.Rows(), opts.ReportFormat, opts.ReportPath)
		if err != nil {
			return result, fmt.Errorf("batch completed but failed to write report: %w", err)
		}
		result.ReportPath = path
	}

	return result, ctx.Err()
}

// batchWorker creates entries from the jobs channel until it is closed.
func (e *EntryEngine) batchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan batchJob,
	results chan<- BatchEntryResult,
) {
	defer wg.Done()

	for job := range jobs {
		res := BatchEntryResult{Index: job.index, Entry: job.entry}

		created, err := e.Create(ctx, job.entry, nil)
		if created != nil {
			res.Entry = created.Entry
			res.UserID = created.UserID
			res.Duration = created.Duration
		}
		res.Err = err
		results <- res
	}
}
