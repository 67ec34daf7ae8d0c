// package tasks implements the license entry workflow.
//
// The core abstraction is EntryEngine, which obtains tokens, submits entries, and follows the backend's progress stream.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/licentry/internal/models"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/stream"
)

// EntryResult contains everything observed while creating a single entry.
type EntryResult struct {
	Entry     models.LicenseEntry    // Entry as submitted, after normalization
	UserID    string                 // Provider id from the complete event
	Events    []models.ProgressEvent // Every decoded event, in stream order
	Malformed []error                // Frames skipped in lenient mode
	Duration  time.Duration          // Wall time from validation to the terminal event
}

// Message returns the final user-facing message for the result.
func (r *EntryResult) Message() string {
	return successMessage(r.UserID)
}

// Last returns the most recent event, if any.
func (r *EntryResult) Last() (models.ProgressEvent, bool) {
	if len(r.Events) == 0 {
		return models.ProgressEvent{}, false
	}
	return r.Events[len(r.Events)-1], true
}

// TokenSource hands out a valid token pair, fetching one if needed.
type TokenSource interface {
	Tokens(ctx context.Context) (models.TokenPair, error)
}

// Submitter posts an entry and returns the unread progress stream.
type Submitter interface {
	CreateLicenceEntry(ctx context.Context, entry models.LicenseEntry, tokens models.TokenPair) (io.ReadCloser, error)
}

// EntryEngine creates license entries and reports their progress.
type EntryEngine struct {
	tokens   TokenSource
	api      Submitter
	logger   *log.Logger
	lenient  bool
	inFlight atomic.Int32
}

// EngineOption configures an [EntryEngine].
type EngineOption func(*EntryEngine)

// WithLenient makes malformed frames non-fatal: they are logged, reported as [PhaseMalformed], and skipped.
func WithLenient(lenient bool) EngineOption {
	return func(e *EntryEngine) { e.lenient = lenient }
}

// WithEngineLogger sets the logger. The default discards output.
func WithEngineLogger(l *log.Logger) EngineOption {
	return func(e *EntryEngine) { e.logger = l }
}

// NewEntryEngine creates a new EntryEngine with the provided token source and backend.
func NewEntryEngine(tokens TokenSource, api Submitter, opts ...EngineOption) *EntryEngine {
	e := &EntryEngine{
		tokens: tokens,
		api:    api,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InProgress reports whether any Create call is running.
func (e *EntryEngine) InProgress() bool {
	return e.inFlight.Load() > 0
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution; an update that does not fit is dropped.
func (e *EntryEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Create validates entry, obtains tokens, submits it, and follows the progress stream until a terminal event.
//
// Updates are dropped when progress is full. The returned result always carries every decoded event.
//
// Errors before the stream opens return a nil result:
//   - [shared.ErrInvalidInput] when validation fails
//   - [*shared.TokenAcquisitionError] when no tokens could be obtained
//   - [*shared.RequestSubmissionError] when the backend rejected the request
//
// Errors after the stream opens return the partial result alongside:
//   - [*shared.ApplicationReportedError] for an "error" event
//   - [*shared.ProtocolDecodeError] for a malformed frame, unless the engine is lenient
//   - [shared.ErrStreamIncomplete] when the stream ends with no terminal event
func (e *EntryEngine) Create(ctx context.Context, entry models.LicenseEntry, progress chan<- ProgressUpdate) (*EntryResult, error) {
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	start := time.Now()
	res, err := e.create(ctx, entry.Normalize(), progress)
	if res != nil {
		res.Duration = time.Since(start)
	}
	if err != nil {
		e.logger.Error("entry failed", "username", entry.Username, "error", err)
		e.sendProgress(progress, failedUpdate(err))
	}
	return res, err
}

func (e *EntryEngine) create(ctx context.Context, entry models.LicenseEntry, progress chan<- ProgressUpdate) (*EntryResult, error) {
	e.sendProgress(progress, validateUpdate())
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	e.sendProgress(progress, tokensUpdate())
	tokens, err := e.tokens.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, submitUpdate(entry.Username))
	e.logger.Info("submitting entry", "username", entry.Username)
	body, err := e.api.CreateLicenceEntry(ctx, entry, tokens)
	if err != nil {
		return nil, err
	}

	reader := stream.NewReader(body)
	defer reader.Close()

	result := &EntryResult{Entry: entry}
	for n := 1; ; n++ {
		ev, err := reader.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return result, e.incomplete(result)
		case stream.IsDecodeError(err):
			if !e.lenient {
				return result, err
			}
			e.logger.Warn("skipping malformed frame", "error", err)
			result.Malformed = append(result.Malformed, err)
			e.sendProgress(progress, malformedUpdate(n, err))
			continue
		case err != nil:
			return result, err
		}

		e.logger.Debug("progress", "step", ev.Step, "progress", ev.Progress, "message", ev.Message)
		result.Events = append(result.Events, ev)

		switch {
		case ev.Failed():
			return result, &shared.ApplicationReportedError{Message: ev.Message}
		case ev.Terminal():
			result.UserID = ev.UserID
			e.sendProgress(progress, eventUpdate(n, ev))
			e.logger.Info("entry created", "username", entry.Username, "user_id", ev.UserID)
			return result, nil
		default:
			e.sendProgress(progress, eventUpdate(n, ev))
		}
	}
}

func (e *EntryEngine) incomplete(result *EntryResult) error {
	if last, ok := result.Last(); ok {
		return fmt.Errorf("%w (last step %q at %.0f%%)", shared.ErrStreamIncomplete, last.Step, last.Progress)
	}
	return shared.ErrStreamIncomplete
}
