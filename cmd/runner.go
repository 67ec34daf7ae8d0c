package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/licentry/internal/repositories"
	"github.com/desertthunder/licentry/internal/services"
	"github.com/desertthunder/licentry/internal/shared"
	"github.com/desertthunder/licentry/internal/tasks"
	"github.com/desertthunder/licentry/internal/tokens"
	"github.com/urfave/cli/v3"
)

// progressBuffer sizes the progress channels of the plain and JSON commands. The engine drops updates
// rather than block when a channel is full, so it holds far more than a normal stream produces.
const progressBuffer = 1024

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	api    services.Backend
	cache  *tokens.Cache
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	API    services.Backend
	Cache  *tokens.Cache
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration.
//
// A nil API talks to the configured base URL and a nil Cache keeps tokens in memory only.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.API == nil {
		timeout := time.Duration(opts.Config.API.TimeoutSeconds) * time.Second
		opts.API = services.NewAPIService(opts.Config.API.BaseURL, services.NewHTTPClient(timeout))
	}
	if opts.Cache == nil {
		opts.Cache = tokens.NewCache(
			repositories.NewMemoryStore(), opts.API,
			tokens.WithKey(opts.Config.Cache.Key), tokens.WithLogger(opts.Logger),
		)
	}

	return &Runner{
		config: opts.Config,
		api:    opts.API,
		cache:  opts.Cache,
		logger: opts.Logger,
		output: opts.Output,
	}
}

// SetLogger swaps the logger used by the runner and the engines it builds.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, entryCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// engine builds an [tasks.EntryEngine] sharing the runner's token cache.
func (r *Runner) engine(lenient bool) *tasks.EntryEngine {
	return tasks.NewEntryEngine(r.cache, r.api, tasks.WithLenient(lenient), tasks.WithEngineLogger(r.logger))
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
