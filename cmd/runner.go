package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/depicts/internal/commons"
	"github.com/desertthunder/depicts/internal/jobs"
	"github.com/desertthunder/depicts/internal/repositories"
	"github.com/desertthunder/depicts/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	client   commons.Client
	db       *sql.DB
	repo     *repositories.FileRepository
	registry *jobs.Registry
	engine   *jobs.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Client     commons.Client
}

// NewRunner creates a new Runner with the provided configuration
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

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		client:     opts.Client,
	}
}

// SetLogger swaps the runner's logger, for commands that redirect logs.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	if r.engine != nil {
		r.engine = jobs.NewEngine(r.client, r.repo, r.registry, r.logger)
	}
}

// connect opens the database and builds the analysis stack. Idempotent,
// so every command action can call it first.
func (r *Runner) connect() error {
	if r.engine != nil {
		return nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.repo = repositories.NewFileRepository(db)
	if r.client == nil {
		r.client = commons.NewAPIClient(r.config.Commons, r.httpClient)
	}
	r.registry = jobs.NewRegistry(r.config.Jobs.Retention())
	r.engine = jobs.NewEngine(r.client, r.repo, r.registry, r.logger)

	return nil
}

// Close releases the runner's database and registry resources.
func (r *Runner) Close() {
	if r.registry != nil {
		r.registry.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, analyzeCommand, historyCommand, resultsCommand, deleteCommand, suggestCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
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

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}
