package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunebridge/internal/controller"
	"github.com/desertthunder/tunebridge/internal/formatter"
	"github.com/desertthunder/tunebridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The controller is built on first use so commands like setup config run without a backend or config file.
type Runner struct {
	config     *shared.Config
	configPath string
	controller *controller.Controller
	httpClient *http.Client
	navigator  shared.Navigator
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Controller *controller.Controller
	HTTPClient *http.Client
	Navigator  shared.Navigator
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Navigator == nil {
		opts.Navigator = shared.NavigatorFunc(shared.OpenBrowser)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		controller: opts.Controller,
		httpClient: opts.HTTPClient,
		navigator:  opts.Navigator,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, trackCommand, playlistsCommand, playlistCommand,
		playCommand, nowPlayingCommand, historyCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, markdown, json or csv",
			Value:   "text",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
	}
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "tunebridge",
		Usage:    "Resolve Spotify tracks to playable streams and follow what is playing",
		Version:  "0.1.0",
		Flags:    r.flags(),
		Commands: r.register(),
		After: func(ctx context.Context, cmd *cli.Command) error {
			return r.Close()
		},
	}
}

// loadConfig resolves the configuration once: an injected config wins, then the --config file, then defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	path := r.configPath
	if v := cmd.String("config"); v != "" {
		path = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return nil, err
		}
		r.logger.Debug("loaded config", "path", path)
	} else {
		config.ApplyEnv()
		r.logger.Debug("config file not found, using defaults", "path", path)
	}

	r.config = config
	r.configPath = path
	return config, nil
}

// ctrl returns the shared controller, building it on first use.
func (r *Runner) ctrl(ctx context.Context, cmd *cli.Command) (*controller.Controller, error) {
	if r.controller != nil {
		return r.controller, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	level := shared.ParseLogLevel(config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	c, err := controller.New(ctx, controller.Options{
		Config:     config,
		Logger:     r.logger,
		Navigator:  r.navigator,
		HTTPClient: r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.controller = c
	return c, nil
}

// Close releases the controller, if one was built.
func (r *Runner) Close() error {
	if r.controller == nil {
		return nil
	}
	err := r.controller.Close()
	r.controller = nil
	return err
}

// SetLogger replaces the logger for the runner and any controller built afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) format(cmd *cli.Command) (formatter.Format, error) {
	return formatter.ParseFormat(cmd.String("format"))
}

// render writes data produced by a formatter.
func (r *Runner) render(data []byte, err error) error {
	if err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		if _, err := r.output.Write([]byte("\n")); err != nil {
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	return nil
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
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
