package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"atelier/internal/format"
	"atelier/internal/logging"
	"atelier/internal/store"
	"atelier/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	Dir        string
	Workspace  string
	ActorID    string
	PrettyJSON bool
	Format     string
	LogLevel   string
	LogFile    string

	cfg     *store.Config
	logger  *zap.Logger
	logSink io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "atelier",
		Short:        "Atelier studio CMS (CLI + TUI + web admin)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  atelier

  # Scriptable commands
  atelier records list tags

  # Duplicate a record without prompts
  atelier records duplicate tags 7 --yes

  # Direct record lookup (shortcut for: atelier records show tags 7)
  atelier tags/7
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		app.teardown()
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("ATELIER_DIR", ""), "Path to the workspace dir (overrides workspace resolution)")
	cmd.PersistentFlags().StringVar(&app.Workspace, "workspace", envOr("ATELIER_WORKSPACE", ""), "Workspace name (default: config currentWorkspace, then 'default')")
	cmd.PersistentFlags().StringVar(&app.ActorID, "actor", envOr("ATELIER_ACTOR", ""), "Actor id recorded on writes (default: act-cli)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", envBool("ATELIER_PRETTY"), "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("ATELIER_FORMAT", "json"), "Output format (json|yaml)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("ATELIER_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("ATELIER_LOG_FILE", ""), "Write logs to this file (the TUI only logs when set)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newResourcesCmd(app))
	cmd.AddCommand(newRecordsCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newWebCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// setup loads the user config and builds the logger. Logs go to --log-file when
// set; otherwise to stderr, except for the TUI which owns the terminal.
func (app *App) setup(cmd *cobra.Command) error {
	cfg, err := store.LoadConfig()
	if err != nil {
		return writeErr(cmd, fmt.Errorf("load config: %w", err))
	}
	app.cfg = cfg

	level := app.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	if level == "" {
		level = "warn"
	}

	var w io.Writer
	switch {
	case app.LogFile != "":
		f, err := os.OpenFile(app.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return writeErr(cmd, err)
		}
		app.logSink = f
		w = f
	case cmd == cmd.Root():
		app.logger = zap.NewNop()
		_, err := logging.ParseLevel(level)
		return err
	default:
		w = cmd.ErrOrStderr()
	}
	logger, err := logging.New(level, w, app.LogFile != "")
	if err != nil {
		return writeErr(cmd, err)
	}
	app.logger = logger
	return nil
}

func (app *App) teardown() {
	if app.logger != nil {
		_ = app.logger.Sync()
	}
	if app.logSink != nil {
		_ = app.logSink.Close()
		app.logSink = nil
	}
}

func (app *App) log() *zap.Logger {
	if app.logger == nil {
		return zap.NewNop()
	}
	return app.logger
}

func (app *App) config() *store.Config {
	if app.cfg == nil {
		return &store.Config{}
	}
	return app.cfg
}

func (app *App) actorID() string {
	if v := strings.TrimSpace(app.ActorID); v != "" {
		return v
	}
	return "act-cli"
}

func runTUI(app *App) error {
	s, err := openStore(app)
	if err != nil {
		return err
	}
	actor := strings.TrimSpace(app.ActorID)
	if actor == "" {
		actor = "act-tui"
	}
	return tui.Run(tui.Options{
		Dir:              s.Dir,
		ActorID:          actor,
		Logger:           app.log().Named("tui"),
		DuplicateTimeout: app.config().Duplicate.EffectiveTimeout(),
	})
}

// resolveDir picks the workspace dir:
// 1) --dir
// 2) --workspace
// 3) config currentWorkspace
// 4) the "default" workspace
func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	name := app.Workspace
	if name == "" {
		name = app.config().CurrentWorkspace
	}
	if name == "" {
		name = "default"
	}
	d, err := store.WorkspaceDir(name)
	if err != nil {
		return "", err
	}
	app.Workspace = name
	app.Dir = d
	return d, nil
}

func openStore(app *App) (store.Store, error) {
	dir, err := resolveDir(app)
	if err != nil {
		return store.Store{}, err
	}
	s := store.Store{Dir: dir, Logger: app.log().Named("store")}
	if err := s.Ensure(); err != nil {
		return store.Store{}, err
	}
	return s, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string) bool {
	b, _ := strconv.ParseBool(os.Getenv(k))
	return b
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", s)
	}
	return id, nil
}

var errAborted = errors.New("aborted")
