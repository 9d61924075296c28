package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/schemasync/internal/config"
	"github.com/tordrt/schemasync/internal/editor"
	"github.com/tordrt/schemasync/internal/logging"
	"github.com/tordrt/schemasync/internal/storage"
	"github.com/tordrt/schemasync/internal/store"
)

// app carries state shared by all commands once the root pre-run has loaded it
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "schemasync",
		Short: "Keep a table diagram and its SQL in sync",
		Long: `Schemasync keeps a visual table diagram and its SQL DDL in sync.

SQL edits are merged into the stored schema so tables and columns keep their
ids and canvas positions. The schema can be exported as JSON, YAML or SQL in the
standard, mysql or postgres dialect, served over HTTP, or introspected from a
live PostgreSQL, MySQL or SQLite database.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Config file (default: ./schemasync.yaml)")
	flags.String("dialect", "", "SQL dialect: standard, mysql or postgres")
	flags.Duration("debounce", 0, "Quiet period before edited SQL is applied")
	flags.StringP("project", "p", "", "Project name")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("log-development", false, "Human readable colored logs")
	flags.String("storage-driver", "", "Storage driver: file, sqlite or postgres")
	flags.String("storage-path", "", "Directory (file) or database file (sqlite)")
	flags.String("storage-dsn", "", "PostgreSQL connection string for the postgres driver")

	rootCmd.AddCommand(
		a.newExportCmd(),
		a.newImportCmd(),
		a.newApplyCmd(),
		a.newWatchCmd(),
		a.newServeCmd(),
		a.newIntrospectCmd(),
		a.newProjectsCmd(),
		a.newDialectsCmd(),
	)
	return rootCmd
}

// openStorage opens the configured backend
func (a *app) openStorage(ctx context.Context) (storage.Storage, error) {
	st, err := storage.Open(ctx, a.cfg.Storage, storage.WithLogger(a.logger.Named("storage")))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	return st, nil
}

// openEditor loads the configured project into a new editor.
// A project that was never saved starts empty.
func (a *app) openEditor(ctx context.Context, st storage.Storage) (*editor.Editor, error) {
	var opts []store.Option
	opts = append(opts, store.WithLogger(a.logger.Named("store")))

	s, err := st.Load(ctx, a.cfg.Project)
	switch {
	case err == nil:
		opts = append(opts, store.WithState(s))
	case errors.Is(err, storage.ErrNotFound):
		a.logger.Info("starting new project", zap.String("project", a.cfg.Project))
	default:
		return nil, fmt.Errorf("failed to load project %s: %w", a.cfg.Project, err)
	}

	return editor.New(store.New(opts...),
		editor.WithDialect(a.cfg.Dialect),
		editor.WithDebounce(a.cfg.Debounce),
		editor.WithLogger(a.logger.Named("editor")))
}

// withProject opens storage and the project editor, runs fn and closes storage
func (a *app) withProject(ctx context.Context, fn func(st storage.Storage, ed *editor.Editor) error) error {
	st, err := a.openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			a.logger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	ed, err := a.openEditor(ctx, st)
	if err != nil {
		return err
	}
	return fn(st, ed)
}

// save persists the editor state under the configured project
func (a *app) save(ctx context.Context, st storage.Storage, ed *editor.Editor) error {
	if err := st.Save(ctx, a.cfg.Project, ed.Store().State()); err != nil {
		return fmt.Errorf("failed to save project %s: %w", a.cfg.Project, err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
