package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"todoapp/app"
	"todoapp/config"
	"todoapp/logging"
	"todoapp/store"
	"todoapp/tui"
)

// prefersDark reports the terminal background when no theme is stored.
var prefersDark = lipgloss.HasDarkBackground

// runTUI is swapped in tests.
var runTUI = tui.Run

// NewRootCmd builds the command tree. Without a subcommand it starts the TUI.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		cfg     config.Config
	)

	root := &cobra.Command{
		Use:           "todoapp",
		Short:         "A local to-do list with a terminal UI",
		Long:          "todoapp keeps an ordered to-do list on disk. Run it without arguments for the interactive UI, or use the subcommands from scripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(config.Options{
				ConfigFile: cfgFile,
				Flags:      cmd.Root().PersistentFlags(),
			})
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := openLogFile(cfg.LogPath())
			if err != nil {
				return err
			}
			defer logFile.Close()

			sess, err := openSession(cfg, logging.New(logFile, cfg.LogLevel))
			if err != nil {
				return err
			}
			defer sess.Close()

			return runTUI(sess.svc, sess.status)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default ./todoapp.yaml or <data-dir>/todoapp.yaml)")
	flags.String("data-dir", "", "directory holding the persisted tasks (default "+config.DefaultDataDir()+")")
	flags.String("backend", "", "storage backend: file, sqlite or memory")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-file", "", "log file for the interactive UI (relative to data dir)")

	withSession := func(run func(cmd *cobra.Command, args []string, svc *app.Service) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cfg, logging.New(cmd.ErrOrStderr(), cfg.LogLevel))
			if err != nil {
				return err
			}
			defer sess.Close()
			if sess.status != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", sess.status)
			}
			if err := run(cmd, args, sess.svc); err != nil {
				return err
			}
			if err := sess.svc.PersistErr(); err != nil {
				return fmt.Errorf("save: %w", err)
			}
			return nil
		}
	}

	root.AddCommand(
		newAddCmd(withSession),
		newListCmd(withSession),
		newEditCmd(withSession),
		newDoneCmd(withSession),
		newDeleteCmd(withSession),
		newMoveCmd(withSession),
		newThemeCmd(withSession),
		newExportCmd(withSession),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type session struct {
	st     *store.Store
	svc    *app.Service
	status string
	unlock func() error
	logger *log.Logger
}

func openSession(cfg config.Config, logger *log.Logger) (*session, error) {
	sess := &session{logger: logger}

	if cfg.Backend != store.BackendMemory {
		unlock, err := store.Lock(cfg.DataDir)
		if err != nil {
			if errors.Is(err, store.ErrLocked) {
				return nil, fmt.Errorf("%w (is another todoapp running?)", err)
			}
			return nil, err
		}
		sess.unlock = unlock
	}

	backend, err := store.OpenBackend(cfg.Backend, cfg.DataDir)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	sess.st = store.New(backend)

	svc, status, err := app.Open(sess.st, app.WithLogger(logger), app.WithPrefersDark(prefersDark))
	if err != nil {
		sess.Close()
		return nil, err
	}
	sess.svc = svc
	sess.status = status
	logger.Debug("session opened", "backend", cfg.Backend, "dir", cfg.DataDir)
	return sess, nil
}

func (s *session) Close() {
	if s.st != nil {
		if err := s.st.Close(); err != nil {
			s.logger.Warn("close store", "err", err)
		}
	}
	if s.unlock != nil {
		if err := s.unlock(); err != nil {
			s.logger.Warn("release lock", "err", err)
		}
	}
}

func openLogFile(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
