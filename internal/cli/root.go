// Package cli maps the todo command line onto the task service.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/todo-cli/internal/config"
	"github.com/BuzzLyutic/todo-cli/internal/repo"
	"github.com/BuzzLyutic/todo-cli/internal/service"
)

const (
	flagCreate       = "create"
	flagEditTitle    = "edit-title"
	flagMarkComplete = "mark-complete"
	flagDelete       = "delete"
	flagList         = "list"
	flagSearch       = "search"
)

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

type flags struct {
	configFile   string
	create       string
	editTitle    string
	markComplete string
	del          string
	list         string
	search       string
}

type app struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
	flags  flags
}

// operation runs against a ready service and writes its outcome to out.
type operation func(ctx context.Context, svc *service.TaskService) error

// NewRootCommand builds the todo command. Output goes to out, diagnostics to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "todo",
		Short: "TODO List Manager",
		Long: `TODO List Manager

Tasks are kept in tasks.csv in the current directory unless --file,
--driver or a config file (.todo.yaml) says otherwise.`,
		Example: `  todo --create "Buy milk"
  todo --edit-title 1 "Buy oat milk"
  todo --mark-complete 1
  todo --list incomplete
  todo --search "^Buy"`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f := cmd.Flags()
	f.StringVar(&a.flags.create, flagCreate, "", "Create a new task with title")
	f.StringVar(&a.flags.editTitle, flagEditTitle, "", "Edit task title. Provide task ID, then the new title as an argument")
	f.StringVar(&a.flags.markComplete, flagMarkComplete, "", "Mark a task as complete. Provide task ID")
	f.StringVar(&a.flags.del, flagDelete, "", "Delete a task. Provide task ID")
	f.StringVar(&a.flags.list, flagList, "", "List tasks: all, incomplete or complete")
	f.StringVar(&a.flags.search, flagSearch, "", "Search tasks by title (regular expression)")

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.flags.configFile, "config", "", "config file (default .todo.yaml if present)")
	pf.String("file", "", "task store file (default tasks.csv)")
	pf.String("driver", "", "store driver: csv, yaml, toml, sqlite or postgres")
	pf.String("dsn", "", "postgres connection string")
	pf.Duration("lock-timeout", 0, "how long to wait for another todo process (default 5s)")
	pf.String("log-level", "", "log level: debug, info, warn or error (default warn)")

	_ = a.v.BindPFlag(config.KeyPath, pf.Lookup("file"))
	_ = a.v.BindPFlag(config.KeyDriver, pf.Lookup("driver"))
	_ = a.v.BindPFlag(config.KeyDSN, pf.Lookup("dsn"))
	_ = a.v.BindPFlag(config.KeyLockTimeout, pf.Lookup("lock-timeout"))
	_ = a.v.BindPFlag(config.KeyLogLevel, pf.Lookup("log-level"))

	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	op, err := a.pick(cmd, args)
	if err != nil {
		return err
	}
	if op == nil {
		return cmd.Help()
	}

	cfg, err := config.Load(a.v, a.flags.configFile)
	if err != nil {
		return err
	}
	logger, err := config.NewConsoleLogger(cfg.LogLevel, a.errOut)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	backend, err := repo.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	defer closeBackend(logger, backend)
	logger.Debug("store opened", zap.String("driver", cfg.Driver), zap.String("path", cfg.FilePath))

	return op(ctx, service.NewTaskService(backend.Store, backend.Locker, logger))
}

func closeBackend(logger *zap.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("close task store", zap.Error(err))
	}
}

// pick chooses one operation; earlier flags win when several are given.
func (a *app) pick(cmd *cobra.Command, args []string) (operation, error) {
	f := cmd.Flags()
	switch {
	case f.Changed(flagCreate):
		return a.create(a.flags.create), noArgs(flagCreate, args)
	case f.Changed(flagEditTitle):
		if len(args) != 1 {
			return nil, usageErrorf("--%s expects a task id and a new title", flagEditTitle)
		}
		return a.editTitle(a.flags.editTitle, args[0]), nil
	case f.Changed(flagMarkComplete):
		return a.markComplete(a.flags.markComplete), noArgs(flagMarkComplete, args)
	case f.Changed(flagDelete):
		return a.delete(a.flags.del), noArgs(flagDelete, args)
	case f.Changed(flagList):
		filter, err := parseListFilter(a.flags.list)
		if err != nil {
			return nil, err
		}
		return a.listTasks(filter), noArgs(flagList, args)
	case f.Changed(flagSearch):
		return a.searchTasks(a.flags.search), noArgs(flagSearch, args)
	}
	return nil, nil
}

func noArgs(flag string, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unexpected arguments for --%s: %q", flag, args)
	}
	return nil
}

// Execute runs the command line and returns the process exit status:
// 0 on success and for not-found/duplicate feedback, 2 for usage errors,
// 1 for everything else.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := NewRootCommand(out, errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	fmt.Fprintf(errOut, "Error: %v\n", err)
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprint(errOut, cmd.UsageString())
		return 2
	}
	return 1
}
