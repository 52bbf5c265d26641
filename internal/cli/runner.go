// Package cli is the shoplist command tree. Without a subcommand it opens
// the interactive list; subcommands mirror the interactive actions.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/idilsaglam/shoplist/internal/app"
	"github.com/idilsaglam/shoplist/internal/config"
	"github.com/idilsaglam/shoplist/internal/gateway"
	"github.com/idilsaglam/shoplist/internal/session"
	"github.com/idilsaglam/shoplist/internal/store"
	"github.com/idilsaglam/shoplist/internal/tui"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Options carry everything a run needs; zero fields get defaults.
type Options struct {
	Config *config.Config
	Log    *zap.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	OpenStore func(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.ListStore, error)
	RunTUI    func(ctx context.Context, c tui.Client) error
	Clipboard func(string) error
}

func (o *Options) defaults() {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.OpenStore == nil {
		o.OpenStore = app.OpenStore
	}
	if o.RunTUI == nil {
		o.RunTUI = tui.Run
	}
	if o.Clipboard == nil {
		o.Clipboard = clipboard.WriteAll
	}
}

// usageError marks bad input; it maps to ExitUsage.
type usageError struct {
	msg  string
	hint string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// env is the per-run state shared by subcommands.
type env struct {
	opt    Options
	url    string
	client *app.Client
}

// connect opens the store and starts the client on first use.
func (e *env) connect(ctx context.Context) (*app.Client, error) {
	if e.client != nil {
		return e.client, nil
	}
	st, err := e.opt.OpenStore(ctx, e.opt.Config, e.opt.Log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	c := app.New(e.opt.Config, e.opt.Log, st)
	if err := c.Start(ctx, e.url); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	e.client = c
	return c, nil
}

func (e *env) close() {
	if e.client == nil {
		return
	}
	if err := e.client.Close(context.Background()); err != nil {
		e.opt.Log.Warn("close client", zap.Error(err))
	}
	e.client = nil
}

// Run executes args and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, opt Options) int {
	opt.defaults()
	e := &env{opt: opt}
	defer e.close()

	root := newRoot(e)
	root.SetArgs(args)
	root.SetIn(opt.Stdin)
	root.SetOut(opt.Stdout)
	root.SetErr(opt.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	ui.Fail(opt.Stderr, err.Error())
	code := exitCode(err)
	var ue *usageError
	if errors.As(err, &ue) && ue.hint != "" {
		ui.Hint(opt.Stderr, ue.hint)
	}
	opt.Log.Debug("command failed", zap.Strings("args", args), zap.Int("exit", code), zap.Error(err))
	return code
}

func exitCode(err error) int {
	var ue *usageError
	switch {
	case errors.As(err, &ue),
		errors.Is(err, gateway.ErrEmptyName),
		errors.Is(err, gateway.ErrInvalidQuantity),
		errors.Is(err, gateway.ErrNoSession),
		errors.Is(err, session.ErrEmptyCode),
		errors.Is(err, session.ErrLeaveDeclined):
		return ExitUsage
	default:
		return ExitError
	}
}

func newRoot(e *env) *cobra.Command {
	var (
		theme   string
		noColor bool
		color   bool
	)
	root := &cobra.Command{
		Use:   "shoplist",
		Short: "A shared shopping list",
		Long: `shoplist - a shopping list shared by everyone who has its code.

Run without a subcommand to open the interactive list.`,
		Example: `  shoplist guest
  shoplist create
  shoplist add Milk --category dairy
  shoplist ls --group
  shoplist toggle 2
  shoplist --url "https://shoplist.app/?list=54321"`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &usageError{msg: "unknown subcommand: " + args[0], hint: "run `shoplist --help` for the list of subcommands"}
			}
			return nil
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.SetTheme(theme)
			ui.SetColorForcing(color, noColor)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			return e.opt.RunTUI(cmd.Context(), c)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error(), hint: "run `" + cmd.CommandPath() + " --help`"}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&e.url, "url", "", "share URL to open; its list code becomes active")
	pf.StringVar(&theme, "theme", "classic", "output theme: classic, fresh or mono")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&color, "color", false, "force colored output")

	root.AddCommand(
		listCommands(e)...,
	)
	root.AddCommand(
		sessionCommands(e)...,
	)
	root.AddCommand(
		authCommands(e)...,
	)
	return root
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usagef("usage: %s", cmd.UseLine())
		}
		return nil
	}
}
