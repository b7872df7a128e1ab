package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/arena-auth/internal/config"
	"github.com/mcoot/arena-auth/internal/dependencies/navigate"
	"github.com/mcoot/arena-auth/internal/dependencies/notify"
	"github.com/mcoot/arena-auth/internal/factory"
)

// env is the state shared by the subcommands of one invocation
type env struct {
	flags  *Flags
	cfg    config.Config
	logger *slog.Logger
	out    *Output
	errOut io.Writer
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	e := &env{flags: DefaultFlags()}

	rootCmd := &cobra.Command{
		Use:   "arena",
		Short: "Sign in to the arena from the terminal",
		Long: `arena signs in to the arena backend, keeps the session between runs and
shows who is signed in.

Settings come from ARENA_* environment variables (optionally loaded from a
.env file); the flags below override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, level, err := e.flags.Resolve()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.errOut = cmd.ErrOrStderr()
			e.logger = slog.New(slog.NewTextHandler(e.errOut, &slog.HandlerOptions{Level: level}))
			e.out = NewOutput(e.flags.Output, cmd.OutOrStdout(), e.errOut)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	f := e.flags
	rootCmd.PersistentFlags().StringVar(&f.BackendURL, "backend-url", f.BackendURL, "Backend URL (env: ARENA_SUPABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&f.AnonKey, "anon-key", f.AnonKey, "Public API key (env: ARENA_SUPABASE_ANON_KEY)")
	rootCmd.PersistentFlags().StringVar(&f.State, "state", f.State, "Session store: memory, file, redis (env: ARENA_STATE)")
	rootCmd.PersistentFlags().StringVar(&f.StateDir, "state-dir", f.StateDir, "Directory for file state (env: ARENA_STATE_DIR)")
	rootCmd.PersistentFlags().StringVar(&f.EnvFile, "env-file", f.EnvFile, "Dotenv file to load, empty to skip")
	rootCmd.PersistentFlags().StringVarP(&f.Output, "output", "o", f.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&f.Verbose, "verbose", "v", f.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newSignInCmd(e))
	rootCmd.AddCommand(newSignUpCmd(e))
	rootCmd.AddCommand(newLogoutCmd(e))
	rootCmd.AddCommand(newWhoAmICmd(e))
	rootCmd.AddCommand(newWatchCmd(e))
	rootCmd.AddCommand(newHealthCmd(e))

	return rootCmd
}

// open wires the application and restores the session. Callers close the app.
func (e *env) open(ctx context.Context) (*factory.App, error) {
	app, err := factory.New(ctx, factory.Config{
		Config:    e.cfg,
		Logger:    e.logger,
		Notifier:  notify.Multi{notify.NewWriterNotifier(e.errOut), notify.NewLogNotifier(e.logger)},
		Navigator: navigate.NewHistory(e.errOut),
	})
	if err != nil {
		return nil, err
	}
	if err := app.Session.Initialize(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// Run executes the command line and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		format, _ := cmd.PersistentFlags().GetString("output")
		NewOutput(format, stdout, stderr).PrintError(err)
		return 1
	}
	return 0
}

// Execute runs the root command
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
