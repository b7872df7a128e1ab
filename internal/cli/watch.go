package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd(e *env) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session alive and print session changes",
		Long: `Restore the session and keep it fresh until interrupted.

The session is checked every --interval; an expiring access token is
refreshed and a session revoked elsewhere signs this client out. Sign-ins,
sign-outs and redirects are printed as they happen.

Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			e.out.Print(NewWhoAmIResult(app.Session.Current()))

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					// Refreshes and revocations surface as session events
					if _, err := app.Auth.GetSession(ctx); err != nil && ctx.Err() == nil {
						e.logger.Warn("session check failed", slog.String("error", err.Error()))
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "How often to check the session")

	return cmd
}
