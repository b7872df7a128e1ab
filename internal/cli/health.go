package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mcoot/arena-auth/internal/factory"
)

// healthChecker is implemented by backends reachable over the network
type healthChecker interface {
	Health(ctx context.Context) (string, error)
}

func newHealthCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := factory.New(ctx, factory.Config{Config: e.cfg, Logger: e.logger})
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			result := HealthResult{Status: "ok"}
			if hc, ok := app.Auth.(healthChecker); ok {
				if result.Status, err = hc.Health(ctx); err != nil {
					return err
				}
			}

			e.out.Print(result)
			return nil
		},
	}
}
