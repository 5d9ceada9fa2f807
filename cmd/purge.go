package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calweather/internal/logging"
	"github.com/teemow/calweather/internal/store"
)

func newPurgeCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired sessions and spent exchange codes",
		Long: `Delete expired or revoked sessions and exchange codes that are expired or
already redeemed from the credential store. A deleted session fails
verification the same way a revoked one does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			envString(cmd, "database-url", "DATABASE_URL", &databaseURL)

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := logging.NewLogger(os.Stderr, "text", false)

			st, err := store.Open(ctx, databaseURL, logger)
			if err != nil {
				return fmt.Errorf("failed to open credential store: %w", err)
			}
			defer st.Close()

			result, err := purge(ctx, st, time.Now(), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d sessions and %d exchange codes\n", result.Sessions, result.ExchangeCodes)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "mcp_sessions.db", "Credential store: sqlite:///path or a file path. Can also use DATABASE_URL env var.")
	return cmd
}

func purge(ctx context.Context, st store.Store, now time.Time, logger *slog.Logger) (store.PurgeResult, error) {
	result, err := st.Purge(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to purge credential store: %w", err)
	}
	logger.Info("Purged credential store",
		logging.Operation("store.purge"),
		"sessions", result.Sessions,
		"exchange_codes", result.ExchangeCodes,
	)
	return result, nil
}

// runPurgeLoop purges the store every interval until ctx is done.
func runPurgeLoop(ctx context.Context, st store.Store, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := purge(ctx, st, now, logger); err != nil {
				logger.Error("Periodic purge failed", logging.Err(err))
			}
		}
	}
}
