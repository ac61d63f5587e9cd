package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridian-labs/newsvault/internal/core/services"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh cycle against the latest snapshot",
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	replica, err := a.openReplica(ctx)
	if err != nil {
		return err
	}

	cache := services.NewQueryCache(replica, a.state)
	defer cache.Close()

	refresher := services.NewRefresher(a.store, a.cfg.Storage.Prefix, cache, a.state, a.refreshConfig())
	if err := refresher.RunOnce(ctx); err != nil {
		return err
	}

	result := refresher.LastResult()
	if len(result.Merged) == 0 {
		cmd.Println("Nothing to refresh.")
		return nil
	}
	cmd.Printf("Merged %s (%d rows)\n", strings.Join(result.Merged, ", "), result.RowCount)
	if len(result.Skipped) > 0 {
		cmd.Printf("Skipped: %s (will retry next cycle)\n", strings.Join(result.Skipped, ", "))
	}
	return nil
}
