package cli

import (
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [version]",
	Short: "Restore a snapshot and report its contents",
	Long: `Fetches the snapshot named by the latest pointer (or the given
version), verifies its checksum and loads it into a fresh replica.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}

	version := ""
	if len(args) > 0 {
		version = args[0]
	}

	replica, meta, err := a.engine.RestoreVersion(ctx, version)
	if err != nil {
		return err
	}
	defer replica.Close()

	rows, err := replica.RowCount(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Restored snapshot %s: %d rows, created %s\n",
		meta.Version, rows, meta.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}
