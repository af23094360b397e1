package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"lattice-agent/internal/app"

	"github.com/spf13/cobra"
)

// SpoolStats is the output of spool stats.
type SpoolStats struct {
	Type    string       `json:"type"`
	Pending int          `json:"pending"`
	Oldest  []SpoolEntry `json:"oldest"`
}

// SpoolEntry summarizes one spooled batch.
type SpoolEntry struct {
	ID        string `json:"id"`
	Encoding  string `json:"encoding"`
	Bytes     int    `json:"bytes"`
	CreatedAt string `json:"created_at"`
}

// NewSpoolCommand creates the spool command group.
func NewSpoolCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spool",
		Short: "Inspect undelivered batches",
	}

	var limit int
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the number of spooled batches and the oldest entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			sp, err := app.OpenSpool(cfg, logger)
			if err != nil {
				return err
			}
			defer sp.Close()

			ctx := cmd.Context()
			count, err := sp.Count(ctx)
			if err != nil {
				return fmt.Errorf("failed to count spool: %w", err)
			}
			entries, err := sp.Oldest(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list spool: %w", err)
			}

			out := SpoolStats{Type: cfg.Spool.Type, Pending: count, Oldest: []SpoolEntry{}}
			for _, e := range entries {
				out.Oldest = append(out.Oldest, SpoolEntry{
					ID:        e.ID,
					Encoding:  e.Encoding,
					Bytes:     len(e.Data),
					CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
				})
			}

			if rootOpts.LogFormat == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s spool: %d pending\n", out.Type, out.Pending)
			if len(out.Oldest) > 0 {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tENCODING\tBYTES\tCREATED")
				for _, e := range out.Oldest {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.Encoding, e.Bytes, e.CreatedAt)
				}
				tw.Flush()
			}
			return nil
		},
	}
	stats.Flags().IntVar(&limit, "limit", 5, "number of oldest entries to show")
	cmd.AddCommand(stats)
	return cmd
}
