package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/caresched/config"
	"github.com/kilianp07/caresched/core/runlog"
)

var runsQuery runlog.Query

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded scheduling runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := runlog.Open(cfg.RunLog)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		recs, err := store.Query(context.Background(), runsQuery)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tRUN\tENGINE\tSTATUS\tCONSULTATIONS\tDURATION_MS")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
				r.Timestamp.Format("2006-01-02 15:04:05"), r.RunID, r.Engine, r.Status, r.Consultations, r.DurationMS)
		}
		return tw.Flush()
	},
}

func init() {
	f := runsCmd.Flags()
	f.StringVar(&runsQuery.Status, "status", "", "filter by status (optimal, feasible, infeasible, unknown)")
	f.StringVar(&runsQuery.ClientID, "client", "", "filter by scheduled client id")
	f.IntVar(&runsQuery.Limit, "limit", 0, "keep only the most recent runs")
	rootCmd.AddCommand(runsCmd)
}
