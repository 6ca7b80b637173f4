package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	metricsCmd := &cobra.Command{Use: "metrics", Short: "Local API usage metrics"}

	var days int
	usageCmd := &cobra.Command{
		Use:         "usage",
		Short:       "Daily API usage",
		Args:        cobra.NoArgs,
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := application.Usage(ctxOf(cmd), days)
			if err != nil {
				return err
			}
			return output(usage, func() {
				if len(usage) == 0 {
					fmt.Println("No calls recorded.")
					return
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "DATE\tCALLS\tERRORS\tAVG LATENCY")
				for _, d := range usage {
					fmt.Fprintf(w, "%s\t%d\t%d\t%.0f ms\n", d.Date, d.Calls, d.Errors, d.AvgLatencyMS)
				}
				w.Flush()
			})
		},
	}
	usageCmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days")
	metricsCmd.AddCommand(usageCmd)

	var keep int
	cleanupCmd := &cobra.Command{
		Use:         "cleanup",
		Short:       "Remove old metric records",
		Args:        cobra.NoArgs,
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			affected, err := application.CleanupMetrics(ctxOf(cmd), keep)
			if err != nil {
				return err
			}
			fmt.Printf("Successfully removed %d old metric records.\n", affected)
			return nil
		},
	}
	cleanupCmd.Flags().IntVar(&keep, "days", 0, "Keep records for the last N days (default RECIPE_METRICS_RETENTION_DAYS)")
	metricsCmd.AddCommand(cleanupCmd)

	metricsCmd.AddCommand(&cobra.Command{
		Use:         "health",
		Short:       "Process and data directory health",
		Args:        cobra.NoArgs,
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := application.Health()
			return output(h, func() { fmt.Println(h) })
		},
	})

	rootCmd.AddCommand(metricsCmd)
}
