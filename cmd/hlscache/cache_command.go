package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hlscache/internal/eviction"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Run one eviction pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, components, err := ctx.components("cli-clean")
			if err != nil {
				return err
			}
			report, err := components.Controller.Clean(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderCleanReport(out, report))
			fmt.Fprintf(out, "\nEvicted %s entries in %s (%s failures)\n",
				formatCount(report.Evicted()),
				report.Duration.Round(time.Millisecond),
				formatCount(report.Failures()),
			)
			return nil
		},
	}
}

func renderCleanReport(out io.Writer, report eviction.Report) string {
	rows := make([][]string, 0, len(report.Namespaces))
	for _, ns := range report.Namespaces {
		note := ns.Skipped
		if note == "" {
			note = "-"
		}
		rows = append(rows, []string{
			ns.Name,
			formatCount(ns.AgeEvicted),
			formatCount(ns.CapacityEvicted),
			formatCount(ns.Failures),
			humanBytes(ns.UsageBefore),
			humanBytes(ns.UsageAfter),
			note,
		})
	}
	return renderTable(out,
		[]string{"Namespace", "Aged out", "Over capacity", "Failures", "Before", "After", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	) + "\n"
}

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect cache usage",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-namespace usage against configured thresholds",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, components, err := ctx.components("cli-cache")
			if err != nil {
				return err
			}
			stats := components.Controller.Stats(cmd.Context())
			out := cmd.OutOrStdout()

			rows := make([][]string, 0, len(stats))
			var problems []string
			for _, ns := range stats {
				over := ""
				if ns.OverThreshold() {
					over = " !"
				}
				rows = append(rows, []string{
					ns.Name,
					formatCount(ns.Records),
					humanBytes(ns.UsageBytes),
					humanBytes(ns.CapacityBytes),
					fmt.Sprintf("%.1f%%%s", ns.UsagePercent(), over),
					fmt.Sprintf("%d%%", ns.ThresholdPercent),
					formatStamp(ns.Oldest),
					humanBytes(int64(ns.FSFreeBytes)),
				})
				if ns.Err != nil {
					problems = append(problems, fmt.Sprintf("%s (%s): %v", ns.Name, ns.Root, ns.Err))
				}
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Namespace", "Records", "Usage", "Capacity", "Used", "Threshold", "Oldest touch", "Disk free"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight},
			))
			if len(problems) > 0 {
				fmt.Fprintln(out, "Problems:")
				fmt.Fprintln(out, "  "+strings.Join(problems, "\n  "))
			}
			return nil
		},
	}
}
