package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hlscache/internal/recordstore"
)

func newStoreCommand(ctx *commandContext) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the cache record store",
	}
	storeCmd.AddCommand(newStoreInitCommand(ctx))
	storeCmd.AddCommand(newStoreListCommand(ctx))
	return storeCmd
}

func newStoreInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Enable write-ahead logging and create namespace tables",
		Long: "Initialize the record store once, before request handlers start. " +
			"Running it while servers are handling requests can contend for the database lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, components, err := ctx.components("cli-store")
			if err != nil {
				return err
			}
			if err := components.Store.Init(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record store initialized at %s\n", components.Store.Path())
			return nil
		},
	}
}

func newStoreListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <namespace>",
		Short: "List records oldest first",
		Long: fmt.Sprintf("List cache records in a namespace, least recently touched first. "+
			"Built-in namespaces are %q and %q.", recordstore.NamespaceSegments, recordstore.NamespaceInputs),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, components, err := ctx.components("cli-store")
			if err != nil {
				return err
			}
			records, err := components.Store.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(out, "No records in %s\n", args[0])
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					record.Key,
					formatStamp(record.LastTouched),
					formatAge(record.LastTouched, now),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Key", "Last touched", "Age"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%s records\n", formatCount(len(records)))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")
	return cmd
}
