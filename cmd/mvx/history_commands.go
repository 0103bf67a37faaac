package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mvx/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				records, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					if records == nil {
						records = []history.Record{}
					}
					return writeJSON(cmd, records)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No conversions recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "When", "Status", "Strategy", "Source", "Destination", "Size", "Detail"},
					historyRows(records),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				))
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, formatStats(stats))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit records as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every history record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistory(ctx, func(store *history.Store) error {
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history records\n", removed)
				return nil
			})
		},
	})
	return cmd
}

func withHistory(ctx *commandContext, fn func(*history.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func historyRows(records []history.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		size := ""
		if r.Bytes > 0 {
			size = humanize.Bytes(uint64(r.Bytes))
		}
		detail := r.Warning
		if r.Error != "" {
			detail = r.ErrorKind + ": " + r.Error
		} else if r.BackupPath != "" {
			detail = "backup " + r.BackupPath
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.ID),
			humanize.Time(r.StartedAt),
			string(r.Status),
			r.Strategy,
			r.Source,
			r.Destination,
			size,
			detail,
		})
	}
	return rows
}

func formatStats(stats map[history.Status]int) string {
	keys := make([]string, 0, len(stats))
	total := 0
	for status, count := range stats {
		keys = append(keys, fmt.Sprintf("%s %d", status, count))
		total += count
	}
	sort.Strings(keys)
	return fmt.Sprintf("%d recorded: %s", total, strings.Join(keys, ", "))
}
