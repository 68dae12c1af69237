package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/callsheet/internal/model"
	"github.com/alfredjeanlab/callsheet/internal/sheet"
)

// parseColumns turns "A,B,Q" into 0-based column indices.
func parseColumns(list string) ([]int, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var cols []int
	for _, name := range strings.Split(list, ",") {
		name = strings.ToUpper(strings.TrimSpace(name))
		c, err := sheet.ParseColumn(name)
		if err != nil {
			return nil, fmt.Errorf("bad column %q: %w", name, err)
		}
		cols = append(cols, c)
	}
	return cols, nil
}

var tableCmd = &cobra.Command{
	Use:     "table",
	Short:   "Print the sheet as the service sees it",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		colSpec, _ := cmd.Flags().GetString("columns")
		limit, _ := cmd.Flags().GetInt("limit")
		cols, err := parseColumns(colSpec)
		if err != nil {
			return err
		}

		tbl, err := csClient.Snapshot(context.Background())
		if err != nil {
			return fmt.Errorf("fetching sheet: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), tbl)
		}
		printTable(cmd.OutOrStdout(), tbl, cols, limit)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show progress counts for the sheet",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := csClient.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("fetching stats: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		printStats(cmd.OutOrStdout(), st)
		return nil
	},
}

var rosterCmd = &cobra.Command{
	Use:     "roster",
	Short:   "List callers the service has seen this shift",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stale, _ := cmd.Flags().GetDuration("stale")
		entries, err := csClient.Roster(context.Background(), stale)
		if err != nil {
			return fmt.Errorf("fetching roster: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), entries)
		}
		printRoster(cmd.OutOrStdout(), entries)
		return nil
	},
}

var sheetsCmd = &cobra.Command{
	Use:     "sheets",
	Short:   "List the sheets of the backing document",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sheets, err := csClient.Sheets(context.Background())
		if err != nil {
			return fmt.Errorf("listing sheets: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), sheets)
		}
		printSheets(cmd.OutOrStdout(), sheets)
		return nil
	},
}

var journalCmd = &cobra.Command{
	Use:     "journal",
	Short:   "Show recent claim and submit events",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")
		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")
		if mine, _ := cmd.Flags().GetBool("mine"); mine {
			if err := requireUser(); err != nil {
				return err
			}
			actor = user
		}

		evs, err := csClient.Journal(context.Background(), model.EventFilter{
			Actor: actor,
			Kind:  model.EventKind(kind),
			Limit: limit,
		})
		if err != nil {
			return fmt.Errorf("fetching journal: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), evs)
		}
		printJournal(cmd.OutOrStdout(), evs)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the callsheet service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := csClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Health: %s\n", status)
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	tableCmd.Flags().String("columns", "", "comma-separated column letters to show (default all)")
	tableCmd.Flags().Int("limit", 0, "maximum data rows to print (0 = all)")
	rosterCmd.Flags().Duration("stale", 0, "hide callers quiet for longer than this (0 = show all)")
	journalCmd.Flags().String("actor", "", "only events by this caller")
	journalCmd.Flags().Bool("mine", false, "only your own events")
	journalCmd.Flags().String("kind", "", "only events of this kind (claimed, resumed, race_lost, submitted, released, write_failed)")
	journalCmd.Flags().Int("limit", 50, "maximum events to return")
}
