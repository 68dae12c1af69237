package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	csync "github.com/alfredjeanlab/callsheet/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:   "export [file.xlsx]",
	Short: "Save the sheet and stats as an xlsx workbook",
	Long: `Export fetches the sheet and its stats from the service and writes them
to a workbook. The default file name carries today's date; "-" writes to stdout.`,
	GroupID: "views",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "callsheet-" + time.Now().Format("20060102") + ".xlsx"
		if len(args) > 0 {
			path = args[0]
		}

		var w io.Writer = cmd.OutOrStdout()
		if path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		if err := csync.ExportXLSX(context.Background(), csClient, w); err != nil {
			if path != "-" {
				os.Remove(path)
			}
			return fmt.Errorf("exporting: %w", err)
		}
		if path != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", path)
		}
		return nil
	},
}
