package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cartolapse/internal/catalog"
	"cartolapse/internal/fileutil"
	"cartolapse/internal/textutil"
)

const lastErrorWidth = 60

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var session string
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show acquisition progress recorded in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			path := cfg.CatalogPath()
			if !fileutil.Exists(path) {
				fmt.Fprintf(out, "No catalog yet at %s; run cartolapse to start one\n", path)
				return nil
			}
			store, err := catalog.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if session = strings.TrimSpace(session); session != "" {
				sessions = []string{session}
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "Catalog is empty")
			}

			for i, name := range sessions {
				if i > 0 {
					fmt.Fprintln(out)
				}
				title := textutil.DisplayName(name)
				if title == "" {
					title = name
				}
				for _, line := range renderSectionHeader(title, colorize) {
					fmt.Fprintln(out, line)
				}
				counts, err := store.Count(cmd.Context(), name)
				if err != nil {
					return err
				}
				for _, line := range countLines(counts, colorize) {
					fmt.Fprintln(out, line)
				}

				entries, err := store.List(cmd.Context(), name)
				if err != nil {
					return err
				}
				if rows := entryRows(entries, all); len(rows) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(entryColumns(), rows, colorize))
				}
			}

			run, err := store.LastRun(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, runLine(run, colorize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Only show this session")
	cmd.Flags().BoolVar(&all, "all", false, "List acquired checkpoints too")
	return cmd
}

func entryColumns() []column {
	return []column{
		{header: "Checkpoint"},
		{header: "Captured"},
		{header: "Status"},
		{header: "Attempts", align: alignRight},
		{header: "Last error", maxWidth: lastErrorWidth},
	}
}

// entryRows lists the checkpoints that still need attention, or every
// checkpoint when all is set.
func entryRows(entries []catalog.Entry, all bool) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		if !all && e.Status == catalog.StatusAcquired {
			continue
		}
		rows = append(rows, []string{
			e.ImageName,
			e.CapturedAt.Local().Format("2006-01-02 15:04"),
			string(e.Status),
			strconv.Itoa(e.Attempts),
			e.LastError,
		})
	}
	return rows
}
