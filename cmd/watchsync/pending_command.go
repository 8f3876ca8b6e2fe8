package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"watchsync/internal/api"
	"watchsync/internal/store"
)

func newPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending [self|friends]",
		Short: "List RSS items waiting to be matched by a sync",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source store.Source
			if len(args) == 1 {
				parsed, ok := store.ParseSource(strings.ToLower(strings.TrimSpace(args[0])))
				if !ok {
					return fmt.Errorf("unknown source %q (want self or friends)", args[0])
				}
				source = parsed
			}
			return ctx.withStore(func(st *store.Store) error {
				items, err := st.GetTempRSSItems(cmd.Context(), source)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.PendingListResponse{Items: api.FromTempRSSItems(items)})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No pending items")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						string(item.Source),
						item.Title,
						item.Type,
						item.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Title", "Type", "Seen"},
					rows,
					[]columnAlignment{alignRight},
					!isTerminal(out),
				))
				return nil
			})
		},
	}
}
