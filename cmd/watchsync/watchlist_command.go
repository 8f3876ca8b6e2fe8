package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"watchsync/internal/api"
	"watchsync/internal/store"
)

func newWatchlistCommand(ctx *commandContext) *cobra.Command {
	var userName string

	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Show stored users and their watchlist items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				name := strings.TrimSpace(userName)
				if name == "" {
					return listUsers(cmd, ctx, st)
				}
				return showUser(cmd, ctx, st, name)
			})
		},
	}

	cmd.Flags().StringVarP(&userName, "user", "u", "", "Show items stored for this username")
	cmd.AddCommand(newGenresCommand(ctx))
	return cmd
}

func listUsers(cmd *cobra.Command, ctx *commandContext, st *store.Store) error {
	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		resp := api.UserListResponse{Users: make([]api.User, 0, len(users))}
		for _, user := range users {
			resp.Users = append(resp.Users, api.FromUserSummary(user))
		}
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users stored yet; run `watchsync sync` first")
		return nil
	}
	rows := make([][]string, 0, len(users))
	for _, user := range users {
		rows = append(rows, []string{
			strconv.FormatInt(user.ID, 10),
			user.Name,
			user.Email,
			strconv.Itoa(user.ItemCount),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "Email", "Items"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
		!isTerminal(out),
	))
	return nil
}

func showUser(cmd *cobra.Command, ctx *commandContext, st *store.Store, name string) error {
	user, err := st.GetUserByName(cmd.Context(), name)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("user %q not found", name)
	}
	items, err := st.GetAllWatchlistItemsForUser(cmd.Context(), user.ID)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.UserDetailResponse{
			User:  api.FromUserSummary(store.UserSummary{User: *user, ItemCount: len(items)}),
			Items: api.FromStoredItems(items),
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d items)\n", user.Name, len(items))
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{item.Title, item.Type, strings.Join(item.Genres, ", "), item.Key})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Title", "Type", "Genres", "Key"},
		rows,
		nil,
		!isTerminal(out),
	))
	return nil
}

func newGenresCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "genres",
		Short: "List genres collected from stored watchlist items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				genres, err := st.ListGenres(cmd.Context())
				if err != nil {
					return err
				}
				names := make([]string, 0, len(genres))
				for _, genre := range genres {
					names = append(names, genre.Name)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, names)
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}
