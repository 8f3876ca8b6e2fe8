package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"watchsync/internal/api"
	"watchsync/internal/logging"
	"watchsync/internal/services"
	"watchsync/internal/store"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:       "sync [self|friends|all]",
		Short:     "Fetch watchlists from Plex and reconcile them into the database",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"self", "friends", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "self"
			if len(args) == 1 {
				target = strings.ToLower(strings.TrimSpace(args[0]))
			}
			sources, err := syncTargets(target)
			if err != nil {
				return err
			}

			var results []api.SyncResponse
			if !local {
				results, err = syncViaDaemon(cmd, ctx, sources)
				if err == nil {
					return renderSyncResults(cmd, ctx, results, "daemon")
				}
				if !errors.Is(err, api.ErrDaemonUnavailable) {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "Daemon not reachable; syncing locally")
			}

			results, err = syncLocally(cmd, ctx, sources)
			if err != nil {
				return err
			}
			return renderSyncResults(cmd, ctx, results, "local")
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Run the sync in this process instead of through the daemon")
	return cmd
}

func syncTargets(target string) ([]store.Source, error) {
	if target == "all" {
		return []store.Source{store.SourceSelf, store.SourceFriends}, nil
	}
	source, ok := store.ParseSource(target)
	if !ok {
		return nil, fmt.Errorf("unknown sync target %q (want self, friends, or all)", target)
	}
	return []store.Source{source}, nil
}

func syncViaDaemon(cmd *cobra.Command, ctx *commandContext, sources []store.Source) ([]api.SyncResponse, error) {
	client, err := ctx.client()
	if err != nil {
		return nil, err
	}
	if len(sources) > 1 {
		// "all" asks the daemon which sources it syncs and skips the rest.
		sources, err = daemonSyncSources(cmd, client, sources)
		if err != nil {
			return nil, err
		}
	}
	results := make([]api.SyncResponse, 0, len(sources))
	for _, source := range sources {
		resp, err := client.Sync(cmd.Context(), string(source))
		if err != nil {
			return nil, err
		}
		results = append(results, resp)
	}
	return results, nil
}

func daemonSyncSources(cmd *cobra.Command, client *api.Client, sources []store.Source) ([]store.Source, error) {
	status, err := client.Status(cmd.Context())
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(status.SyncSources))
	for _, source := range status.SyncSources {
		enabled[source] = true
	}
	kept := make([]store.Source, 0, len(sources))
	for _, source := range sources {
		if !enabled[string(source)] {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: sync disabled on the daemon\n", source)
			continue
		}
		kept = append(kept, source)
	}
	return kept, nil
}

func syncLocally(cmd *cobra.Command, ctx *commandContext, sources []store.Source) ([]api.SyncResponse, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := ctx.cliLogger(cmd)
	results := make([]api.SyncResponse, 0, len(sources))
	err = ctx.withStore(func(st *store.Store) error {
		rt := buildRuntime(cfg, st, logger)
		for _, source := range sources {
			// "all" quietly skips friends when friend sync is off.
			if len(sources) > 1 && !rt.syncer.Enabled(source) {
				logger.Info("skipping disabled source", logging.String("source", string(source)))
				continue
			}
			runCtx := services.WithSource(cmd.Context(), string(source))
			resp, err := rt.syncer.Sync(runCtx, source)
			if err != nil {
				return err
			}
			results = append(results, api.FromResponse(resp))
		}
		return nil
	})
	return results, err
}

func renderSyncResults(cmd *cobra.Command, ctx *commandContext, results []api.SyncResponse, mode string) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, results)
	}
	out := cmd.OutOrStdout()
	plain := !isTerminal(out)
	for i, result := range results {
		if i > 0 {
			fmt.Fprintln(out)
		}
		writeSections(out, !plain, statusSection{title: "Sync " + result.Source + " (" + mode + ")"})
		fmt.Fprintf(out, "Users: %d  Items: %d  Inserted: %d  Linked: %d  Removed: %d\n",
			len(result.Users), result.Total, result.Inserted, result.Linked, result.Removed)
		rows := make([][]string, 0, len(result.Users))
		for _, user := range result.Users {
			rows = append(rows, []string{
				user.Username,
				user.WatchlistID,
				strconv.FormatInt(user.UserID, 10),
				strconv.Itoa(len(user.Watchlist)),
			})
		}
		if len(rows) > 0 {
			fmt.Fprintln(out, renderTable(
				[]string{"Username", "Watchlist", "User ID", "Items"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				plain,
			))
		}
		for _, failure := range result.Failures {
			fmt.Fprintln(out, renderStatusLine(failure.Username, statusWarn, failure.Error, !plain))
		}
	}
	return nil
}
