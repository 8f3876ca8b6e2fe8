package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"watchsync/internal/services/plex"
	"watchsync/internal/watchlist"
)

func newPlexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plex",
		Short: "Plex account utilities",
	}
	cmd.AddCommand(newPlexPingCommand(ctx))
	return cmd
}

// pingTimeout bounds the whole command when request_timeout is very large.
const pingTimeout = 2 * time.Minute

type tokenCheck struct {
	Watchlist string `json:"watchlistId"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

func newPlexPingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that every configured Plex token is accepted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(cfg.Plex.Tokens) == 0 {
				return errors.New("no plex tokens configured (set plex.tokens)")
			}
			client := plex.NewFromConfig(cfg, ctx.cliLogger(cmd))
			runCtx, stop := context.WithTimeout(cmd.Context(), pingTimeout)
			defer stop()

			checks := make([]tokenCheck, 0, len(cfg.Plex.Tokens))
			invalid := 0
			for i, token := range cfg.Plex.Tokens {
				check := tokenCheck{Watchlist: watchlist.TokenWatchlistID(i)}
				pingCtx, cancel := context.WithTimeout(runCtx, cfg.RequestTimeout())
				ok, err := client.Ping(pingCtx, token)
				cancel()
				if err != nil {
					check.Error = err.Error()
				} else {
					check.Valid = ok
				}
				if !check.Valid {
					invalid++
				}
				checks = append(checks, check)
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				for _, check := range checks {
					switch {
					case check.Error != "":
						fmt.Fprintln(out, renderStatusLine(check.Watchlist, statusError, check.Error, colorize))
					case check.Valid:
						fmt.Fprintln(out, renderStatusLine(check.Watchlist, statusOK, "token accepted", colorize))
					default:
						fmt.Fprintln(out, renderStatusLine(check.Watchlist, statusWarn, "token rejected", colorize))
					}
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d plex tokens failed", invalid, len(checks))
			}
			return nil
		},
	}
}
