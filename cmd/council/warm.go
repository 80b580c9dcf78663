package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/monitor"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Load every online agent's model into backend memory",
	Long: `Send a one-token generation to each distinct model bound to an online
agent so the first deliberation does not pay the model load time.
Models are warmed one at a time.`,
	Args: cobra.NoArgs,
	RunE: runWarm,
}

func runWarm(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(a *app) error {
		ctx := cmd.Context()
		if res := a.probe(ctx); !res.Available {
			return internal.NewCLIError(internal.ExitUnavailable, "model backend unavailable: "+res.Error)
		}

		out := cmd.OutOrStdout()
		var progress func(monitor.WarmProgress)
		if !a.flags.JSON() && !a.flags.Quiet {
			progress = func(p monitor.WarmProgress) {
				if !p.Done {
					fmt.Fprintf(out, "[%d/%d] loading %s...\n", p.Index+1, p.Total, p.Model)
				}
			}
		}

		results := a.monitor.PreWarm(ctx, progress)
		if a.flags.JSON() {
			return a.formatter(cmd).PrintJSON(map[string]any{"results": results})
		}

		f := a.formatter(cmd)
		failed := 0
		for _, r := range results {
			if r.OK() {
				_ = f.PrintSuccess(fmt.Sprintf("%s loaded in %s", r.Model, r.Duration.Round(time.Millisecond)))
			} else {
				failed++
				_ = f.PrintError(fmt.Sprintf("%s: %s", r.Model, r.Error))
			}
		}
		if failed > 0 {
			return internal.NewCLIError(internal.ExitError, fmt.Sprintf("%d of %d models failed to load", failed, len(results)))
		}
		return nil
	})
}
