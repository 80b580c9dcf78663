package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/council"
	"github.com/datacendia/council/internal/types"
	"github.com/datacendia/council/internal/usecase"
)

var deliberateFlags struct {
	context string
	agents  []string
	quick   bool
	noCross bool
	locale  string
	noSave  bool
}

var deliberateCmd = &cobra.Command{
	Use:   "deliberate <question>",
	Short: "Put a question to the council",
	Long: `Put a question to the council and print the deliberation.

Each selected advisor analyses the question, conflicting advisors
challenge each other, and the chair synthesises a recommendation.
When stdout is a terminal the deliberation is rendered live.`,
	Example: `  council deliberate "Should we open a second warehouse?"
  council deliberate --agents cfo,coo --quick "Raise prices by 5%?"
  council deliberate --offline -o json "Migrate billing to a new vendor?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDeliberate,
}

func init() {
	f := deliberateCmd.Flags()
	f.StringVar(&deliberateFlags.context, "context", "", "Background the advisors should consider")
	f.StringSliceVar(&deliberateFlags.agents, "agents", nil, "Agent ids to consult (default: every online agent)")
	f.BoolVar(&deliberateFlags.quick, "quick", false, "Skip cross-examination for a faster answer")
	f.BoolVar(&deliberateFlags.noCross, "no-cross", false, "Skip cross-examination")
	f.StringVar(&deliberateFlags.locale, "locale", "", "Answer language as a BCP 47 tag (e.g. fr, pt-BR)")
	f.BoolVar(&deliberateFlags.noSave, "no-save", false, "Do not store the session")
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return internal.NewCLIError(internal.ExitUsage, "question is required")
	}

	return withApp(cmd, appOptions{storage: !deliberateFlags.noSave}, func(a *app) error {
		ctx := cmd.Context()
		a.probe(ctx)

		req := council.DeliberationRequest{
			SessionID:            types.NewID(),
			Question:             question,
			Context:              deliberateFlags.context,
			AgentIDs:             deliberateFlags.agents,
			QuickMode:            deliberateFlags.quick,
			SkipCrossExamination: deliberateFlags.noCross,
			Locale:               deliberateFlags.locale,
		}

		out := cmd.OutOrStdout()
		live := !a.flags.JSON() && isTerminal(out)
		obs := council.NoopObserver
		if live {
			obs = newLiveRenderer(out, a.registry)
		}

		res, err := a.councilSession().Run(ctx, req, obs)
		if err != nil {
			return err
		}

		switch {
		case a.flags.JSON():
			return a.formatter(cmd).PrintJSON(res)
		case !live:
			printSession(out, res.Session)
		}
		if res.Source == usecase.SourceFallback {
			fmt.Fprintln(cmd.ErrOrStderr(), failedColor.Sprint("Model backend unavailable: showing persona fallback."))
		} else if a.sessions != nil && !a.flags.Quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), dimColor.Sprintf("Saved as %s", res.Session.ID))
		}
		return nil
	})
}
