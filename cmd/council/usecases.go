package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datacendia/council/internal/api"
	"github.com/datacendia/council/internal/database"
	"github.com/datacendia/council/internal/usecase"
)

var premortemFlags struct {
	context      string
	horizon      string
	participants []string
}

var premortemCmd = &cobra.Command{
	Use:   "premortem <decision>",
	Short: "Imagine a decision has failed and list why",
	Long: `Run a pre-mortem: each participant assumes the decision was taken and
failed, and explains the most plausible reasons. Failure modes are
merged, ranked by likelihood times impact and stored.`,
	Example: `  council premortem "Acquire our largest competitor"
  council premortem --horizon "6 months" --participants cfo,ciso "Move to the cloud"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPreMortem,
}

var ghostboardFlags struct {
	context   string
	directors []string
}

var ghostboardCmd = &cobra.Command{
	Use:   "ghostboard <proposal>",
	Short: "Rehearse the questions a board would ask",
	Long: `Run a ghost board: each director reads the proposal and lists the
hardest questions they would ask, the concern behind each and its
severity.`,
	Example: `  council ghostboard "Raise a Series B at a 40M valuation"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runGhostBoard,
}

func init() {
	pf := premortemCmd.Flags()
	pf.StringVar(&premortemFlags.context, "context", "", "Background for the participants")
	pf.StringVar(&premortemFlags.horizon, "horizon", "", "How far ahead the failure is imagined (default: 12 months)")
	pf.StringSliceVar(&premortemFlags.participants, "participants", nil, "Agent codes to consult")

	gf := ghostboardCmd.Flags()
	gf.StringVar(&ghostboardFlags.context, "context", "", "Background for the directors")
	gf.StringSliceVar(&ghostboardFlags.directors, "directors", nil, "Agent codes sitting on the board")
}

func runPreMortem(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{storage: true}, func(a *app) error {
		ctx := cmd.Context()
		a.probe(ctx)

		res, err := usecase.NewPreMortem(a.gateway, a.registry, a.logger).Run(ctx, usecase.PreMortemInput{
			Decision:     strings.Join(args, " "),
			Context:      premortemFlags.context,
			Horizon:      premortemFlags.horizon,
			Participants: premortemFlags.participants,
		})
		if err != nil {
			return err
		}
		id := a.storeRecord(ctx, api.RecordKindPreMortem, res)

		if a.flags.JSON() {
			return a.formatter(cmd).PrintJSON(map[string]any{"id": id, "result": res})
		}
		printPreMortem(cmd.OutOrStdout(), res)
		return nil
	})
}

func runGhostBoard(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{storage: true}, func(a *app) error {
		ctx := cmd.Context()
		a.probe(ctx)

		res, err := usecase.NewGhostBoard(a.gateway, a.registry, a.logger).Run(ctx, usecase.GhostBoardInput{
			Proposal:  strings.Join(args, " "),
			Context:   ghostboardFlags.context,
			Directors: ghostboardFlags.directors,
		})
		if err != nil {
			return err
		}
		id := a.storeRecord(ctx, api.RecordKindGhostBoard, res)

		if a.flags.JSON() {
			return a.formatter(cmd).PrintJSON(map[string]any{"id": id, "result": res})
		}
		printGhostBoard(cmd.OutOrStdout(), res)
		return nil
	})
}

// storeRecord saves a use-case result. Failures are logged, not returned.
func (a *app) storeRecord(ctx context.Context, kind string, v any) string {
	if a.records == nil {
		return ""
	}
	payload, err := json.Marshal(v)
	if err != nil {
		a.logger.Warn("failed to encode result", "kind", kind, "error", err)
		return ""
	}
	rec := &database.Record{Kind: kind, Payload: payload}
	if err := a.records.Create(ctx, rec); err != nil {
		a.logger.Warn("failed to store result", "kind", kind, "error", err)
		return ""
	}
	return rec.ID
}

func printPreMortem(w io.Writer, res *usecase.PreMortemResult) {
	fmt.Fprintf(w, "%s %s\n", phaseColor.Sprint("Decision:"), res.Decision)
	fmt.Fprintf(w, "%s it is %s later and the decision failed.\n", dimColor.Sprint("Premise:"), res.Horizon)
	for i, fm := range res.FailureModes {
		fmt.Fprintf(w, "\n%d. %s %s\n", i+1, agentColor.Sprint(fm.Title),
			severityColor(fm.Severity()).Sprintf("[L%d x I%d = %d]", fm.Likelihood, fm.Impact, fm.Severity()))
		if fm.Description != "" {
			fmt.Fprintf(w, "   %s\n", fm.Description)
		}
		if fm.Mitigation != "" {
			fmt.Fprintf(w, "   %s %s\n", dimColor.Sprint("Mitigation:"), fm.Mitigation)
		}
	}
	fmt.Fprintf(w, "\n%s %d", phaseColor.Sprint("Risk score:"), res.RiskScore)
	if res.Source == usecase.SourceFallback {
		fmt.Fprint(w, dimColor.Sprint("  (default failure modes, no model answered)"))
	}
	fmt.Fprintln(w)
}

func printGhostBoard(w io.Writer, res *usecase.GhostBoardResult) {
	fmt.Fprintf(w, "%s %s\n", phaseColor.Sprint("Proposal:"), res.Proposal)
	for _, d := range res.Directors {
		fmt.Fprintf(w, "\n%s %s\n", agentColor.Sprint(d.Name), dimColor.Sprintf("(%s)", d.Role))
		for _, q := range d.Questions {
			fmt.Fprintf(w, "  %s %s\n", boardSeverityColor(q.Severity).Sprintf("[%s]", q.Severity), q.Question)
			if q.Concern != "" {
				fmt.Fprintf(w, "         %s\n", dimColor.Sprint(q.Concern))
			}
		}
	}
	fmt.Fprintf(w, "\n%d questions from %d directors\n", res.QuestionCount(), len(res.Directors))
}

func severityColor(score int) *color.Color {
	switch {
	case score >= 15:
		return color.New(color.FgRed, color.Bold)
	case score >= 8:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func boardSeverityColor(s string) *color.Color {
	switch s {
	case "high":
		return color.New(color.FgRed, color.Bold)
	case "medium":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
