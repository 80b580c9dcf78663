package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse stored deliberations",
}

var sessionsListLimit int

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent deliberations, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionsListLimit < 1 || sessionsListLimit > 1000 {
			return internal.NewCLIError(internal.ExitUsage, "--limit must be between 1 and 1000")
		}
		return withApp(cmd, appOptions{storage: true}, func(a *app) error {
			list, err := a.sessions.List(cmd.Context(), sessionsListLimit)
			if err != nil {
				return err
			}
			if a.flags.JSON() {
				return a.formatter(cmd).PrintJSON(map[string]any{"deliberations": list})
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No deliberations stored yet.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, s := range list {
				rows = append(rows, []string{
					s.ID.String(),
					s.CreatedAt.Local().Format("2006-01-02 15:04"),
					strconv.Itoa(s.Confidence) + "%",
					strconv.Itoa(s.Agents),
					truncate(s.Question, 60),
				})
			}
			return a.formatter(cmd).PrintTable([]string{"id", "created", "confidence", "agents", "question"}, rows)
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored deliberation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseID(args[0])
		if err != nil {
			return internal.WrapError(internal.ExitUsage, "invalid session id", err)
		}
		return withApp(cmd, appOptions{storage: true}, func(a *app) error {
			s, err := a.sessions.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.flags.JSON() {
				return a.formatter(cmd).PrintJSON(s)
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

func init() {
	sessionsListCmd.Flags().IntVarP(&sessionsListLimit, "limit", "n", 20, "Number of deliberations to list")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
