package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datacendia/council/internal/agent"
)

var agentsFlags struct {
	noProbe bool
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the advisors and whether their models are loaded",
	Long: `List every agent in the catalog with its model and status.

The backend is probed first so statuses reflect the models it currently
serves. Use --no-probe to list the catalog without contacting it.`,
	Args: cobra.NoArgs,
	RunE: runAgents,
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsFlags.noProbe, "no-probe", false, "Do not contact the model backend")
}

func runAgents(cmd *cobra.Command, args []string) error {
	return withApp(cmd, appOptions{}, func(a *app) error {
		if !agentsFlags.noProbe {
			a.probe(cmd.Context())
		}

		list := a.registry.List()
		if a.flags.JSON() {
			return a.formatter(cmd).PrintJSON(map[string]any{
				"agents": list,
				"counts": a.registry.Counts(),
			})
		}

		rows := make([][]string, 0, len(list))
		for _, ag := range list {
			name := ag.Name
			if ag.Chief {
				name += " *"
			}
			rows = append(rows, []string{ag.ID, ag.Code, name, ag.Role, ag.Model, statusColor(ag.Status).Sprint(ag.Status)})
		}
		if err := a.formatter(cmd).PrintTable([]string{"id", "code", "name", "role", "model", "status"}, rows); err != nil {
			return err
		}

		counts := a.registry.Counts()
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d online, %d offline, %d busy  (* chairs the council)\n",
			counts[agent.StatusOnline], counts[agent.StatusOffline], counts[agent.StatusBusy])
		return nil
	})
}

func statusColor(s agent.Status) *color.Color {
	switch s {
	case agent.StatusOnline:
		return color.New(color.FgGreen)
	case agent.StatusBusy:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}
