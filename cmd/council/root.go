package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Council - multi-agent deliberation over local models",
	Long: `Council puts a question to a board of AI advisors, each backed by its
own local model. The advisors analyse the question independently,
challenge each other's reasoning, and the chair synthesises a
recommendation with a confidence score.

Run 'council serve' to expose the HTTP API, or use the subcommands
directly from the terminal.`,
	PersistentPreRunE: preRun,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// preRun validates the global flags before any command runs.
func preRun(cmd *cobra.Command, args []string) error {
	_, err := ParseGlobalFlags()
	return err
}

func init() {
	RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deliberateCmd)
	rootCmd.AddCommand(premortemCmd)
	rootCmd.AddCommand(ghostboardCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(warmCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(completionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if globalFlags.JSON() {
			return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(version.Info())
		}
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return nil
	},
}

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for council.

Bash:

  $ source <(council completion bash)

Zsh:

  $ council completion zsh > "${fpath[1]}/_council"

Fish:

  $ council completion fish | source

PowerShell:

  PS> council completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(out)
		case "zsh":
			return cmd.Root().GenZshCompletion(out)
		case "fish":
			return cmd.Root().GenFishCompletion(out, true)
		default:
			return cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
