package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/config"
)

// GlobalFlags holds global flags available to all commands
type GlobalFlags struct {
	Verbose      bool
	Quiet        bool
	Offline      bool
	OutputFormat string
	ConfigFile   string
	HomeDir      string
}

var globalFlags = &GlobalFlags{}

// RegisterGlobalFlags registers persistent flags on the root command
func RegisterGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&globalFlags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&globalFlags.Offline, "offline", false, "Use the scripted offline backend instead of a model server")
	cmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "text", "Output format (text|json)")
	cmd.PersistentFlags().StringVar(&globalFlags.ConfigFile, "config", "", "Path to config file (default: $COUNCIL_HOME/config.yaml)")
	cmd.PersistentFlags().StringVar(&globalFlags.HomeDir, "home", "", "Council home directory (default: ~/.council)")
}

// ParseGlobalFlags validates global flags
func ParseGlobalFlags() (*GlobalFlags, error) {
	format := internal.OutputFormat(globalFlags.OutputFormat)
	if format != internal.FormatText && format != internal.FormatJSON {
		return nil, internal.NewCLIError(internal.ExitUsage,
			fmt.Sprintf("invalid --output %q, must be text or json", globalFlags.OutputFormat))
	}

	if globalFlags.Verbose && globalFlags.Quiet {
		return nil, internal.NewCLIError(internal.ExitUsage, "--verbose and --quiet cannot be used together")
	}

	return globalFlags, nil
}

// Format returns the selected output format.
func (f *GlobalFlags) Format() internal.OutputFormat {
	return internal.OutputFormat(f.OutputFormat)
}

// JSON reports whether JSON output was requested.
func (f *GlobalFlags) JSON() bool {
	return f.Format() == internal.FormatJSON
}

// Home resolves the home directory: --home, then $COUNCIL_HOME, then ~/.council.
func (f *GlobalFlags) Home() string {
	if f.HomeDir != "" {
		return f.HomeDir
	}
	return config.DefaultHomeDir()
}

// ConfigPath resolves the config file path.
func (f *GlobalFlags) ConfigPath() string {
	if f.ConfigFile != "" {
		return f.ConfigFile
	}
	return config.DefaultConfigPath(f.Home())
}
