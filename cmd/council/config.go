package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/datacendia/council/cmd/council/internal"
	"github.com/datacendia/council/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage council configuration",
	Long: `The config command provides subcommands for creating, viewing and
validating the council configuration.

Configuration is stored in YAML format at ~/.council/config.yaml by default.
Values may reference environment variables as ${VAR}, and COUNCIL_*
variables (e.g. COUNCIL_LLM_BASE_URL) override the file.`,
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := globalFlags.ConfigPath()
		cfg := config.DefaultConfigFor(globalFlags.Home())
		if err := config.Write(path, cfg, configInitForce); err != nil {
			return err
		}
		return internal.NewFormatter(globalFlags.Format(), cmd.OutOrStdout()).
			PrintSuccess("wrote " + path)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults, the config file and
environment overrides are applied. Output is YAML unless -o json is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(globalFlags)
		if err != nil {
			return err
		}
		return printConfig(cmd, cfg, globalFlags.JSON())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get the value of a configuration key in dot notation:
  council config get llm.base_url
  council config get server.address`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(globalFlags)
		if err != nil {
			return err
		}
		value, err := configValue(cfg, args[0])
		if err != nil {
			return err
		}
		if globalFlags.JSON() {
			return internal.NewJSONFormatter(cmd.OutOrStdout()).PrintJSON(map[string]any{args[0]: value})
		}
		switch v := value.(type) {
		case map[string]any, []any:
			out, err := yaml.Marshal(v)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
		default:
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(globalFlags); err != nil {
			return err
		}
		return internal.NewFormatter(globalFlags.Format(), cmd.OutOrStdout()).
			PrintSuccess("configuration is valid")
	},
}

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configValidateCmd)
}

func printConfig(cmd *cobra.Command, cfg *config.Config, asJSON bool) error {
	if asJSON {
		tree, err := configTree(cfg)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

// configTree renders cfg as nested maps keyed by the YAML names.
func configTree(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to read config tree: %w", err)
	}
	return tree, nil
}

// configValue looks up a dot-separated key in the config tree.
func configValue(cfg *config.Config, key string) (any, error) {
	tree, err := configTree(cfg)
	if err != nil {
		return nil, err
	}

	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, internal.NewCLIError(internal.ExitUsage, fmt.Sprintf("unknown config key %q", key))
		}
		if cur, ok = m[part]; !ok {
			return nil, internal.NewCLIError(internal.ExitUsage, fmt.Sprintf("unknown config key %q", key))
		}
	}
	return cur, nil
}
