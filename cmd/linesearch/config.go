package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"linesearch/internal/config"
)

var (
	configInitPath  string
	configInitForce bool
	configFormat    string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage linesearch configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write the default configuration as TOML.

Examples:
  linesearch config init
  linesearch config init --path /etc/linesearch/config.toml --force`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Print the configuration after defaults, the config file and
LINESEARCH_* environment overrides are applied.

Examples:
  linesearch config show
  linesearch config show --format json`,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "config.toml", "Where to write the file")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing file")
	configShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format (toml, json, yaml)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitPath); err == nil && !configInitForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configInitPath)
	}
	if err := config.DefaultConfig().Save(configInitPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configInitPath)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}

	var data []byte
	switch configFormat {
	case "toml":
		fmt.Fprintf(out, "# source: %s\n", source)
		data, err = toml.Marshal(cfg.Tree())
	case "json":
		data, err = json.MarshalIndent(cfg.Tree(), "", "  ")
		data = append(data, '\n')
	case "yaml":
		fmt.Fprintf(out, "# source: %s\n", source)
		data, err = yaml.Marshal(cfg.Tree())
	default:
		return fmt.Errorf("unsupported format %q (toml, json, yaml)", configFormat)
	}
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	if err == nil {
		err = cfg.Validate()
	}
	return err
}
