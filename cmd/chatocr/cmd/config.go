package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/chatocr/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chatocr configuration",
	Long: `Create, inspect and check chatocr configuration files.

Settings are merged from defaults, the config file, CHATOCR_* environment
variables and command-line flags, in increasing priority.`,
	// The config subcommands must work while the configuration is broken.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		def := config.DefaultConfig()
		setupLogging(&def, cmd.ErrOrStderr())
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a config file holding the defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			filename = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(filename); err == nil && !force {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", filename)
		}
		if err := config.GenerateDefaultConfigFile(filename); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", filename)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, cfg, err := loadConfigForInspection(false)
		if err != nil {
			return err
		}
		loader.PrintConfigInfo(cmd.ErrOrStderr())

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode configuration: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, _, err := loadConfigForInspection(true)
		if err != nil {
			return err
		}
		used := loader.GetConfigFileUsed()
		if used == "" {
			used = "defaults only"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%s)\n", used)
		return nil
	},
}

// loadConfigForInspection loads from --config or the search paths.
func loadConfigForInspection(validate bool) (*config.Loader, *config.Config, error) {
	loader := config.NewLoaderWithViper(newViper())

	var (
		cfg *config.Config
		err error
	)
	switch {
	case cfgFile != "" && validate:
		cfg, err = loader.LoadWithFile(cfgFile)
	case cfgFile != "":
		cfg, err = loader.LoadWithFileWithoutValidation(cfgFile)
	case validate:
		cfg, err = loader.Load()
	default:
		cfg, err = loader.LoadWithoutValidation()
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg == nil {
		return nil, nil, errors.New("no configuration loaded")
	}
	return loader, cfg, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
