package main

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"tiltd/pkg/config"
)

func newConfigCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or inspect the tiltd config file",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "TOML config file")

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file filled with defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, exists, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			if exists && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "[Config] %s already exists; use --force to rewrite it\n", configPath)
				return nil
			}
			if force {
				cfg = config.Default()
			}
			if err := cfg.Save(configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[Config] Wrote %s\n", configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file with defaults")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.LoadOrDefault(configPath)
			if err != nil {
				return err
			}
			data, err := toml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}
