package main

import (
	"fmt"
	"os"

	"github.com/openmined/syftsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadConfig merges the config file, SYFTSYNC_* env and flags, in increasing priority
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	flags := cmd.Flags()
	v.BindPFlag("project_id", flags.Lookup("project"))
	v.BindPFlag("data_dir", flags.Lookup("datadir"))
	v.BindPFlag("server_url", flags.Lookup("server"))

	configPath, _ := flags.GetString("config")
	cfg, err := config.Load(v, configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveProject returns --project / project_id, or derives it from the working directory
func resolveProject(cfg *config.Config) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return cfg.ResolveProjectID(wd)
}
