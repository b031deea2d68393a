package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/app"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "kmatch",
	Short: "kmatch — recognised-sponsor dataset builder and matcher",
	Long:  "Fetches the public register of recognised sponsors, detects changes,\npublishes dataset artifacts and answers sponsor-name queries against them.",
}

// newApp loads configuration and wires the application container.
// The caller owns the result and must Close it.
func newApp() (*app.App, error) {
	cfg, err := app.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		if isDBLockError(err) {
			return nil, fmt.Errorf("%s", lockGuidance(cfg.Store.Path))
		}
		return nil, err
	}
	return a, nil
}

// loadConfig is for commands that need settings but no state store.
func loadConfig() (*app.Config, error) {
	return app.LoadConfig(cfgPath)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file (default ./config.yml)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(wipeCmd)
}
