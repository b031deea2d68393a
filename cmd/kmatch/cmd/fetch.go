package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/adapters/registry"
	"github.com/kakiii/kmatch/internal/app"
)

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the live register and save the raw page",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Write the raw page here (default: dated file in exports dir)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)

	client := registry.NewClient(registry.Config{
		URL:         cfg.Registry.URL,
		Timeout:     cfg.Registry.Timeout,
		Retries:     cfg.Registry.Retries,
		RetryDelay:  cfg.Registry.RetryDelay,
		MinInterval: cfg.Registry.MinInterval,
		Logger:      log,
	})

	rows, raw, err := client.Rows(cmd.Context())
	if err != nil {
		return err
	}

	out := fetchOut
	if out == "" {
		if err := os.MkdirAll(cfg.Exports.Dir, 0o755); err != nil {
			return fmt.Errorf("create exports dir: %w", err)
		}
		out = filepath.Join(cfg.Exports.Dir, "register-"+time.Now().Format("2006-01-02")+".html")
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return fmt.Errorf("save page: %w", err)
	}

	fmt.Printf("⚡ %d sponsor rows │ saved %s\n", len(rows), out)
	return nil
}
