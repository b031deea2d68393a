package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the exports directory and rebuild on new exports",
	Long:  "Runs until interrupted. Each export that settles in the exports\ndirectory triggers a full pipeline run.",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("⚡ watching %s for register exports\n", a.Config.Exports.Dir)
	if err := a.WatchExports(ctx); err != nil {
		return err
	}
	fmt.Println("\n⚡ shutting down...")
	return nil
}
