package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/adapters/bbolt"
)

var (
	wipeForce  bool
	wipeSource string
)

var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Clear persisted pipeline state",
	Long:  "Deletes the snapshot and run ledger database, or a single source's\nsnapshot with --source. Published artifacts are left in place.",
	RunE:  runWipe,
}

func init() {
	wipeCmd.Flags().BoolVar(&wipeForce, "force", false, "Skip confirmation prompt")
	wipeCmd.Flags().StringVar(&wipeSource, "source", "", "Wipe only this source's snapshot (e.g. register)")
}

func runWipe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dbPath := cfg.Store.Path

	if !wipeForce {
		what := fmt.Sprintf("all pipeline state in %s", dbPath)
		if wipeSource != "" {
			what = fmt.Sprintf("the %s snapshot in %s", wipeSource, dbPath)
		}
		fmt.Printf("⚠ This will delete %s. Continue? [y/N] ", what)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("cancelled")
			return nil
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("⚡ no data to wipe")
		return nil
	}

	if wipeSource == "" {
		if err := os.Remove(dbPath); err != nil {
			return fmt.Errorf("remove %s: %w", dbPath, err)
		}
		fmt.Println("⚡ pipeline state wiped")
		return nil
	}

	store, err := bbolt.NewStore(dbPath)
	if err != nil {
		if isDBLockError(err) {
			return fmt.Errorf("%s", lockGuidance(dbPath))
		}
		return fmt.Errorf("open state store: %w", err)
	}
	if err := store.DeleteSource(wipeSource); err != nil {
		store.Close()
		return err
	}
	store.Close()

	fmt.Printf("⚡ %s snapshot wiped\n", wipeSource)
	return nil
}
