package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/domain/dataset"
)

var statsRuns int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset, index and run-ledger statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 5, "Recent runs to list (0 = all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.Store.ListRuns(statsRuns)
	if err != nil {
		return err
	}

	var artifact *dataset.Artifact
	artifactPath := filepath.Join(a.Config.Data.Dir, dataset.ArtifactFile)
	if _, err := os.Stat(artifactPath); err == nil {
		if artifact, err = dataset.ReadArtifact(artifactPath); err != nil {
			return err
		}
	}

	var manifest *dataset.Manifest
	manifestPath := filepath.Join(a.Config.Data.Dir, dataset.ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		if manifest, err = dataset.ReadManifest(manifestPath); err != nil {
			return err
		}
	}

	fmt.Print(formatStats(artifact, manifest, runs))
	return nil
}
