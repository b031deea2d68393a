package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/app"
	"github.com/kakiii/kmatch/internal/domain/dataset"
	"github.com/kakiii/kmatch/internal/domain/match"
)

var (
	checkDataset string
	checkDetails bool
	checkQuiet   bool
)

var checkCmd = &cobra.Command{
	Use:           "check <name>...",
	Short:         "Check names against the published dataset",
	Long:          "Exit code 0 when every name is a recognised sponsor, 1 otherwise.",
	Args:          cobra.MinimumNArgs(1),
	RunE:          runCheck,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkDataset, "dataset", "", "Dataset file to load (default: artifact in data dir)")
	f.BoolVar(&checkDetails, "details", false, "Print per-stage diagnostics for each name")
	f.BoolVarP(&checkQuiet, "quiet", "q", false, "No output, exit code only")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		return checkExit{2}
	}
	log := app.NewLogger(cfg.Log)

	path := checkDataset
	if path == "" {
		path = filepath.Join(cfg.Data.Dir, dataset.ArtifactFile)
	}
	src, err := match.FromFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		return checkExit{2}
	}

	eng := match.New(match.Config{Threshold: cfg.Match.Threshold, Logger: log})
	if err := eng.Load(src); err != nil {
		fmt.Fprintf(os.Stderr, "check: %v\n", err)
		return checkExit{2}
	}

	misses := 0
	for _, name := range args {
		if checkDetails {
			d := eng.MatchDetails(name)
			if !d.Matched {
				misses++
			}
			if !checkQuiet {
				fmt.Print(formatDetails(d))
			}
			continue
		}

		ok := eng.IsRecognizedSponsor(name)
		if !ok {
			misses++
		}
		if !checkQuiet {
			fmt.Print(formatVerdict(name, ok))
		}
	}

	if misses > 0 {
		return checkExit{1}
	}
	return nil
}
