package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/adapters/excel"
	"github.com/kakiii/kmatch/internal/app"
	"github.com/kakiii/kmatch/internal/domain/changes"
)

var diffOld, diffNew string

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Semantic diff between two register exports",
	RunE:  runDiff,
}

func init() {
	f := diffCmd.Flags()
	f.StringVar(&diffOld, "old", "", "Previous export file")
	f.StringVar(&diffNew, "new", "", "Newer export file")
	diffCmd.MarkFlagRequired("old")
	diffCmd.MarkFlagRequired("new")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)
	ctx := cmd.Context()

	oldRows, oldRaw, err := excel.NewReader(diffOld, log).Rows(ctx)
	if err != nil {
		return err
	}
	newRows, newRaw, err := excel.NewReader(diffNew, log).Rows(ctx)
	if err != nil {
		return err
	}

	res := changes.NewDetector(log).Detect(changes.HashRaw(oldRaw), oldRows, newRows, newRaw)
	fmt.Print(formatDiff(res))
	return nil
}
