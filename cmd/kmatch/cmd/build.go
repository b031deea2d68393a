package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kakiii/kmatch/internal/ports"
)

var (
	buildSource       string
	buildForce        bool
	buildFromRegister bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline: diff, rebuild and publish the dataset",
	Long:  "Reads a register source, diffs it against the previous snapshot and\npublishes fresh dataset artifacts when the register changed.",
	RunE:  runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildSource, "source", "", "Export file to build from (default: newest in exports dir)")
	f.BoolVar(&buildForce, "force", false, "Publish even when the register is unchanged")
	f.BoolVar(&buildFromRegister, "from-register", false, "Fetch the live register instead of reading an export")
}

func runBuild(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var src ports.RowSource
	switch {
	case buildFromRegister:
		src = a.Registry()
	case buildSource != "":
		src = a.ExportReader(buildSource)
	default:
		path, err := a.LatestExport()
		if err != nil {
			return fmt.Errorf("%w (pass --source <file> or --from-register)", err)
		}
		src = a.ExportReader(path)
	}

	a.Pipeline.Force = buildForce
	res, err := a.Pipeline.Run(cmd.Context(), src)
	if err != nil {
		return err
	}

	fmt.Print(formatRunResult(res))
	return nil
}
