// kmatch builds and queries the dataset of recognised sponsors from the
// public register. Single binary: fetch, diff, publish, match.
package main

import (
	"os"

	"github.com/kakiii/kmatch/cmd/kmatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if code := cmd.CheckExitCode(err); code >= 0 {
			os.Exit(code)
		}
		os.Exit(1)
	}
}
