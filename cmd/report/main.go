package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rancher/distros-deploy-framework/pkg/report"
	"github.com/rancher/distros-deploy-framework/pkg/tracker"
	"github.com/rancher/distros-deploy-framework/shared"
)

var (
	stateFile string
	outFile   string
)

func main() {
	flag.StringVar(&stateFile, "f", "", "path to deployment state file")
	flag.StringVar(&outFile, "o", "", "write the summary to this path instead of stdout")
	flag.Parse()

	if stateFile == "" {
		shared.LogLevel("error", "-f flag is required")
		os.Exit(1)
	}

	run, err := tracker.Load(stateFile)
	if err != nil {
		shared.LogLevel("error", "error loading state file: %w\n", err)
		os.Exit(1)
	}

	if outFile == "" {
		fmt.Print(report.Render(run))
		return
	}

	if err := report.Write(run, outFile); err != nil {
		shared.LogLevel("error", "error writing summary report: %w\n", err)
		os.Exit(1)
	}
}
