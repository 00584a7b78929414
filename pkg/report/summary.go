package report

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rancher/distros-deploy-framework/pkg/tracker"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Render produces the plain text summary for a deployment run: run header,
// config block and one line per stage in declared order. It never mutates
// the run and works for in-progress documents too.
func Render(run *tracker.DeploymentRun) string {
	var b strings.Builder

	b.WriteString("Deployment Summary\n")
	b.WriteString("==================\n\n")
	b.WriteString(fmt.Sprintf("Deployment ID: %s\n", run.ID))
	b.WriteString(fmt.Sprintf("Status:        %s\n", run.Status))
	b.WriteString(fmt.Sprintf("Started:       %s\n", run.StartTime.Format(timeLayout)))
	b.WriteString(fmt.Sprintf("Ended:         %s\n", formatTime(run.EndTime)))
	b.WriteString(fmt.Sprintf("Exit Code:     %s\n", formatExitCode(run.ExitCode)))
	b.WriteString(fmt.Sprintf("Duration:      %s\n", formatDuration(&run.StartTime, run.EndTime)))

	if len(run.Config) > 0 {
		b.WriteString("\nConfiguration\n")
		b.WriteString("-------------\n")
		keys := make([]string, 0, len(run.Config))
		for k := range run.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s: %s\n", k, run.Config[k]))
		}
	}

	b.WriteString("\nStages\n")
	b.WriteString("------\n")
	for _, s := range run.Stages {
		b.WriteString(fmt.Sprintf("%-24s %-8s exit=%-4s started=%-24s duration=%s\n",
			s.Name,
			s.Status,
			formatExitCode(s.ExitCode),
			formatTime(s.StartTime),
			formatDuration(s.StartTime, s.EndTime),
		))
	}

	return b.String()
}

// Write renders the run and writes the report to path.
func Write(run *tracker.DeploymentRun, path string) error {
	if err := os.WriteFile(path, []byte(Render(run)), 0o644); err != nil {
		return fmt.Errorf("failed to write summary report %s: %w", path, err)
	}

	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}

	return t.Format(timeLayout)
}

func formatExitCode(code *int) string {
	if code == nil {
		return "-"
	}

	return fmt.Sprintf("%d", *code)
}

func formatDuration(start, end *time.Time) string {
	if start == nil || end == nil {
		return "-"
	}

	return end.Sub(*start).Round(time.Second).String()
}
