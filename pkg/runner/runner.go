package runner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rancher/distros-deploy-framework/pkg/tracker"
	"github.com/rancher/distros-deploy-framework/shared"
)

// reclassifiableStages are the deploy stages where Ansible's partial-failure
// exit code may be overridden after the health probe confirms the cluster
// converged anyway.
var reclassifiableStages = map[string]bool{
	"deploy-servers": true,
	"deploy-agents":  true,
}

// Runner executes the plan's stages strictly in declared order, recording
// every outcome in the tracker. Stage failures are never returned as errors;
// the returned exit code is the only fatal signal for the invoking pipeline.
type Runner struct {
	plan              *Plan
	tracker           *tracker.Tracker
	exec              Executor
	probe             HealthProbe
	logDir            string
	continueOnFailure bool
}

func New(plan *Plan, t *tracker.Tracker, exec Executor, probe HealthProbe, logDir string, continueOnFailure bool) *Runner {
	return &Runner{
		plan:              plan,
		tracker:           t,
		exec:              exec,
		probe:             probe,
		logDir:            logDir,
		continueOnFailure: continueOnFailure,
	}
}

// RunStages walks the stage sequence and finalizes the run. The returned
// exit code is 0 iff no stage ended in final failure. The returned error is
// reserved for contract violations (unknown stage, state file IO), which are
// fatal to the run.
func (r *Runner) RunStages(ctx context.Context) (int, error) {
	anyFailed := false

	for _, stage := range r.plan.Stages {
		if err := r.tracker.MarkStageStart(stage.Name); err != nil {
			return 1, fmt.Errorf("failed to start stage %q: %w", stage.Name, err)
		}

		logPath := filepath.Join(r.logDir, stage.Name+".log")
		exitCode, execErr := r.exec.RunStage(ctx, stage, logPath)
		if execErr != nil {
			shared.LogLevel("warn", "Stage %q execution error: %v", stage.Name, execErr)
		}

		if exitCode == 0 {
			if err := r.tracker.MarkStageResult(stage.Name, true, 0); err != nil {
				return 1, fmt.Errorf("failed to record stage %q result: %w", stage.Name, err)
			}
			shared.LogLevel("info", "Stage %q succeeded", stage.Name)
			continue
		}

		if err := r.tracker.MarkStageResult(stage.Name, false, exitCode); err != nil {
			return 1, fmt.Errorf("failed to record stage %q result: %w", stage.Name, err)
		}

		if r.reclassified(stage.Name, exitCode) {
			continue
		}

		shared.LogLevel("warn", "Stage %q failed with exit code %d, log: %s", stage.Name, exitCode, logPath)
		anyFailed = true

		if !r.continueOnFailure {
			shared.LogLevel("warn", "Aborting remaining stages")
			break
		}
	}

	overall := 0
	if anyFailed {
		overall = 1
	}

	if _, err := r.tracker.Finalize(overall); err != nil {
		return 1, fmt.Errorf("failed to finalize run: %w", err)
	}

	return overall, nil
}

// reclassified applies the failure-reclassification heuristic: only the
// designated deploy stages, only on Ansible's partial-failure exit code, and
// only when the read-only health probe confirms the cluster is ready.
func (r *Runner) reclassified(name string, exitCode int) bool {
	if !reclassifiableStages[name] || exitCode != ansiblePartialFailure || r.probe == nil {
		return false
	}

	healthy, err := r.probe.Healthy()
	if err != nil {
		shared.LogLevel("warn", "Health probe for stage %q errored, failure stands: %v", name, err)
		return false
	}
	if !healthy {
		shared.LogLevel("warn", "Health probe for stage %q reports not ready, failure stands", name)
		return false
	}

	if err := r.tracker.ReclassifyStageSuccess(name); err != nil {
		shared.LogLevel("warn", "Failed to reclassify stage %q: %v", name, err)
		return false
	}

	shared.LogLevel("info", "Stage %q reclassified to success after health probe", name)

	return true
}
