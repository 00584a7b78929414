package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Tracker owns the deployment run state document. All mutations go through
// it and every mutation persists the full document atomically, so external
// observers never see a torn file.
type Tracker struct {
	path string
	run  *DeploymentRun
}

// New builds a deployment run with one pending record per stage name, in the
// given order, and persists it to path.
func New(path string, stageNames []string, config map[string]string) (*Tracker, error) {
	if len(stageNames) == 0 {
		return nil, fmt.Errorf("at least one stage name is required")
	}

	seen := make(map[string]bool, len(stageNames))
	stages := make([]*StageRecord, 0, len(stageNames))
	for _, name := range stageNames {
		if name == "" {
			return nil, fmt.Errorf("stage name should not be empty")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage name: %q", name)
		}
		seen[name] = true
		stages = append(stages, &StageRecord{Name: name, Status: StagePending})
	}

	cfg := make(map[string]string, len(config))
	for k, v := range config {
		cfg[k] = v
	}

	t := &Tracker{
		path: path,
		run: &DeploymentRun{
			ID:        uuid.NewString(),
			StartTime: time.Now().UTC(),
			Status:    RunRunning,
			Config:    cfg,
			Stages:    stages,
		},
	}

	if err := t.persist(); err != nil {
		return nil, err
	}

	return t, nil
}

// Run returns the current state document.
func (t *Tracker) Run() *DeploymentRun {
	return t.run
}

// Path returns the location of the state document on disk.
func (t *Tracker) Path() string {
	return t.path
}

// MarkStageStart moves the named stage from pending to running and stamps
// its start time.
func (t *Tracker) MarkStageStart(name string) error {
	s := t.run.Stage(name)
	if s == nil {
		return &NotFoundError{Stage: name}
	}
	if s.Status != StagePending {
		return &InvalidTransitionError{Stage: name, From: s.Status, Op: "start"}
	}

	now := time.Now().UTC()
	s.Status = StageRunning
	s.StartTime = &now

	return t.persist()
}

// MarkStageResult records the outcome of a running stage, stamping its end
// time and exit code.
func (t *Tracker) MarkStageResult(name string, success bool, exitCode int) error {
	s := t.run.Stage(name)
	if s == nil {
		return &NotFoundError{Stage: name}
	}
	if s.Status != StageRunning {
		return &InvalidTransitionError{Stage: name, From: s.Status, Op: "record result for"}
	}

	now := time.Now().UTC()
	s.Status = StageFailure
	if success {
		s.Status = StageSuccess
	}
	s.EndTime = &now
	s.ExitCode = &exitCode

	return t.persist()
}

// ReclassifyStageSuccess overwrites a failed stage to success after an
// independent health probe confirmed the target system converged. Calling it
// on an already successful stage is a no-op.
func (t *Tracker) ReclassifyStageSuccess(name string) error {
	s := t.run.Stage(name)
	if s == nil {
		return &NotFoundError{Stage: name}
	}
	if s.Status == StageSuccess {
		return nil
	}
	if s.Status != StageFailure {
		return &InvalidTransitionError{Stage: name, From: s.Status, Op: "reclassify"}
	}

	now := time.Now().UTC()
	zero := 0
	s.Status = StageSuccess
	s.EndTime = &now
	s.ExitCode = &zero

	return t.persist()
}

// Finalize stamps the run end time, exit code and final status. A second
// call is a no-op returning the already finalized document.
func (t *Tracker) Finalize(exitCode int) (*DeploymentRun, error) {
	if t.run.EndTime != nil {
		return t.run, nil
	}

	now := time.Now().UTC()
	t.run.EndTime = &now
	t.run.ExitCode = &exitCode
	t.run.Status = RunFailed
	if exitCode == 0 {
		t.run.Status = RunSuccess
	}

	if err := t.persist(); err != nil {
		return nil, err
	}

	return t.run, nil
}

// Load reads a state document back from disk, for read-side consumers like
// the summary reporter.
func Load(path string) (*DeploymentRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var run DeploymentRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}

	return &run, nil
}

// persist writes the full document to a temp file in the same directory and
// renames it over the target, so a crash mid-write never leaves partial JSON.
func (t *Tracker) persist() error {
	data, err := json.MarshalIndent(t.run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(t.path)
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp state file in %s: %w", dir, err)
	}

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to set state file mode: %w", err)
	}
	if err = os.Rename(tmp.Name(), t.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace state file %s: %w", t.path, err)
	}

	return nil
}
