package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// StageStatus is the lifecycle state of a single deployment stage.
type StageStatus string

const (
	StagePending StageStatus = "pending"
	StageRunning StageStatus = "running"
	StageSuccess StageStatus = "success"
	StageFailure StageStatus = "failure"
)

// RunStatus is the lifecycle state of the whole deployment run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// StageRecord holds the status and timing of one named deployment stage.
type StageRecord struct {
	Name      string      `json:"-"`
	Status    StageStatus `json:"status"`
	StartTime *time.Time  `json:"start_time"`
	EndTime   *time.Time  `json:"end_time"`
	ExitCode  *int        `json:"exit_code"`
}

// DeploymentRun is the state document for one deployment invocation. Stages
// keep the declared pipeline order, which is also the order they are emitted
// in on the wire.
type DeploymentRun struct {
	ID        string            `json:"deployment_id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time"`
	ExitCode  *int              `json:"exit_code"`
	Status    RunStatus         `json:"status"`
	Config    map[string]string `json:"config"`
	Stages    []*StageRecord    `json:"-"`
}

// Stage returns the record for the named stage, or nil when the stage is not
// part of the declared pipeline.
func (r *DeploymentRun) Stage(name string) *StageRecord {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}

	return nil
}

// StageNames returns the stage names in declared pipeline order.
func (r *DeploymentRun) StageNames() []string {
	names := make([]string, 0, len(r.Stages))
	for _, s := range r.Stages {
		names = append(names, s.Name)
	}

	return names
}

type runDoc struct {
	ID        string            `json:"deployment_id"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time"`
	ExitCode  *int              `json:"exit_code"`
	Status    RunStatus         `json:"status"`
	Config    map[string]string `json:"config"`
	Stages    json.RawMessage   `json:"stages"`
}

// MarshalJSON emits the state document with the stages object keyed by stage
// name, preserving declared pipeline order instead of Go's sorted map keys.
func (r *DeploymentRun) MarshalJSON() ([]byte, error) {
	var stages bytes.Buffer
	stages.WriteByte('{')
	for i, s := range r.Stages {
		if i > 0 {
			stages.WriteByte(',')
		}
		key, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		stages.Write(key)
		stages.WriteByte(':')
		rec, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		stages.Write(rec)
	}
	stages.WriteByte('}')

	return json.Marshal(runDoc{
		ID:        r.ID,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		ExitCode:  r.ExitCode,
		Status:    r.Status,
		Config:    r.Config,
		Stages:    stages.Bytes(),
	})
}

// UnmarshalJSON restores the declared stage order from the textual order of
// the stages object so a round-trip reproduces the document field-for-field.
func (r *DeploymentRun) UnmarshalJSON(data []byte) error {
	var doc runDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	stages, err := decodeOrderedStages(doc.Stages)
	if err != nil {
		return err
	}

	r.ID = doc.ID
	r.StartTime = doc.StartTime
	r.EndTime = doc.EndTime
	r.ExitCode = doc.ExitCode
	r.Status = doc.Status
	r.Config = doc.Config
	r.Stages = stages

	return nil
}

func decodeOrderedStages(raw json.RawMessage) ([]*StageRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("stages must be a JSON object, got %v", tok)
	}

	var stages []*StageRecord
	for dec.More() {
		keyTok, keyErr := dec.Token()
		if keyErr != nil {
			return nil, fmt.Errorf("decoding stage name: %w", keyErr)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("stage name must be a string, got %v", keyTok)
		}

		rec := &StageRecord{Name: name}
		if decErr := dec.Decode(rec); decErr != nil {
			return nil, fmt.Errorf("decoding stage %q: %w", name, decErr)
		}
		stages = append(stages, rec)
	}

	if _, err = dec.Token(); err != nil {
		return nil, fmt.Errorf("decoding stages: %w", err)
	}

	return stages, nil
}
