package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlanStage declares one unit of deployment work: the playbook it runs and
// how to run it. File order is pipeline order.
type PlanStage struct {
	Name           string            `yaml:"name"`
	Playbook       string            `yaml:"playbook"`
	Inventory      string            `yaml:"inventory,omitempty"`
	ExtraVars      map[string]string `yaml:"extra_vars,omitempty"`
	TimeoutMinutes int               `yaml:"timeout_minutes,omitempty"`
}

// Plan is the fixed, ordered stage sequence for one deployment type.
type Plan struct {
	Stages []PlanStage `yaml:"stages"`
}

// LoadPlan reads and validates a stage plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %w", path, err)
	}

	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("invalid plan file %s: %w", path, err)
	}

	return &plan, nil
}

func (p *Plan) validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("plan declares no stages")
	}

	seen := make(map[string]bool, len(p.Stages))
	for _, s := range p.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage name should not be empty")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name: %q", s.Name)
		}
		seen[s.Name] = true

		if s.Playbook == "" {
			return fmt.Errorf("stage %q has no playbook", s.Name)
		}
	}

	return nil
}

// StageNames returns the declared stage names in pipeline order.
func (p *Plan) StageNames() []string {
	names := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		names = append(names, s.Name)
	}

	return names
}
