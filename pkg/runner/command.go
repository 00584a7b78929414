package runner

import (
	"sort"
	"strings"
)

// loggableExtraVars are the extra-var keys whose values may appear in logs.
// Everything else is redacted, never substituted back in with regexes.
var loggableExtraVars = map[string]bool{
	"kubernetes_version": true,
	"channel":            true,
	"cni":                true,
	"install_method":     true,
	"kubeconfig_file":    true,
}

// Command is a structured argv for one stage invocation. Arguments are never
// assembled through a shell.
type Command struct {
	Binary string
	Args   []string
	Dir    string
}

// buildCommand builds the ansible-playbook argv for a stage. The plan's
// inventory wins over the run-level default, and stage extra vars win over
// the run-level base vars.
func buildCommand(stage PlanStage, binary, defaultInventory, workDir string, baseVars map[string]string) Command {
	inventory := stage.Inventory
	if inventory == "" {
		inventory = defaultInventory
	}

	args := []string{"-i", inventory, stage.Playbook}

	vars := make(map[string]string, len(baseVars)+len(stage.ExtraVars))
	for k, v := range baseVars {
		vars[k] = v
	}
	for k, v := range stage.ExtraVars {
		vars[k] = v
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--extra-vars", k+"="+vars[k])
	}

	return Command{Binary: binary, Args: args, Dir: workDir}
}

// CommandLine returns the loggable representation of a stage invocation.
func CommandLine(stage PlanStage, binary, defaultInventory, workDir string) string {
	return buildCommand(stage, binary, defaultInventory, workDir, nil).Redacted()
}

// Redacted renders the command for logging, masking extra-var values whose
// keys are not allow-listed.
func (c Command) Redacted() string {
	parts := []string{c.Binary}
	for i := 0; i < len(c.Args); i++ {
		arg := c.Args[i]
		parts = append(parts, arg)

		if arg == "--extra-vars" && i+1 < len(c.Args) {
			i++
			parts = append(parts, redactExtraVar(c.Args[i]))
		}
	}

	return strings.Join(parts, " ")
}

func redactExtraVar(kv string) string {
	key, _, found := strings.Cut(kv, "=")
	if !found {
		return kv
	}
	if loggableExtraVars[key] {
		return kv
	}

	return key + "=***"
}
