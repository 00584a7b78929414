package config

import (
	"testing"

	"github.com/gruntwork-io/terratest/modules/terraform"
)

// tfvarsConfigKeys are the variables mirrored into the run's config map when
// present in the product tfvars file.
var tfvarsConfigKeys = []string{
	"node_os",
	"arch",
	"server_flags",
	"worker_flags",
	"install_version",
	"install_method",
	"channel",
	"cni",
	"datastore_type",
	"external_db",
	"fqdn",
}

// DeployConfig builds the run-level config map recorded in the state
// document: product and version from the environment, enriched with whatever
// the tfvars file declares. Missing tfvars keys are skipped, never fatal.
func DeployConfig(env *Env, varDir string) map[string]string {
	cfg := map[string]string{
		"product":         env.Product,
		"install_version": env.InstallVersion,
	}

	if varDir == "" {
		return cfg
	}

	t := &testing.T{}
	for _, key := range tfvarsConfigKeys {
		value, err := terraform.GetVariableAsStringFromVarFileE(t, varDir, key)
		if err != nil || value == "" {
			continue
		}
		cfg[key] = value
	}

	return cfg
}
