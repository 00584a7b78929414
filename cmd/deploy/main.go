package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/rancher/distros-deploy-framework/config"
	"github.com/rancher/distros-deploy-framework/pkg/aws"
	"github.com/rancher/distros-deploy-framework/pkg/notify"
	"github.com/rancher/distros-deploy-framework/pkg/report"
	"github.com/rancher/distros-deploy-framework/pkg/runner"
	"github.com/rancher/distros-deploy-framework/pkg/tracker"
	"github.com/rancher/distros-deploy-framework/shared"
)

var (
	planFile          string
	continueOnFailure bool
)

func main() {
	flag.StringVar(&planFile, "plan", "", "stage plan file, overrides STAGE_PLAN_FILE")
	flag.BoolVar(&continueOnFailure, "continue-on-failure", false, "keep running remaining stages after a failure")
	flag.Parse()

	cfg, err := config.AddEnv()
	if err != nil {
		shared.LogLevel("error", "error adding env vars: %w\n", err)
		os.Exit(1)
	}

	if planFile == "" {
		planFile = cfg.PlanFile
	}
	if continueOnFailure {
		cfg.ContinueOnFailure = true
	}

	plan, err := runner.LoadPlan(planFile)
	if err != nil {
		shared.LogLevel("error", "error loading stage plan: %w\n", err)
		os.Exit(1)
	}

	logDir := filepath.Join(cfg.WorkDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		shared.LogLevel("error", "error creating log dir %s: %w\n", logDir, err)
		os.Exit(1)
	}

	var varFile string
	if cfg.TFVarsFile != "" {
		varFile = filepath.Join("config", cfg.TFVarsFile)
	}

	statePath := filepath.Join(cfg.WorkDir, "deployment-state.json")
	t, err := tracker.New(statePath, plan.StageNames(), config.DeployConfig(cfg, varFile))
	if err != nil {
		shared.LogLevel("error", "error creating deployment state: %w\n", err)
		os.Exit(1)
	}

	r := runner.New(
		plan,
		t,
		&runner.AnsibleExecutor{
			Inventory:     cfg.Inventory,
			WorkDir:       cfg.WorkDir,
			Timeout:       cfg.StageTimeout,
			BaseExtraVars: baseExtraVars(cfg),
		},
		&runner.NodeReadyProbe{
			Kubeconfig: cfg.Kubeconfig,
			ServerIP:   cfg.ServerIP,
			SSHUser:    cfg.SSHUser,
			SSHKeyPath: cfg.SSHKeyPath,
		},
		logDir,
		cfg.ContinueOnFailure,
	)

	exitCode, runErr := r.RunStages(context.Background())
	if runErr != nil {
		shared.LogLevel("error", "deployment run aborted: %w\n", runErr)
	}

	summaryPath := filepath.Join(cfg.WorkDir, "deployment-summary.txt")
	if err := report.Write(t.Run(), summaryPath); err != nil {
		shared.LogLevel("error", "error writing summary report: %w\n", err)
	}

	uploadArtifacts(cfg, t, summaryPath, logDir)
	notifyOutcome(cfg, t)

	os.Exit(exitCode)
}

func baseExtraVars(cfg *config.Env) map[string]string {
	vars := map[string]string{
		"kubernetes_version": cfg.InstallVersion,
	}
	if cfg.Kubeconfig != "" {
		vars["kubeconfig_file"] = cfg.Kubeconfig
	}

	return vars
}

func uploadArtifacts(cfg *config.Env, t *tracker.Tracker, summaryPath, logDir string) {
	if cfg.ArtifactBucket == "" {
		return
	}

	client, err := aws.AddS3Client(cfg.AwsRegion)
	if err != nil {
		shared.LogLevel("warn", "skipping artifact upload: %v", err)
		return
	}

	files := []string{t.Path(), summaryPath}
	for _, name := range t.Run().StageNames() {
		files = append(files, filepath.Join(logDir, name+".log"))
	}

	prefix := cfg.ArtifactPrefix
	if prefix == "" {
		prefix = "deployments"
	}
	prefix = prefix + "/" + t.Run().ID

	if err := client.UploadArtifacts(cfg.ArtifactBucket, prefix, files); err != nil {
		shared.LogLevel("warn", "artifact upload failed: %v", err)
	}
}

func notifyOutcome(cfg *config.Env, t *tracker.Tracker) {
	if cfg.SlackToken == "" && cfg.SlackChannelID == "" {
		return
	}

	slack := notify.NewSlackClient(cfg.SlackToken, cfg.SlackChannelID)
	if err := slack.PostRunSummary(t.Run()); err != nil {
		shared.LogLevel("warn", "slack notification failed: %v", err)
	}
}
