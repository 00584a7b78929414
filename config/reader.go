package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/rancher/distros-deploy-framework/pkg/logger"
)

var (
	envConfig *Env
	loadErr   error
	once      sync.Once
	log       = logger.AddLogger()

	supportedProducts = []string{"k3s", "rke2"}
)

// Env is the deployment configuration, loaded once at process start. There
// is no mid-run re-discovery: everything a stage needs is resolved here and
// passed down explicitly.
type Env struct {
	Product        string
	InstallVersion string
	PlanFile       string
	Inventory      string
	WorkDir        string
	TFVarsFile     string

	ContinueOnFailure bool
	StageTimeout      time.Duration

	// Health probe targets.
	Kubeconfig string
	ServerIP   string
	SSHUser    string
	SSHKeyPath string

	// Artifact upload, optional.
	ArtifactBucket string
	ArtifactPrefix string
	AwsRegion      string

	// Slack notification, optional.
	SlackToken     string
	SlackChannelID string
}

// AddEnv loads the .env file, reads the environment and returns the
// validated configuration. It is a singleton: later calls return the first
// result.
func AddEnv() (*Env, error) {
	once.Do(func() {
		envConfig, loadErr = loadEnv()
		if loadErr != nil {
			log.Errorf("error loading environment configuration: %v\n", loadErr)
		}
	})

	return envConfig, loadErr
}

func loadEnv() (*Env, error) {
	dotEnvPath := os.Getenv("DEPLOY_ENV_FILE")
	if dotEnvPath == "" {
		dotEnvPath = "config/.env"
	}
	if err := godotenv.Load(dotEnvPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s: %w", dotEnvPath, err)
	}

	env := &Env{
		Product:        os.Getenv("ENV_PRODUCT"),
		InstallVersion: os.Getenv("INSTALL_VERSION"),
		PlanFile:       os.Getenv("STAGE_PLAN_FILE"),
		Inventory:      os.Getenv("ANSIBLE_INVENTORY"),
		WorkDir:        os.Getenv("DEPLOY_WORKDIR"),
		TFVarsFile:     os.Getenv("ENV_TFVARS"),
		Kubeconfig:     os.Getenv("KUBE_CONFIG"),
		ServerIP:       os.Getenv("SERVER_IP"),
		SSHUser:        os.Getenv("SSH_USER"),
		SSHKeyPath:     os.Getenv("SSH_KEY_PATH"),
		ArtifactBucket: os.Getenv("ARTIFACT_BUCKET"),
		ArtifactPrefix: os.Getenv("ARTIFACT_PREFIX"),
		AwsRegion:      os.Getenv("AWS_REGION"),
		SlackToken:     os.Getenv("SLACK_TOKEN"),
		SlackChannelID: os.Getenv("SLACK_CHANNEL_ID"),
	}

	env.ContinueOnFailure = boolFromEnv("CONTINUE_ON_FAILURE")
	env.StageTimeout = timeoutFromEnv("STAGE_TIMEOUT_MINUTES", 25*time.Minute)

	normalize(env)
	if err := validate(env); err != nil {
		return nil, err
	}

	return env, nil
}

func normalize(env *Env) {
	env.Product = strings.ToLower(strings.TrimSpace(env.Product))
	env.InstallVersion = strings.TrimSpace(env.InstallVersion)
	env.PlanFile = strings.TrimSpace(env.PlanFile)
	env.Inventory = strings.TrimSpace(env.Inventory)
	env.WorkDir = strings.TrimSpace(env.WorkDir)
	env.SSHUser = strings.TrimSpace(env.SSHUser)
	env.SSHKeyPath = strings.TrimSpace(env.SSHKeyPath)

	if env.WorkDir == "" {
		env.WorkDir = "."
	}
	if env.PlanFile == "" && env.Product != "" {
		env.PlanFile = fmt.Sprintf("config/%s-stages.yaml", env.Product)
	}
}

func validate(env *Env) error {
	if !isSupported(env.Product, supportedProducts) {
		return fmt.Errorf("unknown product: %q; supported products are: %v", env.Product, supportedProducts)
	}

	if env.InstallVersion == "" {
		return fmt.Errorf("install version for %s is not set", env.Product)
	}

	if env.Inventory == "" {
		return fmt.Errorf("ansible inventory is not set")
	}

	if env.Kubeconfig == "" && env.ServerIP != "" {
		if env.SSHUser == "" || env.SSHKeyPath == "" {
			return fmt.Errorf("ssh user and key path are required to probe %s without a kubeconfig", env.ServerIP)
		}
	}

	return nil
}

func isSupported(s string, list []string) bool {
	for _, value := range list {
		if s == value {
			return true
		}
	}

	return false
}

func boolFromEnv(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return false
	}

	return v
}

func timeoutFromEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		log.Warnf("ignoring invalid %s value %q\n", key, raw)
		return fallback
	}

	return time.Duration(minutes) * time.Minute
}
