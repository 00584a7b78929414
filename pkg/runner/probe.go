package runner

import (
	"fmt"
	"strings"

	"github.com/rancher/distros-deploy-framework/shared"
)

// HealthProbe is a read-only check of the target system, used to decide
// whether a partially failed deploy stage actually converged.
type HealthProbe interface {
	Healthy() (bool, error)
}

// NodeReadyProbe checks that every cluster node reports Ready. With a
// kubeconfig it asks the API from the host; without one it runs the same
// check on the first server node over SSH.
type NodeReadyProbe struct {
	Kubeconfig string
	ServerIP   string
	SSHUser    string
	SSHKeyPath string
}

func (p *NodeReadyProbe) Healthy() (bool, error) {
	out, err := p.nodeStatusOutput()
	if err != nil {
		return false, fmt.Errorf("node readiness probe failed: %w", err)
	}

	return AllNodesReady(out), nil
}

// AllNodesReady parses `kubectl get nodes --no-headers` output and reports
// whether at least one node exists and every node is Ready.
func AllNodesReady(out string) bool {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return false
	}

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return false
		}
		if fields[1] != "Ready" && !strings.HasPrefix(fields[1], "Ready,") {
			shared.LogLevel("debug", "Node not ready yet: %s", line)
			return false
		}
	}

	return true
}

func (p *NodeReadyProbe) nodeStatusOutput() (string, error) {
	cmd := "kubectl get nodes --no-headers"

	if p.Kubeconfig != "" {
		return shared.RunCommandHost(cmd + " --kubeconfig=" + p.Kubeconfig)
	}

	if p.ServerIP == "" {
		return "", fmt.Errorf("probe needs a kubeconfig or a server IP")
	}

	return shared.RunCommandOnNode(cmd, p.ServerIP, p.SSHUser, p.SSHKeyPath)
}
