package runner_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/distros-deploy-framework/pkg/runner"
)

var _ = Describe("Node readiness parsing", func() {
	It("passes when every node reports Ready", func() {
		out := `ip-172-31-1-10   Ready    control-plane,etcd,master   10m   v1.29.3+rke2r1
ip-172-31-1-11   Ready    <none>                      8m    v1.29.3+rke2r1`
		Expect(runner.AllNodesReady(out)).To(BeTrue())
	})

	It("accepts Ready with role suffixes", func() {
		out := "ip-172-31-1-10   Ready,SchedulingDisabled   control-plane   10m   v1.29.3+rke2r1"
		Expect(runner.AllNodesReady(out)).To(BeTrue())
	})

	It("fails when any node is NotReady", func() {
		out := `ip-172-31-1-10   Ready      control-plane   10m   v1.29.3+rke2r1
ip-172-31-1-11   NotReady   <none>          8m    v1.29.3+rke2r1`
		Expect(runner.AllNodesReady(out)).To(BeFalse())
	})

	It("fails on empty output", func() {
		Expect(runner.AllNodesReady("")).To(BeFalse())
		Expect(runner.AllNodesReady("   \n")).To(BeFalse())
	})
})
