package report_test

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/distros-deploy-framework/pkg/report"
	"github.com/rancher/distros-deploy-framework/pkg/tracker"
)

func finishedRun(statePath string) *tracker.DeploymentRun {
	t, err := tracker.New(statePath, []string{"ssh-check", "deploy-servers", "validate-cluster"},
		map[string]string{"product": "rke2", "install_version": "v1.29.3+rke2r1"})
	Expect(err).NotTo(HaveOccurred())

	Expect(t.MarkStageStart("ssh-check")).To(Succeed())
	Expect(t.MarkStageResult("ssh-check", true, 0)).To(Succeed())
	Expect(t.MarkStageStart("deploy-servers")).To(Succeed())
	Expect(t.MarkStageResult("deploy-servers", false, 1)).To(Succeed())
	_, err = t.Finalize(1)
	Expect(err).NotTo(HaveOccurred())

	return t.Run()
}

var _ = Describe("Summary Report", func() {
	var run *tracker.DeploymentRun

	BeforeEach(func() {
		run = finishedRun(filepath.Join(GinkgoT().TempDir(), "state.json"))
	})

	It("renders run metadata, config and one line per stage in declared order", func() {
		out := report.Render(run)

		Expect(out).To(ContainSubstring("Deployment ID: " + run.ID))
		Expect(out).To(ContainSubstring("Status:        failed"))
		Expect(out).To(ContainSubstring("install_version: v1.29.3+rke2r1"))
		Expect(out).To(ContainSubstring("product: rke2"))

		sshIdx := strings.Index(out, "ssh-check")
		deployIdx := strings.Index(out, "deploy-servers")
		validateIdx := strings.Index(out, "validate-cluster")
		Expect(sshIdx).To(BeNumerically(">", 0))
		Expect(deployIdx).To(BeNumerically(">", sshIdx))
		Expect(validateIdx).To(BeNumerically(">", deployIdx))

		Expect(out).To(ContainSubstring("success"))
		Expect(out).To(ContainSubstring("failure"))
		Expect(out).To(ContainSubstring("pending"))
	})

	It("renders an in-progress run without end markers", func() {
		statePath := filepath.Join(GinkgoT().TempDir(), "state.json")
		t, err := tracker.New(statePath, []string{"a"}, nil)
		Expect(err).NotTo(HaveOccurred())

		out := report.Render(t.Run())
		Expect(out).To(ContainSubstring("Status:        running"))
		Expect(out).To(ContainSubstring("Ended:         -"))
		Expect(out).To(ContainSubstring("Exit Code:     -"))
	})

	It("writes the rendered report to the destination path", func() {
		dest := filepath.Join(GinkgoT().TempDir(), "deployment-summary.txt")
		Expect(report.Write(run, dest)).To(Succeed())

		data, err := os.ReadFile(dest)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(report.Render(run)))
	})

	It("round-trips through the state file unchanged", func() {
		statePath := filepath.Join(GinkgoT().TempDir(), "state.json")
		run := finishedRun(statePath)

		loaded, err := tracker.Load(statePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Render(loaded)).To(Equal(report.Render(run)))
	})
})
