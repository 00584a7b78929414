package tracker_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/distros-deploy-framework/pkg/tracker"
)

var _ = Describe("Stage Tracker", func() {
	var statePath string

	BeforeEach(func() {
		statePath = filepath.Join(GinkgoT().TempDir(), "deployment-state.json")
	})

	Describe("New", func() {
		It("creates one pending record per stage name, in the given order", func() {
			t, err := tracker.New(statePath, []string{"ssh-check", "deploy-servers", "validate-cluster"}, nil)
			Expect(err).NotTo(HaveOccurred())

			run := t.Run()
			Expect(run.ID).NotTo(BeEmpty())
			Expect(run.Status).To(Equal(tracker.RunRunning))
			Expect(run.StageNames()).To(Equal([]string{"ssh-check", "deploy-servers", "validate-cluster"}))
			for _, s := range run.Stages {
				Expect(s.Status).To(Equal(tracker.StagePending))
				Expect(s.StartTime).To(BeNil())
				Expect(s.EndTime).To(BeNil())
				Expect(s.ExitCode).To(BeNil())
			}
		})

		It("persists the document on creation", func() {
			t, err := tracker.New(statePath, []string{"a"}, map[string]string{"product": "rke2"})
			Expect(err).NotTo(HaveOccurred())

			loaded, err := tracker.Load(statePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ID).To(Equal(t.Run().ID))
			Expect(loaded.Config).To(HaveKeyWithValue("product", "rke2"))
		})

		It("rejects duplicate stage names", func() {
			_, err := tracker.New(statePath, []string{"a", "a"}, nil)
			Expect(err).To(MatchError(ContainSubstring("duplicate stage name")))
		})

		It("rejects an empty stage list", func() {
			_, err := tracker.New(statePath, nil, nil)
			Expect(err).To(HaveOccurred())
		})

		It("fails when the target path is not writable", func() {
			badPath := filepath.Join(GinkgoT().TempDir(), "missing", "state.json")
			_, err := tracker.New(badPath, []string{"a"}, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("MarkStageStart", func() {
		It("moves a pending stage to running and stamps its start time", func() {
			t, _ := tracker.New(statePath, []string{"a", "b"}, nil)
			Expect(t.MarkStageStart("a")).To(Succeed())

			s := t.Run().Stage("a")
			Expect(s.Status).To(Equal(tracker.StageRunning))
			Expect(s.StartTime).NotTo(BeNil())
			Expect(t.Run().Stage("b").Status).To(Equal(tracker.StagePending))
		})

		It("fails with NotFoundError for an undeclared stage", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)

			err := t.MarkStageStart("nope")
			var notFound *tracker.NotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Stage).To(Equal("nope"))
		})

		It("never silently succeeds on a non-pending stage", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)
			Expect(t.MarkStageStart("a")).To(Succeed())

			err := t.MarkStageStart("a")
			var invalid *tracker.InvalidTransitionError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.From).To(Equal(tracker.StageRunning))
		})
	})

	Describe("MarkStageResult", func() {
		It("always sets end time, exit code and a final status", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)
			Expect(t.MarkStageStart("a")).To(Succeed())
			Expect(t.MarkStageResult("a", false, 3)).To(Succeed())

			s := t.Run().Stage("a")
			Expect(s.Status).To(Equal(tracker.StageFailure))
			Expect(s.EndTime).NotTo(BeNil())
			Expect(*s.ExitCode).To(Equal(3))
		})

		It("fails on a stage that is not running", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)

			err := t.MarkStageResult("a", true, 0)
			var invalid *tracker.InvalidTransitionError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.From).To(Equal(tracker.StagePending))
		})
	})

	Describe("ReclassifyStageSuccess", func() {
		var t *tracker.Tracker

		BeforeEach(func() {
			t, _ = tracker.New(statePath, []string{"deploy-servers"}, nil)
			Expect(t.MarkStageStart("deploy-servers")).To(Succeed())
			Expect(t.MarkStageResult("deploy-servers", false, 2)).To(Succeed())
		})

		It("overwrites a failure to success with exit code zero", func() {
			Expect(t.ReclassifyStageSuccess("deploy-servers")).To(Succeed())

			s := t.Run().Stage("deploy-servers")
			Expect(s.Status).To(Equal(tracker.StageSuccess))
			Expect(*s.ExitCode).To(Equal(0))
		})

		It("is idempotent once the stage is success", func() {
			Expect(t.ReclassifyStageSuccess("deploy-servers")).To(Succeed())

			before, err := json.Marshal(t.Run())
			Expect(err).NotTo(HaveOccurred())

			Expect(t.ReclassifyStageSuccess("deploy-servers")).To(Succeed())

			after, err := json.Marshal(t.Run())
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("fails when the stage never failed", func() {
			t2, _ := tracker.New(filepath.Join(GinkgoT().TempDir(), "s.json"), []string{"a"}, nil)

			err := t2.ReclassifyStageSuccess("a")
			var invalid *tracker.InvalidTransitionError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.From).To(Equal(tracker.StagePending))
		})
	})

	Describe("Finalize", func() {
		It("stamps end time, exit code and status exactly once", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)
			Expect(t.MarkStageStart("a")).To(Succeed())
			Expect(t.MarkStageResult("a", true, 0)).To(Succeed())

			run, err := t.Finalize(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.Status).To(Equal(tracker.RunSuccess))
			Expect(*run.ExitCode).To(Equal(0))
			Expect(run.EndTime).NotTo(BeNil())
		})

		It("returns identical output on a second call", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)

			first, err := t.Finalize(1)
			Expect(err).NotTo(HaveOccurred())
			firstDoc, err := json.Marshal(first)
			Expect(err).NotTo(HaveOccurred())

			second, err := t.Finalize(0)
			Expect(err).NotTo(HaveOccurred())
			secondDoc, err := json.Marshal(second)
			Expect(err).NotTo(HaveOccurred())

			Expect(secondDoc).To(Equal(firstDoc))
			Expect(second.Status).To(Equal(tracker.RunFailed))
		})
	})

	Describe("state document round-trip", func() {
		It("serializes and re-parses field-for-field, keeping stage order", func() {
			t, _ := tracker.New(statePath, []string{"zeta", "alpha", "mid"},
				map[string]string{"product": "rke2", "install_version": "v1.29.3+rke2r1"})
			Expect(t.MarkStageStart("zeta")).To(Succeed())
			Expect(t.MarkStageResult("zeta", false, 2)).To(Succeed())
			Expect(t.ReclassifyStageSuccess("zeta")).To(Succeed())
			Expect(t.MarkStageStart("alpha")).To(Succeed())
			Expect(t.MarkStageResult("alpha", false, 1)).To(Succeed())
			_, err := t.Finalize(1)
			Expect(err).NotTo(HaveOccurred())

			loaded, err := tracker.Load(statePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.StageNames()).To(Equal([]string{"zeta", "alpha", "mid"}))

			original, err := json.Marshal(t.Run())
			Expect(err).NotTo(HaveOccurred())
			reparsed, err := json.Marshal(loaded)
			Expect(err).NotTo(HaveOccurred())
			Expect(reparsed).To(Equal(original))
		})

		It("leaves no torn or temp files next to the state document", func() {
			t, _ := tracker.New(statePath, []string{"a"}, nil)
			Expect(t.MarkStageStart("a")).To(Succeed())
			Expect(t.MarkStageResult("a", true, 0)).To(Succeed())

			entries, err := os.ReadDir(filepath.Dir(statePath))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Name()).To(Equal("deployment-state.json"))
		})
	})
})
