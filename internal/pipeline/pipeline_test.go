package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/internal/metadata"
	"github.com/orthoflow/orthoflow/internal/notifier"
	"github.com/orthoflow/orthoflow/internal/odm"
	"github.com/orthoflow/orthoflow/internal/pipeline"
	"github.com/orthoflow/orthoflow/internal/store/model"
)

const orthophotoContent = "II*\x00 fake geotiff"

func projectImages(projectKey string, n int) map[string]string {
	objects := map[string]string{}
	for i := 0; i < n; i++ {
		objects[fmt.Sprintf("%s/DJI_%04d.JPG", projectKey, i)] = fmt.Sprintf("jpeg-%d", i)
	}
	return objects
}

var _ = Describe("pipeline", func() {
	var (
		rec       *recorder
		node      *fakeNode
		server    *httptest.Server
		artifacts *fakeArtifacts
		ledger    *fakeLedger
		notif     *fakeNotifier
		tempDir   string
		opts      pipeline.Options
		run       pipeline.Run
	)

	newPipeline := func() *pipeline.Pipeline {
		client, err := odm.NewClient(server.URL, odm.WithMaxPollErrors(2))
		Expect(err).To(BeNil())
		return pipeline.New(client, artifacts, ledger, notif, opts)
	}

	workspace := func() string {
		return pipeline.NewWorkspace(tempDir, run.ProjectKey, run.RecordID).Root()
	}

	BeforeEach(func() {
		rec = &recorder{}
		node = &fakeNode{
			rec:      rec,
			statusFn: completedAt(1),
			archive: buildArchive(map[string]string{
				"odm_orthophoto/odm_orthophoto.tif": orthophotoContent,
				"odm_report/report.pdf":             "pdf",
			}),
		}
		server = httptest.NewServer(node)

		artifacts = newFakeArtifacts(rec, projectImages("P1", 12))
		ledger = &fakeLedger{rec: rec, failFor: map[string]error{}}
		notif = &fakeNotifier{rec: rec, workspace: func() string { return workspace() }}
		tempDir = GinkgoT().TempDir()

		opts = pipeline.Options{
			Preset:       config.DefaultPresets().Resolve(config.DefaultPreset),
			PollInterval: 10 * time.Millisecond,
			MaxWait:      5 * time.Second,
			TempDir:      tempDir,
			Hostname:     "worker-1",
			Clock:        func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		}
		run = pipeline.Run{
			RecordID:   uuid.New(),
			ProjectKey: "P1",
			Attributes: metadata.Attributes{ClientName: ptr("acme")},
		}
	})

	AfterEach(func() {
		server.Close()
	})

	expectWorkspaceRemoved := func() {
		entries, err := os.ReadDir(tempDir)
		Expect(err).To(BeNil())
		Expect(entries).To(BeEmpty())
	}

	Context("when the project is processed", func() {
		It("publishes the orthophoto, commits and then notifies", func() {
			node.statusFn = completedAt(3)

			err := newPipeline().Run(context.TODO(), run)
			Expect(err).To(BeNil())

			Expect(node.infoCalls.Load()).To(BeNumerically("==", 3))
			Expect(node.images).To(HaveLen(12))
			Expect(node.name).To(Equal("Project_P1"))
			Expect(node.Options()).To(HaveKeyWithValue("projection", "EPSG:4326"))
			Expect(node.Options()).To(HaveKeyWithValue("gcp", false))
			Expect(node.Options()).To(HaveKeyWithValue("orthophoto-resolution", float64(5)))
			Expect(node.Options()).To(HaveKeyWithValue("feature-quality", "high"))

			uploads := artifacts.Uploads()
			Expect(uploads).To(HaveKey("P1/odm_orthophoto.tif"))
			Expect(uploads["P1/odm_orthophoto.tif"].ContentType).To(Equal("image/tiff"))
			Expect(uploads["P1/odm_orthophoto.tif"].Data).To(Equal(orthophotoContent))
			Expect(uploads).To(HaveKey("P1/metadata.txt"))
			Expect(uploads["P1/metadata.txt"].ContentType).To(Equal("text/plain"))
			Expect(uploads["P1/metadata.txt"].Data).To(ContainSubstring("Project Key: P1"))
			Expect(uploads["P1/metadata.txt"].Data).To(ContainSubstring("client: acme"))
			Expect(uploads["P1/metadata.txt"].Data).To(ContainSubstring("Image Count: 12"))
			Expect(uploads["P1/metadata.txt"].Data).To(ContainSubstring("Status: completed"))

			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSubmitted, model.StatusSuccess}))
			Expect(*ledger.Last().ResultURL).To(Equal("http://minio:9000/orthomosaics/P1/odm_orthophoto.tif"))

			events := notif.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(notifier.StatusSuccess))
			Expect(events[0].ResultURL).To(Equal("http://minio:9000/orthomosaics/P1/odm_orthophoto.tif"))
			Expect(events[0].WorkspaceExists).To(BeTrue())

			Expect(rec.Calls()).To(Equal([]string{
				"store.list",
				"remote.submit",
				"ledger.update:submitted",
				"remote.download",
				"store.upload:P1/odm_orthophoto.tif",
				"store.upload:P1/metadata.txt",
				"ledger.update:success",
				"notify:success",
			}))
			expectWorkspaceRemoved()
		})

		It("downloads the images into the run workspace", func() {
			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())

			Expect(artifacts.downloaded).To(HaveLen(12))
			for _, f := range artifacts.downloaded {
				Expect(filepath.Dir(f)).To(Equal(filepath.Join(workspace(), "images")))
			}
		})

		It("ignores unsupported files", func() {
			artifacts.objects["P1/notes.txt"] = "notes"
			artifacts.objects["P1/flight.log"] = "log"

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())
			Expect(node.images).To(HaveLen(12))
		})

		It("skips images that fail to download", func() {
			artifacts.failDownload["P1/DJI_0000.JPG"] = true
			artifacts.failDownload["P1/DJI_0001.JPG"] = true

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())
			Expect(node.images).To(HaveLen(10))
		})

		It("does not mutate the preset between runs", func() {
			p := newPipeline()
			Expect(p.Run(context.TODO(), run)).To(Succeed())
			Expect(opts.Preset.Options).ToNot(HaveKey("projection"))
		})

		It("succeeds when the metadata cannot be published", func() {
			artifacts.failUpload["P1/metadata.txt"] = true

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())
			Expect(ledger.Statuses()).To(ContainElement(model.StatusSuccess))
			Expect(notif.Events()[0].Status).To(Equal(notifier.StatusSuccess))
		})

		It("succeeds when the job id cannot be recorded", func() {
			ledger.failFor[model.StatusSubmitted] = errors.New("connection reset")

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())
			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSuccess}))
		})

		It("keeps the outcome when the notification fails", func() {
			notif.err = errors.New("webhook down")

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())
			Expect(ledger.Statuses()).To(ContainElement(model.StatusSuccess))
			expectWorkspaceRemoved()
		})
	})

	Context("when the project has no images", func() {
		It("aborts without submitting", func() {
			artifacts.objects = map[string]string{"P1/readme.txt": "hello", "P2/DJI_0001.JPG": "jpeg"}

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindNoInput))

			Expect(node.submits.Load()).To(BeZero())
			Expect(ledger.Statuses()).To(Equal([]string{"error: no images found for project"}))

			events := notif.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(notifier.StatusError))
			Expect(events[0].Message).To(Equal("no images found for project"))
			Expect(events[0].ResultURL).To(BeEmpty())
			Expect(rec.indexOf("ledger.update:error: no images found for project")).To(BeNumerically("<", rec.indexOf("notify:error")))
			expectWorkspaceRemoved()
		})

		It("aborts when no image could be downloaded", func() {
			artifacts.objects = projectImages("P1", 2)
			artifacts.failDownload["P1/DJI_0000.JPG"] = true
			artifacts.failDownload["P1/DJI_0001.JPG"] = true

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindNoInput))
			Expect(node.submits.Load()).To(BeZero())
			expectWorkspaceRemoved()
		})
	})

	Context("when the submission fails", func() {
		It("aborts with the node error", func() {
			node.submitError = "not enough images"

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindSubmitFailed))
			Expect(err.Error()).To(HavePrefix("failed to start remote processing: "))
			Expect(err.Error()).To(ContainSubstring("not enough images"))

			Expect(ledger.Statuses()).To(Equal([]string{model.ErrorStatus(err.Error())}))
			Expect(notif.Events()[0].Message).To(Equal(err.Error()))
			Expect(node.infoCalls.Load()).To(BeZero())
			expectWorkspaceRemoved()
		})
	})

	Context("when the remote job fails", func() {
		It("aborts on the first failed status without publishing", func() {
			node.statusFn = always(odm.StatusFailed)

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindProcessingFailed))
			Expect(err.Error()).To(Equal("processing failed: FAILED"))

			Expect(node.infoCalls.Load()).To(BeNumerically("==", 1))
			Expect(artifacts.Uploads()).To(BeEmpty())
			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSubmitted, "error: processing failed: FAILED"}))

			events := notif.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Status).To(Equal(notifier.StatusError))
			Expect(events[0].Message).To(Equal("processing failed: FAILED"))
			Expect(events[0].WorkspaceExists).To(BeTrue())
			expectWorkspaceRemoved()
		})

		It("aborts when the job does not finish in time", func() {
			node.statusFn = always(odm.StatusRunning)
			opts.MaxWait = 100 * time.Millisecond

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindProcessingFailed))
			Expect(err.Error()).To(Equal("processing failed: RUNNING after waiting 100ms"))
			Expect(artifacts.Uploads()).To(BeEmpty())
			expectWorkspaceRemoved()
		})
	})

	Context("when the orthophoto is missing from the results", func() {
		It("aborts without publishing", func() {
			node.archive = buildArchive(map[string]string{"odm_report/report.pdf": "pdf"})

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResultMissing))
			Expect(err.Error()).To(Equal("orthophoto not found in results"))

			Expect(artifacts.Uploads()).To(BeEmpty())
			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSubmitted, "error: orthophoto not found in results"}))
			Expect(notif.Events()[0].Message).To(Equal("orthophoto not found in results"))
			expectWorkspaceRemoved()
		})

		It("aborts when the results cannot be downloaded", func() {
			node.archive = []byte("not a zip")

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResultMissing))
			expectWorkspaceRemoved()
		})
	})

	Context("when the orthophoto cannot be published", func() {
		It("aborts before committing", func() {
			artifacts.failUpload["P1/odm_orthophoto.tif"] = true

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindPublishFailed))
			Expect(err.Error()).To(Equal("failed to upload orthophoto: bucket unavailable"))

			Expect(ledger.Statuses()).ToNot(ContainElement(model.StatusSuccess))
			Expect(notif.Events()).To(HaveLen(1))
			Expect(notif.Events()[0].Status).To(Equal(notifier.StatusError))
			expectWorkspaceRemoved()
		})
	})

	Context("when the success cannot be committed", func() {
		It("records the failure and never notifies success", func() {
			ledger.failFor[model.StatusSuccess] = errors.New("connection refused")

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindCommitFailed))
			Expect(err.Error()).To(Equal("failed to update request record: connection refused"))

			reason := "error: failed to update request record: connection refused"
			Expect(rec.Calls()).To(ContainElements("ledger.update:success", "ledger.update:"+reason, "notify:error"))
			Expect(rec.Calls()).ToNot(ContainElement("notify:success"))
			Expect(rec.indexOf("ledger.update:success")).To(BeNumerically("<", rec.indexOf("ledger.update:"+reason)))
			Expect(rec.indexOf("ledger.update:" + reason)).To(BeNumerically("<", rec.indexOf("notify:error")))

			Expect(notif.Events()).To(HaveLen(1))
			Expect(notif.Events()[0].ResultURL).To(BeEmpty())
			expectWorkspaceRemoved()
		})
	})

	Context("when the run panics", func() {
		It("reports an unexpected failure", func() {
			artifacts.listPanic = true

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindUnexpected))
			Expect(err.Error()).To(Equal("panic: listing exploded"))

			Expect(ledger.Statuses()).To(Equal([]string{"error: panic: listing exploded"}))
			Expect(notif.Events()).To(HaveLen(1))
			Expect(notif.Events()[0].Message).To(Equal("panic: listing exploded"))
			expectWorkspaceRemoved()
		})

		It("keeps the failure reason when the failure notification panics", func() {
			node.archive = buildArchive(map[string]string{"odm_report/report.pdf": "pdf"})
			notif.panicOn = map[notifier.Status]bool{notifier.StatusError: true}

			err := newPipeline().Run(context.TODO(), run)
			Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResultMissing))
			Expect(err.Error()).To(Equal("orthophoto not found in results"))

			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSubmitted, "error: orthophoto not found in results"}))
			Expect(notif.Events()).To(HaveLen(1))
			expectWorkspaceRemoved()
		})

		It("keeps the committed success when the success notification panics", func() {
			notif.panicOn = map[notifier.Status]bool{notifier.StatusSuccess: true}

			Expect(newPipeline().Run(context.TODO(), run)).To(Succeed())

			Expect(ledger.Statuses()).To(Equal([]string{model.StatusSubmitted, model.StatusSuccess}))
			Expect(notif.Events()).To(HaveLen(1))
			Expect(notif.Events()[0].Status).To(Equal(notifier.StatusSuccess))
			Expect(rec.Calls()).ToNot(ContainElement("notify:error"))
			expectWorkspaceRemoved()
		})
	})
})

var _ = Describe("workspace", func() {
	It("lives under the temp dir and is named after the run", func() {
		id := uuid.New()
		ws := pipeline.NewWorkspace("/scratch", "farm/P1", id)

		Expect(ws.Root()).To(Equal(filepath.Join("/scratch", "farm_P1-"+id.String())))
		Expect(ws.Images()).To(Equal(filepath.Join(ws.Root(), "images")))
		Expect(ws.Results()).To(Equal(filepath.Join(ws.Root(), "results")))
	})

	It("can be removed before it is prepared", func() {
		ws := pipeline.NewWorkspace(GinkgoT().TempDir(), "P1", uuid.New())
		Expect(ws.Remove()).To(Succeed())

		Expect(ws.Prepare()).To(Succeed())
		Expect(ws.Images()).To(BeADirectory())
		Expect(ws.Remove()).To(Succeed())
		Expect(ws.Root()).ToNot(BeAnExistingFile())
	})
})

var _ = Describe("errors", func() {
	It("classifies wrapped abort errors", func() {
		err := fmt.Errorf("stage: %w", pipeline.NewErrResultMissing())
		Expect(pipeline.KindOf(err)).To(Equal(pipeline.KindResultMissing))
		Expect(pipeline.KindOf(errors.New("boom"))).To(Equal(pipeline.KindUnexpected))
	})
})

func ptr[T any](v T) *T {
	return &v
}
