package service_test

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/orthoflow/orthoflow/internal/config"
	"github.com/orthoflow/orthoflow/internal/executor"
	"github.com/orthoflow/orthoflow/internal/pipeline"
	"github.com/orthoflow/orthoflow/internal/service"
	"github.com/orthoflow/orthoflow/internal/store"
	"github.com/orthoflow/orthoflow/internal/store/model"
	"github.com/orthoflow/orthoflow/pkg/requestid"
)

type fakeRunner struct {
	mu      sync.Mutex
	runs    []pipeline.Run
	ids     []string
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, run pipeline.Run) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	f.ids = append(f.ids, requestid.FromContext(ctx))
	return nil
}

func (f *fakeRunner) Runs() []pipeline.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Run{}, f.runs...)
}

type failingExecutor struct {
	err error
}

func (f failingExecutor) Submit(context.Context, string, executor.Task) error {
	return f.err
}

func ptr[T any](v T) *T {
	return &v
}

var _ = Describe("mosaic service", Ordered, func() {
	var (
		s      store.Store
		gormdb *gorm.DB
		runner *fakeRunner
	)

	BeforeAll(func() {
		cfg := config.NewDefault()
		cfg.Database.Type = "sqlite"
		cfg.Database.Name = "file:service_test?mode=memory&cache=shared"

		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())

		s = store.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(Succeed())
	})

	AfterAll(func() {
		s.Close()
	})

	BeforeEach(func() {
		runner = &fakeRunner{}
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM requests;")
	})

	Context("create", func() {
		It("records the request and starts its run", func() {
			e := executor.New(0)
			srv := service.NewMosaicService(s, runner, e)

			ctx := requestid.ToContext(context.TODO(), "req-42")
			record, err := srv.CreateMosaic(ctx, service.MosaicCreate{
				ProjectKey: "P1",
				ClientName: ptr("acme"),
				PlotID:     ptr("T-12"),
			})
			Expect(err).To(BeNil())
			Expect(record.ID).ToNot(Equal(uuid.Nil))
			Expect(record.Status).To(Equal(model.StatusProcessing))

			Expect(e.Shutdown(context.TODO())).To(Succeed())

			runs := runner.Runs()
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].RecordID).To(Equal(record.ID))
			Expect(runs[0].ProjectKey).To(Equal("P1"))
			Expect(*runs[0].Attributes.ClientName).To(Equal("acme"))
			Expect(*runs[0].Attributes.PlotID).To(Equal("T-12"))
			Expect(runner.ids).To(Equal([]string{"req-42"}))

			stored, err := s.Request().Get(context.TODO(), record.ID)
			Expect(err).To(BeNil())
			Expect(stored.Status).To(Equal(model.StatusProcessing))
			Expect(*stored.ClientName).To(Equal("acme"))
		})

		It("returns before the run finishes", func() {
			runner.release = make(chan struct{})
			e := executor.New(0)
			srv := service.NewMosaicService(s, runner, e)

			_, err := srv.CreateMosaic(context.TODO(), service.MosaicCreate{ProjectKey: "P1"})
			Expect(err).To(BeNil())
			Expect(runner.Runs()).To(BeEmpty())

			close(runner.release)
			Expect(e.Shutdown(context.TODO())).To(Succeed())
			Expect(runner.Runs()).To(HaveLen(1))
		})

		It("marks the request failed when the executor is busy", func() {
			srv := service.NewMosaicService(s, runner, failingExecutor{err: executor.ErrExecutorBusy})

			_, err := srv.CreateMosaic(context.TODO(), service.MosaicCreate{ProjectKey: "P1"})
			var busy *service.ErrServiceBusy
			Expect(errors.As(err, &busy)).To(BeTrue())

			records, err := s.Request().List(context.TODO(), store.NewRequestQueryFilter().ByProjectKey("P1"))
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))
			Expect(records[0].Status).To(Equal(model.ErrorStatus("processing capacity exhausted, try again later")))
		})
	})

	Context("get", func() {
		It("returns the request", func() {
			id, err := s.Request().Create(context.TODO(), store.RequestCreate{ProjectKey: "P7"})
			Expect(err).To(BeNil())

			srv := service.NewMosaicService(s, runner, executor.New(0))
			record, err := srv.GetMosaic(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(record.ProjectKey).To(Equal("P7"))
		})

		It("fails for an unknown request", func() {
			srv := service.NewMosaicService(s, runner, executor.New(0))
			_, err := srv.GetMosaic(context.TODO(), uuid.New())

			var notFound *service.ErrResourceNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Context("list", func() {
		It("filters the requests", func() {
			for _, key := range []string{"P1", "P1", "P2"} {
				_, err := s.Request().Create(context.TODO(), store.RequestCreate{ProjectKey: key})
				Expect(err).To(BeNil())
			}

			srv := service.NewMosaicService(s, runner, executor.New(0))
			records, err := srv.ListMosaics(context.TODO(), service.MosaicFilter{ProjectKey: "P1"})
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(2))

			records, err = srv.ListMosaics(context.TODO(), service.MosaicFilter{Limit: 1})
			Expect(err).To(BeNil())
			Expect(records).To(HaveLen(1))

			records, err = srv.ListMosaics(context.TODO(), service.MosaicFilter{Status: model.StatusSuccess})
			Expect(err).To(BeNil())
			Expect(records).To(BeEmpty())
		})
	})
})
