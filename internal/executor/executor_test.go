package executor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orthoflow/orthoflow/internal/executor"
	"github.com/orthoflow/orthoflow/pkg/requestid"
)

var _ = Describe("executor", func() {
	It("runs the task detached from the submitting context", func() {
		e := executor.New(0)

		ctx, cancel := context.WithCancel(requestid.ToContext(context.Background(), "req-1"))
		release := make(chan struct{})
		result := make(chan string, 1)

		Expect(e.Submit(ctx, "run", func(ctx context.Context) error {
			<-release
			if ctx.Err() != nil {
				result <- "cancelled"
				return ctx.Err()
			}
			result <- requestid.FromContext(ctx)
			return nil
		})).To(Succeed())

		cancel()
		close(release)
		Eventually(result).Should(Receive(Equal("req-1")))
		Expect(e.Shutdown(context.Background())).To(Succeed())
	})

	It("rejects tasks beyond the limit", func() {
		e := executor.New(1)
		release := make(chan struct{})

		Expect(e.Submit(context.Background(), "first", func(context.Context) error {
			<-release
			return nil
		})).To(Succeed())

		err := e.Submit(context.Background(), "second", func(context.Context) error { return nil })
		Expect(errors.Is(err, executor.ErrExecutorBusy)).To(BeTrue())

		close(release)
		Expect(e.Shutdown(context.Background())).To(Succeed())
	})

	It("accepts new tasks once a slot is free", func() {
		e := executor.New(1)
		done := make(chan struct{})

		Expect(e.Submit(context.Background(), "first", func(context.Context) error {
			defer close(done)
			return errors.New("failed run")
		})).To(Succeed())
		Eventually(done).Should(BeClosed())

		Eventually(func() error {
			return e.Submit(context.Background(), "second", func(context.Context) error { return nil })
		}).Should(Succeed())
		Expect(e.Shutdown(context.Background())).To(Succeed())
	})

	It("survives a panicking task", func() {
		e := executor.New(0)
		var ran atomic.Bool

		Expect(e.Submit(context.Background(), "panics", func(context.Context) error {
			panic("boom")
		})).To(Succeed())
		Expect(e.Submit(context.Background(), "runs", func(context.Context) error {
			ran.Store(true)
			return nil
		})).To(Succeed())

		Expect(e.Shutdown(context.Background())).To(Succeed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("waits for running tasks on shutdown", func() {
		e := executor.New(0)
		var finished atomic.Bool

		Expect(e.Submit(context.Background(), "slow", func(context.Context) error {
			time.Sleep(50 * time.Millisecond)
			finished.Store(true)
			return nil
		})).To(Succeed())

		Expect(e.Shutdown(context.Background())).To(Succeed())
		Expect(finished.Load()).To(BeTrue())
		Expect(e.Submit(context.Background(), "late", func(context.Context) error { return nil })).To(MatchError(executor.ErrExecutorClosed))
	})

	It("gives up waiting when the context expires", func() {
		e := executor.New(0)
		release := make(chan struct{})
		defer close(release)

		Expect(e.Submit(context.Background(), "stuck", func(context.Context) error {
			<-release
			return nil
		})).To(Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(e.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))
	})
})
