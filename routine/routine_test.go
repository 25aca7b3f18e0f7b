package routine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/realmorph/datakit/logger"
)

func TestRunner_GoNamed(t *testing.T) {
	runner := New(logger.Nop())

	var executed atomic.Bool
	runner.GoNamed("test", func() {
		executed.Store(true)
	})

	runner.Wait()

	if !executed.Load() {
		t.Error("expected function to be executed")
	}
}

func TestRunner_GoNamed_WithPanic(t *testing.T) {
	runner := New(logger.Nop())

	var beforePanic, afterPanic atomic.Bool
	runner.GoNamed("panicking", func() {
		beforePanic.Store(true)
		panic("test panic")
	})
	runner.GoNamed("survivor", func() {
		afterPanic.Store(true)
	})

	runner.Wait()

	if !beforePanic.Load() {
		t.Error("expected code before panic to execute")
	}
	if !afterPanic.Load() {
		t.Error("expected goroutine after panic to execute")
	}
}

func TestRunner_GoNamedWithContext(t *testing.T) {
	runner := New(logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	var sawCancel atomic.Bool
	runner.GoNamedWithContext(ctx, "ctx", func(ctx context.Context) {
		<-ctx.Done()
		sawCancel.Store(true)
	})

	cancel()
	runner.Wait()

	if !sawCancel.Load() {
		t.Error("expected goroutine to observe context cancellation")
	}
}

func TestGo_PanicDoesNotCrash(t *testing.T) {
	done := make(chan struct{})
	Go(logger.Nop(), func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not complete")
	}
}
