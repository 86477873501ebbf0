package context

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/assetnote/n1qlback/pkg/log"
)

var (
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// exit is replaced in tests
	exit = os.Exit
)

// AddInterruptCancellation cancels ctx on the first SIGINT/SIGTERM so that workers stop after their
// in-flight query. A second signal exits the process immediately without waiting for the workers
func AddInterruptCancellation(ctx context.Context, cancel context.CancelFunc) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		drain(ctx, cancel, c)
		signal.Stop(c)
	}()
}

// drain handles signals until ctx is done. Only the second signal terminates the process. Once the
// first signal has cancelled ctx, drain keeps waiting for a second one while workers finish
func drain(ctx context.Context, cancel context.CancelFunc, c <-chan os.Signal) {
	interrupts := 0
	done := ctx.Done()
	for {
		select {
		case sig := <-c:
			interrupts++
			if interrupts > 1 {
				log.Info().Str("signal", sig.String()).Msg("received second interrupt. exiting without waiting for workers")
				exit(130)
				return
			}
			log.Info().Str("signal", sig.String()).Msg("received interrupt. stopping workers after in-flight queries")
			cancel()
		case <-done:
			if interrupts == 0 {
				return
			}
			done = nil
		}
	}
}

// Context returns the process wide context, cancelled by the first interrupt. It is safe to call from
// multiple goroutines
func Context() context.Context {
	once.Do(func() {
		ctx, cancel = context.WithCancel(context.Background())
		AddInterruptCancellation(ctx, cancel)
	})
	return ctx
}

// Cancel cancels the process wide context
func Cancel() {
	Context()
	cancel()
}
