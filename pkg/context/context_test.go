package context

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubExit(t *testing.T) chan int {
	codes := make(chan int, 1)
	prev := exit
	exit = func(code int) { codes <- code }
	t.Cleanup(func() { exit = prev })
	return codes
}

func TestDrain_FirstSignalCancels(t *testing.T) {
	codes := stubExit(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 2)
	finished := make(chan struct{})
	go func() {
		drain(ctx, cancel, c)
		close(finished)
	}()

	c <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled by the first signal")
	}

	c <- syscall.SIGTERM
	select {
	case code := <-codes:
		assert.Equal(t, 130, code)
	case <-time.After(time.Second):
		t.Fatal("second signal did not exit")
	}
	<-finished
}

func TestDrain_ReturnsWhenDone(t *testing.T) {
	codes := stubExit(t)
	ctx, cancel := context.WithCancel(context.Background())

	finished := make(chan struct{})
	go func() {
		drain(ctx, cancel, make(chan os.Signal))
		close(finished)
	}()
	cancel()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after cancellation")
	}
	assert.Len(t, codes, 0)
}

func TestCancel(t *testing.T) {
	ctx := Context()
	require.Same(t, ctx, Context())
	Cancel()
	assert.Error(t, ctx.Err())
}
