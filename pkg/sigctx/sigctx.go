package sigctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Shutdown lists the signals that stop the storefront processes.
var Shutdown = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// NotifyContext returns a context canceled on the first shutdown signal or
// when the returned stop func is called.
func NotifyContext() (context.Context, context.CancelFunc) {
	return WithParent(context.Background())
}

func WithParent(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, Shutdown...)
}
