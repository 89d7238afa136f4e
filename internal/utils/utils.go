package utils

import (
	"context"
	"os/signal"
	"syscall"
)

// SetupContext returns a context that is cancelled on SIGTERM or SIGINT.
func SetupContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
}
