// Package shutdown coordinates graceful process teardown on SIGINT/SIGTERM.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	return gracefulShutdown
}

// ListenForShutdown blocks until a signal arrives, runs the handler, waits
// the grace period and then closes done.
func ListenForShutdown(
	signals chan os.Signal,
	done chan bool,
	handler func(),
	gracePeriod time.Duration,
	l *zap.Logger,
) {
	sig := <-signals
	l.Sugar().Infow("Received shutdown signal", zap.String("signal", sig.String()))

	handler()

	time.Sleep(gracePeriod)
	close(done)
}
