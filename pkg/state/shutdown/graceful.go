package shutdown

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"enceladus/pkg/state/logger"
)

// Step is one ordered teardown action.
type Step struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run executes steps in order. A failing step is logged and does not stop
// the remaining ones; the first error is returned.
func Run(ctx context.Context, steps ...Step) error {
	logger.Info("shutdown_requested")
	var first error
	for _, s := range steps {
		if s.Fn == nil {
			continue
		}
		start := time.Now()
		if err := s.Fn(ctx); err != nil {
			logger.Error("shutdown_step_failed", "step", s.Name, "error", err)
			if first == nil {
				first = err
			}
			continue
		}
		logger.Info("shutdown_step_done", "step", s.Name, "took", time.Since(start))
	}
	logger.Info("shutdown_complete")
	return first
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// SIGPIPE dumps goroutine stacks before cancelling.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigc)
		signal.Stop(sigpipe)
		cancel()
	}
}
