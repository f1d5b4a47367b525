package telemetry

import (
	"context"
	"sync"
	"time"

	"enceladus/pkg/state/logger"

	"github.com/adhocore/gronx"
	"github.com/cockroachdb/errors"
)

// ClientReporter logs the number of live broadcast subscribers on every
// tick of a cron expression.
type ClientReporter struct {
	cron  string
	count func() int

	mu      sync.Mutex
	running bool
	reports int
}

func NewClientReporter(cronExpr string, count func() int) (*ClientReporter, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, errors.Newf("invalid cron expression %q", cronExpr)
	}
	return &ClientReporter{cron: cronExpr, count: count}, nil
}

// Run blocks until ctx is cancelled.
func (r *ClientReporter) Run(ctx context.Context) {
	logger.Info("ws_client_report_enabled", "cron", r.cron)
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(r.cron, now, false)
		if err != nil {
			logger.Error("ws_client_report_nexttick_failed", "cron", r.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			r.Report()
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			r.Report()
		case <-ctx.Done():
			return
		}
	}
}

// Report logs the current client count once.
func (r *ClientReporter) Report() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	n := r.count()
	logger.Info("ws_clients", "count", n)

	r.mu.Lock()
	r.running = false
	r.reports++
	r.mu.Unlock()
}

// Reports returns how many reports were logged.
func (r *ClientReporter) Reports() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports
}
