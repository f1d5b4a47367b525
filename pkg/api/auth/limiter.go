package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL     = 10 * time.Minute
	limiterSweepPeriod = time.Minute
)

var trackedClients = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "enceladus_gateway_rate_limited_clients",
	Help: "Client keys currently holding a rate limiter.",
})

func init() {
	prometheus.MustRegister(trackedClients)
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterPool hands out one token bucket per client key. Buckets idle for
// longer than idle are dropped by a background sweep.
type limiterPool struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	p := &limiterPool{
		limit:   rate.Limit(rps),
		burst:   burst,
		idle:    limiterIdleTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go p.sweepEvery(limiterSweepPeriod)
	return p
}

func (p *limiterPool) Allow(key string) bool {
	now := p.now()
	p.mu.Lock()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(p.limit, p.burst)}
		p.buckets[key] = b
		trackedClients.Inc()
	}
	b.seen = now
	p.mu.Unlock()
	return b.lim.AllowN(now, 1)
}

func (p *limiterPool) Shutdown() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *limiterPool) sweepEvery(period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			p.sweep(p.now().Add(-p.idle))
		}
	}
}

// sweep drops buckets last used before cutoff.
func (p *limiterPool) sweep(cutoff time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, b := range p.buckets {
		if b.seen.Before(cutoff) {
			delete(p.buckets, key)
			trackedClients.Dec()
		}
	}
}

func (p *limiterPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buckets)
}
