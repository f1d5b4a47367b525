// Package locks decides section lock transitions.
//
// A section is either unlocked or held by one user since an assignment
// time. Holds expire after Policy.Duration, after which anyone may take the
// lock over. The policy is pure; callers evaluate it inside the store's
// per-row write lock so the decision and the commit see the same row.
package locks

import (
	"time"

	"enceladus/pkg/models"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDuration is how long an assignment stays valid.
const DefaultDuration = 600 * time.Second

var ErrForbidden = errors.New("section lock is held by another user")

type Transition string

const (
	Acquire Transition = "acquire"
	Release Transition = "release"
	Renew   Transition = "renew"
	Steal   Transition = "steal"
	Reject  Transition = "reject"
)

var decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "enceladus_lock_decisions_total",
	Help: "Section lock requests by resulting transition.",
}, []string{"transition"})

func init() {
	prometheus.MustRegister(decisionsTotal)
}

type Policy struct {
	Duration time.Duration
}

func NewPolicy(d time.Duration) Policy {
	if d <= 0 {
		d = DefaultDuration
	}
	return Policy{Duration: d}
}

// Expired reports whether the assignment in cur no longer protects it.
func (p Policy) Expired(cur models.SectionLock, now time.Time) bool {
	if !cur.Held() {
		return false
	}
	expiry := time.Unix(cur.AssignedAtUTC, 0).Add(p.Duration)
	return !now.Before(expiry)
}

// Decide evaluates actor's request to make desired the holder of a lock
// currently in state cur. Rules are checked in order: acquire, release,
// renew, steal after expiry. A rejected request returns ErrForbidden and
// cur unchanged.
func (p Policy) Decide(cur models.SectionLock, actor int64, desired *int64, now time.Time) (models.SectionLock, Transition, error) {
	wantsSelf := desired != nil && *desired == actor
	stamp := now.Unix()

	var (
		next models.SectionLock
		tr   Transition
	)
	switch {
	case !cur.Held() && wantsSelf:
		next, tr = models.SectionLock{HolderID: ptr(actor), AssignedAtUTC: stamp}, Acquire
	case cur.HeldBy(actor) && desired == nil:
		next, tr = models.SectionLock{HolderID: nil, AssignedAtUTC: stamp}, Release
	case cur.HeldBy(actor) && wantsSelf:
		next, tr = models.SectionLock{HolderID: ptr(actor), AssignedAtUTC: stamp}, Renew
	case p.Expired(cur, now):
		next, tr = models.SectionLock{HolderID: ptr(actor), AssignedAtUTC: stamp}, Steal
	default:
		decisionsTotal.WithLabelValues(string(Reject)).Inc()
		return cur, Reject, ErrForbidden
	}
	decisionsTotal.WithLabelValues(string(tr)).Inc()
	return next, tr, nil
}

func ptr(v int64) *int64 { return &v }
