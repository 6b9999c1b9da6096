// Copyright 2024 Nokia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package lock implements the global lock of a driver instance. Operations
// that mutate device state exclusively (restore, firmware load, discovery) run
// inside it; everything else bypasses it.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/sdcio/shell-server/pkg/types"
)

var (
	lockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shell_server",
		Subsystem: "global_lock",
		Name:      "wait_seconds",
		Help:      "Time spent waiting for the global lock of a driver instance.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"driver", "operation"})
	lockHeld = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shell_server",
		Subsystem: "global_lock",
		Name:      "held",
		Help:      "1 while the global lock of a driver instance is held.",
	}, []string{"driver"})
	lockTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shell_server",
		Subsystem: "global_lock",
		Name:      "timeouts_total",
		Help:      "Number of global lock acquisitions that timed out.",
	}, []string{"driver", "operation"})
)

// MustRegister registers the lock metrics with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(lockWaitSeconds, lockHeld, lockTimeouts)
}

// Observer is notified inside the critical section, right after the lock was
// taken and right before it is given back.
type Observer interface {
	Acquired(op string)
	Released(op string)
}

// Gate is a mutual exclusion lock scoped to one driver instance.
type Gate struct {
	owner    string
	timeout  time.Duration
	sem      *semaphore.Weighted
	observer Observer

	m      *sync.Mutex
	holder string
}

type Option func(*Gate)

// WithObserver instruments the gate.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// NewGate returns a gate for the named owner. A timeout <= 0 waits as long as
// the caller's context allows.
func NewGate(owner string, timeout time.Duration, opts ...Option) *Gate {
	g := &Gate{
		owner:   owner,
		timeout: timeout,
		sem:     semaphore.NewWeighted(1),
		m:       &sync.Mutex{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Acquire blocks until the lock is held for op, the gate's timeout elapses
// (LockTimeoutError) or ctx is done.
func (g *Gate) Acquire(ctx context.Context, op string) (*Guard, error) {
	start := time.Now()
	actx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.sem.Acquire(actx, 1); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			lockTimeouts.WithLabelValues(g.owner, op).Inc()
			g.m.Lock()
			holder := g.holder
			g.m.Unlock()
			log.Warnf("%s: global lock for %q timed out after %s, held by %q", g.owner, op, g.timeout, holder)
			return nil, &types.LockTimeoutError{Owner: g.owner, Operation: op, Waited: time.Since(start)}
		}
		return nil, err
	}
	lockWaitSeconds.WithLabelValues(g.owner, op).Observe(time.Since(start).Seconds())
	lockHeld.WithLabelValues(g.owner).Set(1)

	g.m.Lock()
	g.holder = op
	g.m.Unlock()
	log.Debugf("%s: global lock acquired for %q", g.owner, op)
	if g.observer != nil {
		g.observer.Acquired(op)
	}

	return newGuard(func() {
		if g.observer != nil {
			g.observer.Released(op)
		}
		g.m.Lock()
		g.holder = ""
		g.m.Unlock()
		lockHeld.WithLabelValues(g.owner).Set(0)
		g.sem.Release(1)
		log.Debugf("%s: global lock released by %q", g.owner, op)
	}), nil
}

// Do runs fn while holding the lock. The lock is released on every exit
// path of fn, including panics.
func (g *Gate) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	guard, err := g.Acquire(ctx, op)
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn(ctx)
}

// Holder returns the operation currently holding the lock, if any.
func (g *Gate) Holder() string {
	g.m.Lock()
	defer g.m.Unlock()
	return g.holder
}
