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

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"

	"github.com/sdcio/shell-server/pkg/retry"
	"github.com/sdcio/shell-server/pkg/types"
)

var (
	sessionsInUse = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shell_server",
		Subsystem: "session_pool",
		Name:      "in_use",
		Help:      "Sessions currently leased from the pool of a driver instance.",
	}, []string{"driver"})
	sessionsOpen = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "shell_server",
		Subsystem: "session_pool",
		Name:      "open",
		Help:      "Sessions currently open, leased or idle.",
	}, []string{"driver"})
	sessionOpenFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shell_server",
		Subsystem: "session_pool",
		Name:      "open_failures_total",
		Help:      "Number of failed attempts to open a device session.",
	}, []string{"driver"})
)

// MustRegister registers the pool metrics with reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(sessionsInUse, sessionsOpen, sessionOpenFailures)
}

// PoolConfig tunes a Pool.
type PoolConfig struct {
	// Limit is the maximum number of sessions, leased or idle. Values < 1 mean 1.
	Limit int
	// Retry is applied when opening a session.
	Retry retry.Policy
	// BreakerFailures is the number of consecutive open failures that trip the
	// circuit breaker. 0 disables it.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
	// Replaces is a closed pool whose leases must all be released before the
	// new pool hands out sessions.
	Replaces *Pool
}

// Pool bounds and reuses the sessions of one driver instance to one target.
type Pool struct {
	name    string
	target  Target
	factory Factory
	limit   int
	retry   retry.Policy

	sem      *semaphore.Weighted
	breaker  *gobreaker.CircuitBreaker
	after    <-chan struct{}

	m       *sync.Mutex
	idle    []Session
	open    int
	leased  int
	closed  bool
	drained chan struct{}
}

func NewPool(name string, target Target, factory Factory, cfg PoolConfig) *Pool {
	limit := cfg.Limit
	if limit < 1 {
		limit = 1
	}
	p := &Pool{
		name:    name,
		target:  target,
		factory: factory,
		limit:   limit,
		retry:   cfg.Retry,
		sem:      semaphore.NewWeighted(int64(limit)),
		m:        &sync.Mutex{},
		drained:  make(chan struct{}),
	}
	if cfg.Replaces != nil {
		p.after = cfg.Replaces.Drained()
	}
	if cfg.BreakerFailures > 0 {
		p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name + "/" + target.Address,
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Infof("session breaker %s: %s -> %s", name, from, to)
			},
		})
	}
	return p
}

// Target returns the target the pool connects to.
func (p *Pool) Target() Target { return p.target }

// Limit returns the maximum number of concurrent sessions.
func (p *Pool) Limit() int { return p.limit }

// Drained is closed once the pool is closed and every lease was released.
func (p *Pool) Drained() <-chan struct{} { return p.drained }

// Get leases a session. It blocks while Limit sessions are leased, and until
// the pool it replaces is drained.
func (p *Pool) Get(ctx context.Context) (*Lease, error) {
	if p.after != nil {
		select {
		case <-p.after:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.m.Lock()
	if p.closed {
		p.m.Unlock()
		p.sem.Release(1)
		return nil, errors.New("session pool closed")
	}
	for len(p.idle) > 0 {
		s := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if s.Alive() {
			p.leased++
			p.m.Unlock()
			p.updateMetrics()
			return &Lease{Session: s, pool: p}, nil
		}
		p.open--
		go s.Close()
	}
	p.m.Unlock()

	s, err := p.dial(ctx)
	if err != nil {
		sessionOpenFailures.WithLabelValues(p.name).Inc()
		p.sem.Release(1)
		return nil, err
	}
	p.m.Lock()
	p.open++
	p.leased++
	p.m.Unlock()
	p.updateMetrics()
	return &Lease{Session: s, pool: p}, nil
}

func (p *Pool) dial(ctx context.Context) (Session, error) {
	return retry.DoValue(ctx, p.retry, "open session to "+p.target.Address, func(ctx context.Context) (Session, error) {
		if p.breaker == nil {
			return p.openSession(ctx)
		}
		v, err := p.breaker.Execute(func() (any, error) {
			return p.openSession(ctx)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, types.NewConnectionError(p.target.Address, err)
			}
			return nil, err
		}
		return v.(Session), nil
	})
}

func (p *Pool) openSession(ctx context.Context) (Session, error) {
	log.Debugf("%s: opening session to %s", p.name, p.target)
	s, err := p.factory.Open(ctx, p.target)
	if err != nil {
		var connErr *types.ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, types.NewConnectionError(p.target.Address, err)
	}
	return s, nil
}

// With leases a session for the duration of fn. A session is dropped instead
// of returned when fn fails with a ConnectionError.
func (p *Pool) With(ctx context.Context, fn func(ctx context.Context, s Session) error) error {
	l, err := p.Get(ctx)
	if err != nil {
		return err
	}
	defer l.Release()
	err = fn(ctx, l.Session)
	if types.Kind(err) == types.KindConnection {
		l.Discard()
	}
	return err
}

func (p *Pool) put(s Session, discard bool) {
	p.m.Lock()
	p.leased--
	p.checkDrained()
	if discard || p.closed || !s.Alive() {
		p.open--
		p.m.Unlock()
		if err := s.Close(); err != nil {
			log.Debugf("%s: closing session: %v", p.name, err)
		}
	} else {
		p.idle = append(p.idle, s)
		p.m.Unlock()
	}
	p.updateMetrics()
	p.sem.Release(1)
}

// Stats returns the number of open and leased sessions.
func (p *Pool) Stats() (open, leased int) {
	p.m.Lock()
	defer p.m.Unlock()
	return p.open, p.leased
}

// Close closes idle sessions. Leased sessions are closed when released.
func (p *Pool) Close() error {
	p.m.Lock()
	p.closed = true
	p.checkDrained()
	idle := p.idle
	p.idle = nil
	p.open -= len(idle)
	p.m.Unlock()

	var errs error
	for _, s := range idle {
		errs = errors.Join(errs, s.Close())
	}
	p.updateMetrics()
	return errs
}

// checkDrained must be called with p.m held.
func (p *Pool) checkDrained() {
	if !p.closed || p.leased > 0 {
		return
	}
	select {
	case <-p.drained:
	default:
		close(p.drained)
	}
}

func (p *Pool) updateMetrics() {
	open, leased := p.Stats()
	sessionsOpen.WithLabelValues(p.name).Set(float64(open))
	sessionsInUse.WithLabelValues(p.name).Set(float64(leased))
}

// Lease is a session borrowed from a Pool.
type Lease struct {
	Session
	pool    *Pool
	once    sync.Once
	discard bool
}

// Discard marks the session as broken, it is closed on Release.
func (l *Lease) Discard() { l.discard = true }

// Release returns the session to its pool. Only the first call has an effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pool.put(l.Session, l.discard)
	})
}
