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

package driver

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/credentials"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/lock"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/resource"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const initializedMessage = "Finished initializing"

// Handler implements one command.
type Handler func(ctx context.Context, c *Call) (string, error)

// Command is an entry of a driver's command table. Exclusive commands run
// under the global lock of the instance.
type Command struct {
	Name      string
	Exclusive bool
	Handler   Handler
}

// Call is the per command state handed to a Handler.
type Call struct {
	Request
	Config      resource.Config
	API         hostapi.API
	Credentials credentials.Credentials
	Log         *log.Entry
}

// Options describe a driver kind to Base.
type Options struct {
	Kind        string
	Name        string
	ShellName   string
	SupportedOS []string
	// ResolveCredentials decrypts the resource credentials before every command.
	ResolveCredentials bool
	LockObserver       lock.Observer
}

// Base implements the command lifecycle shared by all drivers.
type Base struct {
	kind        string
	name        string
	shellName   string
	supportedOS []string
	resolve     bool
	settings    Settings

	gate     *lock.Gate
	commands map[string]Command

	m           *sync.Mutex
	initialized bool
	pool        *session.Pool
}

func NewBase(o Options, s Settings, cmds ...Command) *Base {
	var lockOpts []lock.Option
	if o.LockObserver != nil {
		lockOpts = append(lockOpts, lock.WithObserver(o.LockObserver))
	}
	b := &Base{
		kind:        o.Kind,
		name:        o.Name,
		shellName:   o.ShellName,
		supportedOS: o.SupportedOS,
		resolve:     o.ResolveCredentials,
		settings:    s,
		gate:        lock.NewGate(o.Name, s.LockTimeout, lockOpts...),
		commands:    make(map[string]Command, len(cmds)),
		m:           &sync.Mutex{},
	}
	for _, c := range cmds {
		b.commands[c.Name] = c
	}
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) Kind() string { return b.kind }

func (b *Base) Settings() Settings { return b.settings }

// Initialize checks the resource configuration and marks the instance ready.
func (b *Base) Initialize(ctx context.Context, ic command.InitContext) (string, error) {
	cc := ic.Context()
	if err := cc.Validate(); err != nil {
		return "", types.NewCommandExecutionError("", "", err)
	}
	cfg, err := resource.New(b.shellName, b.supportedOS, cc)
	if err != nil {
		return "", types.NewCommandExecutionError("", "", err)
	}
	b.m.Lock()
	b.initialized = true
	b.m.Unlock()
	logging.FromContext(ctx).WithField("resource", cfg.Name).
		Infof("%s %s initialized, sessions concurrency limit %d", b.kind, b.name, cfg.SessionsConcurrencyLimit)
	return initializedMessage, nil
}

// Initialized reports whether Initialize succeeded at least once.
func (b *Base) Initialized() bool {
	b.m.Lock()
	defer b.m.Unlock()
	return b.initialized
}

// Commands returns the command names, sorted.
func (b *Base) Commands() []string {
	names := make([]string, 0, len(b.commands))
	for n := range b.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute binds the logger, builds the resource configuration, resolves the
// credentials, takes the global lock for exclusive commands and runs the
// handler. The lock is released on every exit path.
func (b *Base) Execute(ctx context.Context, req Request) (string, error) {
	cmd, ok := b.commands[req.Command]
	if !ok {
		return "", types.CommandExecutionErrorf("%s does not support command %q", b.kind, req.Command)
	}
	if err := req.Context.Validate(); err != nil {
		return "", types.NewCommandExecutionError("", "", err)
	}
	ctx, entry := logging.Bind(ctx, req.Context, req.Command, req.CommandID)

	start := time.Now()
	entry.Infof("%s started", req.Command)
	out, err := b.execute(ctx, entry, cmd, req)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = string(types.Kind(err))
	}
	commandsTotal.WithLabelValues(b.kind, req.Command, result).Inc()
	commandDuration.WithLabelValues(b.kind, req.Command).Observe(elapsed.Seconds())

	if err != nil {
		entry.Errorf("%s failed after %s: %v", req.Command, elapsed, err)
		return "", err
	}
	entry.Infof("%s completed in %s", req.Command, elapsed)
	return out, nil
}

func (b *Base) execute(ctx context.Context, entry *log.Entry, cmd Command, req Request) (string, error) {
	cfg, err := resource.New(b.shellName, b.supportedOS, req.Context)
	if err != nil {
		return "", types.NewCommandExecutionError("", "", err)
	}
	c := &Call{Request: req, Config: cfg, Log: entry}
	if b.settings.HostAPI != nil {
		if c.API, err = b.settings.HostAPI.NewSession(ctx, req.Context); err != nil {
			return "", err
		}
	}
	if b.resolve {
		if c.Credentials, err = credentials.NewResolver(c.API).Resolve(ctx, cfg); err != nil {
			return "", err
		}
	}

	if cmd.Exclusive {
		guard, err := b.gate.Acquire(ctx, cmd.Name)
		if err != nil {
			return "", err
		}
		defer guard.Release()
	}
	return cmd.Handler(ctx, c)
}

// Target describes the device session of a call. An empty transport uses the
// CLI connection type of the resource.
func (b *Base) Target(c *Call, platform, transport string) session.Target {
	if transport == "" {
		transport = strings.ToLower(strings.TrimSpace(c.Config.CLIConnectionType))
	}
	return session.Target{
		Address:        c.Config.Address,
		Port:           c.Config.CLITCPPort,
		Type:           transport,
		Platform:       platform,
		Username:       c.Credentials.Username,
		Password:       c.Credentials.Password,
		EnablePassword: c.Credentials.EnablePassword,
		Timeout:        b.settings.SessionTimeout,
	}
}

// SessionPool returns the session pool of the instance. The pool is rebuilt
// when the target or the concurrency limit of the resource changed since the
// previous call. The new pool hands out sessions only once every lease of the
// old one was released.
func (b *Base) SessionPool(c *Call, platform, transport string) *session.Pool {
	t := b.Target(c, platform, transport)
	limit := c.Config.SessionsConcurrencyLimit

	b.m.Lock()
	defer b.m.Unlock()
	if b.pool != nil && b.pool.Target() == t && b.pool.Limit() == limit {
		return b.pool
	}
	old := b.pool
	if old != nil {
		log.Infof("%s: session target changed, replacing session pool", b.name)
		if err := old.Close(); err != nil {
			log.Debugf("%s: closing session pool: %v", b.name, err)
		}
	}
	b.pool = session.NewPool(b.name, t, b.settings.Sessions, session.PoolConfig{
		Limit:           limit,
		Retry:           b.settings.Retry,
		BreakerFailures: b.settings.BreakerFailures,
		BreakerTimeout:  b.settings.BreakerTimeout,
		Replaces:        old,
	})
	return b.pool
}

// Cleanup closes the sessions of the instance.
func (b *Base) Cleanup() {
	b.m.Lock()
	p := b.pool
	b.pool = nil
	b.m.Unlock()
	if p == nil {
		return
	}
	if err := p.Close(); err != nil {
		log.Warnf("%s: cleanup: %v", b.name, err)
	}
}

// ReportToReservation posts msg to the reservation output of the call.
// Failures are only logged.
func (c *Call) ReportToReservation(ctx context.Context, msg string) {
	if c.API == nil || c.Context.Reservation.ReservationID == "" {
		return
	}
	if err := c.API.WriteMessageToReservationOutput(ctx, c.Context.Reservation.ReservationID, msg); err != nil {
		c.Log.Warnf("failed to write to reservation output: %v", err)
	}
}
