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

// Package cli opens interactive CLI sessions with scrapligo.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/scrapli/scrapligo/channel"
	"github.com/scrapli/scrapligo/driver/generic"
	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/platform"
	"github.com/scrapli/scrapligo/response"
	"github.com/scrapli/scrapligo/util"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const defaultOpsTimeout = 2 * time.Minute

var defaultPorts = map[string]int{
	session.TransportSSH:    22,
	session.TransportTelnet: 23,
}

// Factory opens scrapligo sessions. Target.Platform selects a scrapligo
// platform definition (e.g. cisco_nxos); an empty platform uses the generic
// driver.
type Factory struct{}

func (Factory) Open(ctx context.Context, t session.Target) (session.Session, error) {
	transports := []string{t.Type}
	if t.Type == "" || t.Type == session.TransportAuto {
		transports = []string{session.TransportSSH, session.TransportTelnet}
	}
	var errs error
	for _, tr := range transports {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := open(t, tr)
		if err == nil {
			return s, nil
		}
		log.Debugf("cli: %s over %s failed: %v", t.Address, tr, err)
		errs = errors.Join(errs, fmt.Errorf("%s: %w", tr, err))
	}
	return nil, types.NewConnectionError(t.Address, errs)
}

func open(t session.Target, transport string) (*Session, error) {
	port, ok := defaultPorts[transport]
	if !ok {
		return nil, fmt.Errorf("unsupported cli transport %q", transport)
	}
	if t.Port != 0 {
		port = t.Port
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultOpsTimeout
	}
	scrapliTransport := "standard"
	if transport == session.TransportTelnet {
		scrapliTransport = "telnet"
	}
	opts := []util.Option{
		options.WithAuthNoStrictKey(),
		options.WithTransportType(scrapliTransport),
		options.WithPort(port),
		options.WithAuthUsername(t.Username),
		options.WithAuthPassword(t.Password),
		options.WithTimeoutOps(timeout),
	}
	if t.EnablePassword != "" {
		opts = append(opts, options.WithAuthSecondary(t.EnablePassword))
	}

	s := &Session{address: t.Address}
	if t.Platform == "" {
		d, err := generic.NewDriver(t.Address, opts...)
		if err != nil {
			return nil, err
		}
		if err := d.Open(); err != nil {
			return nil, err
		}
		s.d = genericDriver{d}
	} else {
		p, err := platform.NewPlatform(t.Platform, t.Address, opts...)
		if err != nil {
			return nil, err
		}
		d, err := p.GetNetworkDriver()
		if err != nil {
			return nil, err
		}
		if err := d.Open(); err != nil {
			return nil, err
		}
		s.d = d
	}
	s.alive.Store(true)
	return s, nil
}

type driver interface {
	SendCommand(command string, opts ...util.Option) (*response.Response, error)
	SendConfigs(configs []string, opts ...util.Option) (*response.MultiResponse, error)
	SendInteractive(events []*channel.SendInteractiveEvent, opts ...util.Option) (*response.Response, error)
	Close() error
}

// genericDriver has no configuration mode, configs are sent as commands.
type genericDriver struct {
	*generic.Driver
}

func (g genericDriver) SendConfigs(configs []string, opts ...util.Option) (*response.MultiResponse, error) {
	return g.SendCommands(configs, opts...)
}

// Session is a scrapligo backed CLI session.
type Session struct {
	address string
	d       driver
	alive   atomic.Bool
}

func (s *Session) Send(ctx context.Context, cmd string) (string, error) {
	var r *response.Response
	err := s.run(ctx, func() error {
		var err error
		r, err = s.d.SendCommand(cmd)
		return err
	})
	if err != nil {
		return "", err
	}
	if r.Failed != nil {
		return r.Result, types.NewCommandExecutionError(cmd, r.Result, r.Failed)
	}
	return r.Result, nil
}

func (s *Session) SendConfig(ctx context.Context, cmds []string) (string, error) {
	var r *response.MultiResponse
	err := s.run(ctx, func() error {
		var err error
		r, err = s.d.SendConfigs(cmds)
		return err
	})
	if err != nil {
		return "", err
	}
	out := r.JoinedResult()
	if r.Failed != nil {
		return out, types.NewCommandExecutionError(fmt.Sprintf("%v", cmds), out, r.Failed)
	}
	return out, nil
}

func (s *Session) SendInteractive(ctx context.Context, input, expect string) (string, error) {
	events := []*channel.SendInteractiveEvent{{ChannelInput: input, ChannelResponse: expect}}
	var r *response.Response
	err := s.run(ctx, func() error {
		var err error
		r, err = s.d.SendInteractive(events)
		return err
	})
	if err != nil {
		return "", err
	}
	if r.Failed != nil {
		return r.Result, types.NewCommandExecutionError(input, r.Result, r.Failed)
	}
	return r.Result, nil
}

// run executes fn, closing the session if ctx ends first. A transport error
// marks the session dead.
func (s *Session) run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			s.alive.Store(false)
			return types.NewConnectionError(s.address, err)
		}
		return nil
	case <-ctx.Done():
		s.alive.Store(false)
		_ = s.d.Close()
		return ctx.Err()
	}
}

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) Close() error {
	s.alive.Store(false)
	return s.d.Close()
}
