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

// Package netconf opens NETCONF sessions with the scrapligo netconf driver.
package netconf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/beevik/etree"
	scraplinetconf "github.com/scrapli/scrapligo/driver/netconf"
	"github.com/scrapli/scrapligo/driver/options"
	"github.com/scrapli/scrapligo/response"
	"github.com/scrapli/scrapligo/util"

	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	defaultPort       = 830
	defaultOpsTimeout = 10 * time.Minute
	// DefaultTarget is the datastore edited by SendConfig.
	DefaultTarget = "running"
)

// Factory opens NETCONF sessions.
type Factory struct {
	// PreferredVersion is "1.0" or "1.1"; empty lets the device decide.
	PreferredVersion string
}

func (f Factory) Open(ctx context.Context, t session.Target) (session.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port := t.Port
	if port == 0 {
		port = defaultPort
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultOpsTimeout
	}
	opts := []util.Option{
		options.WithAuthNoStrictKey(),
		options.WithNetconfForceSelfClosingTags(),
		options.WithTransportType("standard"),
		options.WithPort(port),
		options.WithTimeoutOps(timeout),
		options.WithAuthUsername(t.Username),
		options.WithAuthPassword(t.Password),
	}
	if f.PreferredVersion != "" {
		opts = append(opts, options.WithNetconfPreferredVersion(f.PreferredVersion))
	}
	d, err := scraplinetconf.NewDriver(t.Address, opts...)
	if err != nil {
		return nil, types.NewConnectionError(t.Address, err)
	}
	if err := d.Open(); err != nil {
		return nil, types.NewConnectionError(t.Address, err)
	}
	s := &Session{address: t.Address, d: d}
	s.alive.Store(true)
	return s, nil
}

// Session is a NETCONF session. CLI commands are sent wrapped in an
// exec-command RPC, raw RPCs (starting with "<") are sent as is.
type Session struct {
	address string
	d       *scraplinetconf.Driver
	alive   atomic.Bool
}

func (s *Session) Send(ctx context.Context, cmd string) (string, error) {
	body := cmd
	if !strings.HasPrefix(strings.TrimSpace(cmd), "<") {
		var err error
		if body, err = ExecCommand(cmd); err != nil {
			return "", err
		}
	}
	return s.do(ctx, cmd, func() (*response.NetconfResponse, error) {
		return s.d.RPC(filterOption(body))
	})
}

// SendConfig sends XML fragments as one edit-config to the running datastore
// and CLI lines as one exec-command in configuration mode.
func (s *Session) SendConfig(ctx context.Context, cmds []string) (string, error) {
	body, edit, err := ConfigRequest(cmds)
	if err != nil {
		return "", types.NewCommandExecutionError(fmt.Sprintf("%v", cmds), "", err)
	}
	if edit {
		return s.do(ctx, "edit-config", func() (*response.NetconfResponse, error) {
			return s.d.EditConfig(DefaultTarget, body)
		})
	}
	return s.do(ctx, "exec-command", func() (*response.NetconfResponse, error) {
		return s.d.RPC(filterOption(body))
	})
}

// SendInteractive is not available over NETCONF.
func (s *Session) SendInteractive(_ context.Context, input, _ string) (string, error) {
	return "", types.NewCommandExecutionError(input, "", errors.New("interactive commands are not supported over NETCONF"))
}

func (s *Session) do(ctx context.Context, name string, rpc func() (*response.NetconfResponse, error)) (string, error) {
	type result struct {
		r   *response.NetconfResponse
		err error
	}
	done := make(chan result, 1)
	go func() {
		r, err := rpc()
		done <- result{r, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		s.alive.Store(false)
		_ = s.d.Close()
		return "", ctx.Err()
	}
	if res.err != nil {
		s.alive.Store(false)
		return "", types.NewConnectionError(s.address, res.err)
	}
	if res.r.Failed != nil {
		return res.r.Result, types.NewCommandExecutionError(name, res.r.Result, res.r.Failed)
	}
	out, err := ParseReply(res.r.Result)
	if err != nil {
		return res.r.Result, types.NewCommandExecutionError(name, res.r.Result, err)
	}
	return out, nil
}

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) Close() error {
	s.alive.Store(false)
	return s.d.Close()
}

// ExecCommand builds the exec-command RPC body for a CLI command.
func ExecCommand(cmd string) (string, error) {
	doc := etree.NewDocument()
	exec := doc.CreateElement("exec-command")
	exec.CreateElement("cmd").SetText(cmd)
	return doc.WriteToString()
}

// ConfigRequest builds the body applying cmds. XML fragments are wrapped in a
// <config> element for edit-config, CLI lines are joined into one exec-command
// entering configuration mode. Mixing both is an error.
func ConfigRequest(cmds []string) (body string, editConfig bool, err error) {
	var xml, lines []string
	for _, c := range cmds {
		c = strings.TrimSpace(c)
		switch {
		case c == "":
		case strings.HasPrefix(c, "<"):
			xml = append(xml, c)
		default:
			lines = append(lines, c)
		}
	}
	switch {
	case len(xml) > 0 && len(lines) > 0:
		return "", false, errors.New("cannot mix XML fragments and CLI lines in one configuration")
	case len(xml) > 0:
		return fmt.Sprintf("<config>%s</config>", strings.Join(xml, "")), true, nil
	case len(lines) == 0:
		return "", false, errors.New("empty configuration")
	}
	body, err = ExecCommand("configure terminal ; " + strings.Join(lines, " ; "))
	return body, false, err
}

// ParseReply returns the content of an rpc-reply. rpc-error elements are
// returned as an error, a bare <ok/> yields an empty string.
func ParseReply(raw string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return "", err
	}
	root := doc.FindElement("/rpc-reply")
	if root == nil {
		return "", fmt.Errorf("no rpc-reply in %q", raw)
	}
	var errs error
	for _, e := range root.FindElements("//rpc-error") {
		msg := "rpc-error"
		if m := e.FindElement("error-message"); m != nil {
			msg = strings.TrimSpace(m.Text())
		}
		if sev := e.FindElement("error-severity"); sev != nil && sev.Text() == "warning" {
			continue
		}
		errs = errors.Join(errs, errors.New(msg))
	}
	if errs != nil {
		return "", errs
	}
	if root.FindElement("ok") != nil {
		return "", nil
	}
	content := root
	if data := root.FindElement("data"); data != nil {
		content = data
	}
	if t := strings.TrimSpace(content.Text()); t != "" && len(content.ChildElements()) == 0 {
		return t, nil
	}
	out := etree.NewDocument()
	for _, c := range content.ChildElements() {
		out.AddChild(c.Copy())
	}
	out.Indent(2)
	s, err := out.WriteToString()
	return strings.TrimSpace(s), err
}

// filterOption sets the body of a scrapligo RPC operation.
func filterOption(filter string) util.Option {
	return func(x interface{}) error {
		oo, ok := x.(*scraplinetconf.OperationOptions)
		if !ok {
			return util.ErrIgnoredOption
		}
		oo.Filter = filter
		return nil
	}
}
