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

// Package ssh runs commands on hosts over SSH exec channels.
package ssh

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"

	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 30 * time.Second
)

// Factory dials SSH clients. Every command gets its own exec channel.
type Factory struct {
	// HostKeyCallback defaults to accepting any host key.
	HostKeyCallback ssh.HostKeyCallback
}

func (f Factory) Open(ctx context.Context, t session.Target) (session.Session, error) {
	hostKey := f.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey()
	}
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	cfg := &ssh.ClientConfig{
		User: t.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(t.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = t.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}

	addr := t.HostPort(defaultPort)
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, types.NewConnectionError(addr, err)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, types.NewConnectionError(addr, err)
	}
	s := &Session{addr: addr, client: ssh.NewClient(c, chans, reqs)}
	s.alive.Store(true)
	go func() {
		err := s.client.Wait()
		s.alive.Store(false)
		log.Debugf("ssh: connection to %s closed: %v", addr, err)
	}()
	return s, nil
}

// Session is an SSH client connection.
type Session struct {
	addr   string
	client *ssh.Client
	alive  atomic.Bool
}

// Send runs cmd on a new exec channel. A non zero exit status is a
// CommandExecutionError carrying stdout and stderr.
func (s *Session) Send(ctx context.Context, cmd string) (string, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		s.alive.Store(false)
		return "", types.NewConnectionError(s.addr, err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
	if err != nil {
		out := stdout.String() + stderr.String()
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return out, types.NewCommandExecutionError(cmd, strings.TrimSpace(out), err)
		}
		s.alive.Store(false)
		return out, types.NewConnectionError(s.addr, err)
	}
	return stdout.String(), nil
}

// SendConfig runs the commands one by one and stops at the first failure.
func (s *Session) SendConfig(ctx context.Context, cmds []string) (string, error) {
	var sb strings.Builder
	for _, c := range cmds {
		out, err := s.Send(ctx, c)
		sb.WriteString(out)
		if err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), nil
}

// SendInteractive runs input as a command. Exec sessions have no prompt to
// wait on, so expect is ignored.
func (s *Session) SendInteractive(ctx context.Context, input, _ string) (string, error) {
	return s.Send(ctx, input)
}

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) Close() error {
	s.alive.Store(false)
	return s.client.Close()
}
