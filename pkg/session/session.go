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
	"fmt"
	"strconv"
	"time"
)

// Transport names accepted in Target.Type.
const (
	TransportAuto    = "auto"
	TransportSSH     = "ssh"
	TransportTelnet  = "telnet"
	TransportExec    = "exec"
	TransportNetconf = "netconf"
)

// Session is a live connection to one device.
type Session interface {
	// Send runs a single command and returns its raw output.
	Send(ctx context.Context, cmd string) (string, error)
	// SendConfig applies the commands in configuration mode.
	SendConfig(ctx context.Context, cmds []string) (string, error)
	// SendInteractive sends input and waits for expect instead of the prompt.
	// An empty expect waits for the prompt.
	SendInteractive(ctx context.Context, input, expect string) (string, error)
	// Alive reports whether the session can still be used.
	Alive() bool
	Close() error
}

// Target identifies a device and the credentials used to reach it.
type Target struct {
	Address        string
	Port           int
	Type           string
	Platform       string
	Username       string
	Password       string
	EnablePassword string
	Timeout        time.Duration
}

// HostPort returns address:port, using defPort when no port is set.
func (t Target) HostPort(defPort int) string {
	port := t.Port
	if port == 0 {
		port = defPort
	}
	return fmt.Sprintf("%s:%s", t.Address, strconv.Itoa(port))
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s (%s)", t.Username, t.Address, t.Type)
}

// Factory opens sessions to a target.
type Factory interface {
	Open(ctx context.Context, t Target) (Session, error)
}

type FactoryFunc func(ctx context.Context, t Target) (Session, error)

func (f FactoryFunc) Open(ctx context.Context, t Target) (Session, error) {
	return f(ctx, t)
}

// Dispatch selects a factory by Target.Type. Types without an entry use the
// TransportAuto entry.
type Dispatch map[string]Factory

func (d Dispatch) Open(ctx context.Context, t Target) (Session, error) {
	f, ok := d[t.Type]
	if !ok {
		f, ok = d[TransportAuto]
	}
	if !ok {
		return nil, fmt.Errorf("no session factory for transport %q", t.Type)
	}
	return f.Open(ctx, t)
}
