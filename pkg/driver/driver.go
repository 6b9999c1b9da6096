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

// Package driver hosts the shell drivers. A driver instance serves one
// resource: it owns the global lock, the session pool and the command table
// of that resource, and runs every command through the same lifecycle.
package driver

import (
	"context"
	"time"

	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/retry"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/snmp"
)

// Request is one command sent by the host.
type Request struct {
	Command   string          `json:"command"`
	CommandID string          `json:"command_id,omitempty"`
	Context   command.Context `json:"context"`
	Params    command.Params  `json:"params,omitempty"`
}

type Driver interface {
	// Initialize is called once before the first command.
	Initialize(ctx context.Context, ic command.InitContext) (string, error)
	// Execute runs a command.
	Execute(ctx context.Context, req Request) (string, error)
	// Commands lists the commands the driver understands.
	Commands() []string
	// Cleanup releases the sessions held by the driver.
	Cleanup()
}

// Settings are shared by all driver instances of a server.
type Settings struct {
	LockTimeout time.Duration
	Retry       retry.Policy

	// SessionTimeout bounds a single device operation.
	SessionTimeout  time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	TemplatesDir string

	HostAPI  hostapi.Factory
	Sessions session.Factory
	SNMP     snmp.Opener

	Now func() time.Time
}
