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

// Package runner implements the device operations behind the driver
// commands: discovery, configuration save and restore, connectivity changes,
// firmware load, health checks and raw command execution.
package runner

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sdcio/shell-server/pkg/credentials"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/resource"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/snmp"
	"github.com/sdcio/shell-server/pkg/types"
)

// Profile holds the vendor specific bits the runners need.
type Profile struct {
	Name   string
	Vendor string
	// ErrorPatterns flag command output as failed.
	ErrorPatterns []*regexp.Regexp
	// HealthCommand is the probe sent by health checks.
	HealthCommand string
	// ShutdownCommand is empty when the device cannot be shut down remotely.
	ShutdownCommand string
	// FileSystem is the local file system configurations and images are
	// copied to before they are applied.
	FileSystem string
	// VersionPattern extracts the OS version from sysDescr.
	VersionPattern *regexp.Regexp
}

// NXOS is the Cisco NX-OS profile.
var NXOS = Profile{
	Name:   "cisco_nxos",
	Vendor: "Cisco",
	ErrorPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*% ?invalid`),
		regexp.MustCompile(`(?im)^[ \t]*% ?(incomplete|ambiguous) command`),
		regexp.MustCompile(`(?im)^[ \t]*% ?error`),
		regexp.MustCompile(`(?im)^[ \t]*syntax error`),
		regexp.MustCompile(`(?i)(copy|transfer) failed`),
		regexp.MustCompile(`(?i)no such file or directory`),
		regexp.MustCompile(`(?i)permission denied`),
		regexp.MustCompile(`(?i)configuration replace failed`),
	},
	HealthCommand:  "show version",
	FileSystem:     "bootflash:",
	VersionPattern: regexp.MustCompile(`(?i)version\s+([\w.()\[\]-]+)`),
}

// Linux is the profile for Linux hosts reached over SSH exec.
var Linux = Profile{
	Name:   "linux",
	Vendor: "Linux",
	ErrorPatterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)command not found`),
		regexp.MustCompile(`(?i)permission denied`),
	},
	HealthCommand:   "uptime",
	ShutdownCommand: "shutdown -h now",
	VersionPattern:  regexp.MustCompile(`(?i)release\s+([\d.]+)`),
}

// Check returns a CommandExecutionError when out matches an error pattern.
func (p Profile) Check(cmd, out string) error {
	for _, re := range p.ErrorPatterns {
		if loc := re.FindStringIndex(out); loc != nil {
			return types.NewCommandExecutionError(cmd, strings.TrimSpace(out), errorLine(out, loc[0]))
		}
	}
	return nil
}

type outputError string

func (e outputError) Error() string { return string(e) }

func errorLine(out string, at int) error {
	start := strings.LastIndex(out[:at], "\n") + 1
	end := strings.Index(out[at:], "\n")
	if end < 0 {
		end = len(out)
	} else {
		end += at
	}
	return outputError(strings.TrimSpace(out[start:end]))
}

// Runner executes operations against one device.
type Runner struct {
	Profile     Profile
	Config      resource.Config
	Credentials credentials.Credentials
	Pool        *session.Pool
	API         hostapi.API
	SNMP        snmp.Opener

	// Now is the clock used for file names and artifact dates.
	Now func() time.Time
	// OnRestoreState is called on every restore state transition.
	OnRestoreState func(RestoreState)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) send(ctx context.Context, s session.Session, cmd string) (string, error) {
	logging.FromContext(ctx).Debugf("sending %q", cmd)
	out, err := s.Send(ctx, cmd)
	if err != nil {
		return out, err
	}
	return out, r.Profile.Check(cmd, out)
}

func (r *Runner) sendConfig(ctx context.Context, s session.Session, cmds []string) (string, error) {
	logging.FromContext(ctx).Debugf("sending config %q", cmds)
	out, err := s.SendConfig(ctx, cmds)
	if err != nil {
		return out, err
	}
	return out, r.Profile.Check(strings.Join(cmds, "; "), out)
}

// reportToReservation posts msg to the reservation output. Failures are only
// logged.
func (r *Runner) reportToReservation(ctx context.Context, reservationID, msg string) {
	if r.API == nil || reservationID == "" {
		return
	}
	if err := r.API.WriteMessageToReservationOutput(ctx, reservationID, msg); err != nil {
		logging.FromContext(ctx).Warnf("failed to write to reservation output: %v", err)
	}
}
