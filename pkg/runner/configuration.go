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

package runner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	ConfigurationRunning = "running"
	ConfigurationStartup = "startup"

	RestoreOverride = "override"
	RestoreAppend   = "append"

	fileTimestampLayout = "020106-150405"
	maxResourceNameLen  = 23
)

// RestoreState is a step of a configuration restore.
type RestoreState string

const (
	RestoreIdle          RestoreState = "Idle"
	RestoreLockAcquired  RestoreState = "LockAcquired"
	RestoreSessionOpen   RestoreState = "SessionOpen"
	RestoreTransferring  RestoreState = "Transferring"
	RestoreApplying      RestoreState = "Applying"
	RestoreSessionClosed RestoreState = "SessionClosed"
	RestoreLockReleased  RestoreState = "LockReleased"
)

// SaveRequest are the parameters of a configuration save.
type SaveRequest struct {
	FolderPath        string
	ConfigurationType string
	VRF               string
}

// RestoreRequest are the parameters of a configuration restore.
type RestoreRequest struct {
	Path              string
	ConfigurationType string
	RestoreMethod     string
	VRF               string
}

// ConfigurationType normalizes a configuration type, defaulting to running.
func ConfigurationType(s string) (string, error) {
	switch t := strings.ToLower(strings.TrimSpace(s)); t {
	case "":
		return ConfigurationRunning, nil
	case ConfigurationRunning, ConfigurationStartup:
		return t, nil
	}
	return "", types.CommandExecutionErrorf("configuration type %q is not supported, use %q or %q", s, ConfigurationRunning, ConfigurationStartup)
}

// RestoreMethod normalizes a restore method, defaulting to override.
func RestoreMethod(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "":
		return RestoreOverride, nil
	case RestoreOverride, RestoreAppend:
		return m, nil
	}
	return "", types.CommandExecutionErrorf("restore method %q is not supported, use %q or %q", s, RestoreOverride, RestoreAppend)
}

// FileName returns the name a configuration of the resource is saved under.
func (r *Runner) FileName(configurationType string) string {
	name := strings.ReplaceAll(strings.TrimSpace(r.Config.Name), " ", "_")
	if len(name) > maxResourceNameLen {
		name = name[:maxResourceNameLen]
	}
	return fmt.Sprintf("%s-%s-%s", name, configurationType, r.now().Format(fileTimestampLayout))
}

func (r *Runner) vrf(v string) string {
	if strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return r.Config.VRFManagementName
}

func copyCommand(src, dst, vrf string) string {
	cmd := fmt.Sprintf("copy %s %s", src, dst)
	if vrf != "" && isRemote(src+" "+dst) {
		cmd += " vrf " + vrf
	}
	return cmd
}

// isRemote reports whether s references a network URL.
func isRemote(s string) bool {
	return strings.Contains(s, "://")
}

// Save copies the running or startup configuration to the folder and returns
// the saved file name.
func (r *Runner) Save(ctx context.Context, req SaveRequest) (string, error) {
	cfgType, err := ConfigurationType(req.ConfigurationType)
	if err != nil {
		return "", err
	}
	folder := strings.TrimRight(strings.TrimSpace(req.FolderPath), "/")
	if folder == "" {
		folder = r.Config.BackupFolder(r.Credentials.BackupPassword)
	}
	if folder == "" {
		return "", types.CommandExecutionErrorf("folder path and backup location are empty")
	}
	fileName := r.FileName(cfgType)
	dst := joinPath(folder, fileName)

	log := logging.FromContext(ctx)
	log.Infof("saving %s configuration to %s", cfgType, folder)
	err = r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		_, err := r.send(ctx, s, copyCommand(cfgType+"-config", dst, r.vrf(req.VRF)))
		return err
	})
	if err != nil {
		return "", err
	}
	return fileName, nil
}

func joinPath(folder, file string) string {
	if strings.HasSuffix(folder, ":") {
		return folder + file
	}
	return folder + "/" + file
}

func (r *Runner) enter(ctx context.Context, st RestoreState) {
	logging.FromContext(ctx).Debugf("restore: %s", st)
	if r.OnRestoreState != nil {
		r.OnRestoreState(st)
	}
}

// Restore applies a saved configuration. The caller holds the global lock.
func (r *Runner) Restore(ctx context.Context, req RestoreRequest) error {
	cfgType, err := ConfigurationType(req.ConfigurationType)
	if err != nil {
		return err
	}
	method, err := RestoreMethod(req.RestoreMethod)
	if err != nil {
		return err
	}
	if cfgType == ConfigurationStartup && method == RestoreAppend {
		return types.CommandExecutionErrorf("startup configuration can only be restored with method %q", RestoreOverride)
	}
	src := strings.TrimSpace(req.Path)
	if src == "" {
		return types.CommandExecutionErrorf("restore path is empty")
	}
	vrf := r.vrf(req.VRF)

	log := logging.FromContext(ctx)
	log.Infof("restoring %s configuration from %s (%s)", cfgType, src, method)

	return r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		r.enter(ctx, RestoreSessionOpen)
		defer r.enter(ctx, RestoreSessionClosed)

		local := src
		if isRemote(src) {
			r.enter(ctx, RestoreTransferring)
			local = r.Profile.FileSystem + path.Base(src)
			if _, err := r.send(ctx, s, copyCommand(src, local, vrf)); err != nil {
				return err
			}
		}

		r.enter(ctx, RestoreApplying)
		var cmd string
		switch {
		case cfgType == ConfigurationRunning && method == RestoreOverride:
			cmd = "configure replace " + local
		case cfgType == ConfigurationRunning:
			cmd = copyCommand(local, "running-config", "")
		default:
			cmd = copyCommand(local, "startup-config", "")
		}
		_, err := r.send(ctx, s, cmd)
		return err
	})
}
