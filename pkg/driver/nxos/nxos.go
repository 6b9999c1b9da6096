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

// Package nxos is the shell driver of Cisco NX-OS switches.
package nxos

import (
	"context"
	"fmt"
	"strings"

	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/resource"
	"github.com/sdcio/shell-server/pkg/runner"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	Kind      = "cisco-nxos"
	ShellName = "Cisco NXOS Switch 2G"

	platform = "cisco_nxos"
)

var SupportedOS = []string{"NX[ -]?OS|NXOS"}

// Driver serves one NX-OS switch.
type Driver struct {
	*driver.Base

	onRestoreState func(runner.RestoreState)
}

type Option func(*Driver)

// WithRestoreStates reports every restore state transition to fn, including
// the lock transitions around it.
func WithRestoreStates(fn func(runner.RestoreState)) Option {
	return func(d *Driver) { d.onRestoreState = fn }
}

// Factory returns the registry factory of the driver.
func Factory(opts ...Option) driver.Factory {
	return func(name string, s driver.Settings) (driver.Driver, error) {
		return New(name, s, opts...), nil
	}
}

func New(name string, s driver.Settings, opts ...Option) *Driver {
	d := &Driver{}
	for _, o := range opts {
		o(d)
	}
	d.Base = driver.NewBase(driver.Options{
		Kind:               Kind,
		Name:               name,
		ShellName:          ShellName,
		SupportedOS:        SupportedOS,
		ResolveCredentials: true,
		LockObserver:       d,
	}, s,
		driver.Command{Name: "get_inventory", Exclusive: true, Handler: d.getInventory},
		driver.Command{Name: "run_custom_command", Handler: d.runCustomCommand},
		driver.Command{Name: "run_custom_config_command", Handler: d.runCustomConfigCommand},
		driver.Command{Name: "ApplyConnectivityChanges", Handler: d.applyConnectivityChanges},
		driver.Command{Name: "save", Handler: d.save},
		driver.Command{Name: "save_demo", Handler: d.saveDemo},
		driver.Command{Name: "restore", Exclusive: true, Handler: d.restore},
		driver.Command{Name: "restore_demo", Exclusive: true, Handler: d.restoreDemo},
		driver.Command{Name: "orchestration_save", Handler: d.orchestrationSave},
		driver.Command{Name: "orchestration_restore", Exclusive: true, Handler: d.orchestrationRestore},
		driver.Command{Name: "load_firmware", Exclusive: true, Handler: d.loadFirmware},
		driver.Command{Name: "health_check", Handler: d.healthCheck},
		driver.Command{Name: "shutdown", Handler: d.shutdown},
	)
	return d
}

func isRestore(op string) bool {
	return strings.Contains(op, "restore")
}

// Acquired implements lock.Observer.
func (d *Driver) Acquired(op string) {
	if isRestore(op) {
		d.restoreState(runner.RestoreLockAcquired)
	}
}

// Released implements lock.Observer. A restore returns to Idle once the lock
// is released.
func (d *Driver) Released(op string) {
	if isRestore(op) {
		d.restoreState(runner.RestoreLockReleased)
		d.restoreState(runner.RestoreIdle)
	}
}

func (d *Driver) restoreState(st runner.RestoreState) {
	if d.onRestoreState != nil {
		d.onRestoreState(st)
	}
}

func (d *Driver) runner(c *driver.Call) *runner.Runner {
	s := d.Settings()
	return &runner.Runner{
		Profile:        runner.NXOS,
		Config:         c.Config,
		Credentials:    c.Credentials,
		Pool:           d.SessionPool(c, platform, ""),
		API:            c.API,
		SNMP:           s.SNMP,
		Now:            s.Now,
		OnRestoreState: d.restoreState,
	}
}

func (d *Driver) getInventory(ctx context.Context, c *driver.Call) (string, error) {
	log := logging.FromContext(ctx)
	log.Info("Autoload started")
	details, err := d.runner(c).Discover(ctx)
	if err != nil {
		return "", err
	}
	log.Infof("Autoload completed, %d resources", len(details.Resources))
	return details.JSON()
}

func (d *Driver) runCustomCommand(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).RunCustomCommand(ctx, c.Params.Get("custom_command"))
}

func (d *Driver) runCustomConfigCommand(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).RunCustomConfigCommand(ctx, c.Params.Get("custom_command"))
}

func (d *Driver) applyConnectivityChanges(ctx context.Context, c *driver.Call) (string, error) {
	log := logging.FromContext(ctx)
	request := c.Params.Get("request")
	log.Infof("applying connectivity changes, request: %s", request)
	out, err := d.runner(c).ApplyConnectivityChanges(ctx, request)
	if err != nil {
		return "", err
	}
	log.Infof("connectivity changes applied, response: %s", out)
	return out, nil
}

func (d *Driver) save(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).Save(ctx, runner.SaveRequest{
		FolderPath:        c.Params.Get("folder_path"),
		ConfigurationType: c.Params.Get("configuration_type"),
		VRF:               c.Params.Get("vrf_management_name"),
	})
}

// tftpFolder returns the tftp_server attribute of the resource as URL.
func tftpFolder(c *driver.Call) (string, error) {
	folder := strings.TrimRight(strings.TrimSpace(c.Config.TFTPServer), "/")
	if folder == "" {
		return "", types.CommandExecutionErrorf("attribute %q is empty", c.Config.AttributeName(resource.AttrTFTPServer))
	}
	if !strings.Contains(folder, "://") {
		folder = "tftp://" + folder
	}
	return folder, nil
}

func (d *Driver) saveDemo(ctx context.Context, c *driver.Call) (string, error) {
	folder, err := tftpFolder(c)
	if err != nil {
		return "", err
	}
	c.ReportToReservation(ctx, fmt.Sprintf("starting to save to %s", folder))
	return d.runner(c).Save(ctx, runner.SaveRequest{
		FolderPath:        folder,
		ConfigurationType: c.Params.Get("configuration_type"),
	})
}

func (d *Driver) restore(ctx context.Context, c *driver.Call) (string, error) {
	c.ReportToReservation(ctx, "Started Restore")
	err := d.runner(c).Restore(ctx, runner.RestoreRequest{
		Path:              c.Params.Get("path"),
		ConfigurationType: c.Params.Get("configuration_type"),
		RestoreMethod:     c.Params.Get("restore_method"),
		VRF:               c.Params.Get("vrf_management_name"),
	})
	return "", err
}

func (d *Driver) restoreDemo(ctx context.Context, c *driver.Call) (string, error) {
	folder, err := tftpFolder(c)
	if err != nil {
		return "", err
	}
	filename := strings.TrimLeft(strings.TrimSpace(c.Params.Get("filename")), "/")
	if filename == "" {
		return "", types.CommandExecutionErrorf("filename is empty")
	}
	path := folder + "/" + filename
	c.ReportToReservation(ctx, fmt.Sprintf("starting to restore from %s", path))
	err = d.runner(c).Restore(ctx, runner.RestoreRequest{
		Path:              path,
		ConfigurationType: c.Params.Get("configuration_type"),
		RestoreMethod:     runner.RestoreAppend,
	})
	return "", err
}

func (d *Driver) orchestrationSave(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).OrchestrationSave(ctx, c.Params.Get("mode"), c.Params.Get("custom_params"))
}

func (d *Driver) orchestrationRestore(ctx context.Context, c *driver.Call) (string, error) {
	return "", d.runner(c).OrchestrationRestore(ctx, c.Params.Get("saved_artifact_info"), c.Params.Get("custom_params"))
}

func (d *Driver) loadFirmware(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).LoadFirmware(ctx, c.Params.Get("path"), c.Params.Get("vrf_management_name"))
}

func (d *Driver) healthCheck(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).HealthCheck(ctx)
}

func (d *Driver) shutdown(ctx context.Context, c *driver.Call) (string, error) {
	return d.runner(c).Shutdown(ctx)
}
