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

// Package centos is the shell driver of CentOS and other Linux hosts reached
// over SSH.
package centos

import (
	"context"

	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/retry"
	"github.com/sdcio/shell-server/pkg/runner"
	"github.com/sdcio/shell-server/pkg/session"
)

const (
	Kind = "centos"

	platform = "linux"
)

// Driver serves one Linux host. Its attributes are prefixed with the resource
// model, "<Model>.User" and "<Model>.Password".
type Driver struct {
	*driver.Base
}

// Factory returns the registry factory of the driver.
func Factory() driver.Factory {
	return func(name string, s driver.Settings) (driver.Driver, error) {
		return New(name, s), nil
	}
}

func New(name string, s driver.Settings) *Driver {
	d := &Driver{}
	d.Base = driver.NewBase(driver.Options{
		Kind:               Kind,
		Name:               name,
		ResolveCredentials: true,
	}, s,
		driver.Command{Name: "get_inventory", Exclusive: true, Handler: d.getInventory},
		driver.Command{Name: "send_command", Handler: d.sendCommand},
		driver.Command{Name: "run_parsed_config", Handler: d.runParsedConfig},
		driver.Command{Name: "orchestration_save", Handler: d.orchestrationSave},
		driver.Command{Name: "orchestration_restore", Exclusive: true, Handler: d.orchestrationRestore},
	)
	return d
}

func (d *Driver) runner(c *driver.Call) *runner.Runner {
	s := d.Settings()
	return &runner.Runner{
		Profile:     runner.Linux,
		Config:      c.Config,
		Credentials: c.Credentials,
		Pool:        d.SessionPool(c, platform, session.TransportExec),
		API:         c.API,
		Now:         s.Now,
	}
}

// getInventory reports the host without sub resources.
func (d *Driver) getInventory(context.Context, *driver.Call) (string, error) {
	return runner.AutoloadDetails{}.JSON()
}

func (d *Driver) sendCommand(ctx context.Context, c *driver.Call) (string, error) {
	r := d.runner(c)
	cmds := runner.ParseCommandList(c.Params.Get("command"))
	return retry.DoValue(ctx, d.Settings().Retry, "send_command", func(ctx context.Context) (string, error) {
		return r.SendCommands(ctx, cmds)
	})
}

func (d *Driver) runParsedConfig(ctx context.Context, c *driver.Call) (string, error) {
	name := c.Params.GetDefault("template", runner.DefaultTemplate)
	return d.runner(c).RunParsedConfig(ctx, d.Settings().TemplatesDir, name, c.Context.Reservation.ReservationID)
}

// orchestrationSave has nothing to save, a host keeps no configuration the
// sandbox could restore.
func (d *Driver) orchestrationSave(ctx context.Context, c *driver.Call) (string, error) {
	if _, err := runner.Mode(c.Params.Get("mode")); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("orchestration save: nothing to save")
	return "", nil
}

func (d *Driver) orchestrationRestore(ctx context.Context, c *driver.Call) (string, error) {
	raw := c.Params.Get("saved_artifact_info")
	if raw == "" {
		logging.FromContext(ctx).Info("orchestration restore: nothing to restore")
		return "", nil
	}
	info, err := runner.ParseSavedArtifactInfo(raw)
	if err != nil {
		return "", err
	}
	if err := info.Validate(c.Config.Name); err != nil {
		return "", err
	}
	return info.SavedArtifact.Identifier, nil
}
