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

// Package openstack is the shell driver of an OpenStack Keystone v3 identity
// service.
package openstack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/retry"
	"github.com/sdcio/shell-server/pkg/runner"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	Kind      = "openstack-identity"
	ShellName = "OpenStack Identity"

	AttrControllerURL = "Controller URL"
	AttrDomainName    = "OpenStack Domain Name"
	AttrProjectName   = "OpenStack Project Name"
	AttrRegion        = "OpenStack Region"

	defaultDomainName = "default"
)

// Driver serves one Keystone endpoint.
type Driver struct {
	*driver.Base

	connector Connector
}

// Factory returns the registry factory of the driver. A nil connector uses
// gophercloud.
func Factory(conn Connector) driver.Factory {
	return func(name string, s driver.Settings) (driver.Driver, error) {
		return New(name, s, conn), nil
	}
}

func New(name string, s driver.Settings, conn Connector) *Driver {
	if conn == nil {
		conn = Gophercloud{}
	}
	d := &Driver{connector: conn}
	d.Base = driver.NewBase(driver.Options{
		Kind:               Kind,
		Name:               name,
		ShellName:          ShellName,
		ResolveCredentials: true,
	}, s,
		driver.Command{Name: "get_inventory", Exclusive: true, Handler: d.getInventory},
		driver.Command{Name: "list_domain_group_roles", Handler: d.listDomainGroupRoles},
		driver.Command{Name: "health_check", Handler: d.healthCheck},
	)
	return d
}

func (d *Driver) auth(c *driver.Call) (Auth, error) {
	a := Auth{
		IdentityEndpoint: strings.TrimSpace(c.Config.Attribute(AttrControllerURL)),
		Username:         c.Credentials.Username,
		Password:         c.Credentials.Password,
		DomainName:       strings.TrimSpace(c.Config.Attribute(AttrDomainName)),
		ProjectName:      strings.TrimSpace(c.Config.Attribute(AttrProjectName)),
		Region:           strings.TrimSpace(c.Config.Attribute(AttrRegion)),
	}
	if a.IdentityEndpoint == "" {
		return a, types.CommandExecutionErrorf("attribute %q is empty", c.Config.AttributeName(AttrControllerURL))
	}
	if a.DomainName == "" {
		a.DomainName = defaultDomainName
	}
	return a, nil
}

func (d *Driver) connect(ctx context.Context, c *driver.Call) (Identity, error) {
	a, err := d.auth(c)
	if err != nil {
		return nil, err
	}
	return retry.DoValue(ctx, d.Settings().Retry, "keystone authentication", func(ctx context.Context) (Identity, error) {
		return d.connector.Connect(ctx, a)
	})
}

// getInventory reports the endpoint attributes of the resource.
func (d *Driver) getInventory(ctx context.Context, c *driver.Call) (string, error) {
	if _, err := d.connect(ctx, c); err != nil {
		return "", err
	}
	a, _ := d.auth(c)
	details := runner.AutoloadDetails{Attributes: []runner.AutoloadAttribute{
		{AttributeName: c.Config.AttributeName(AttrDomainName), AttributeValue: a.DomainName},
	}}
	if a.Region != "" {
		details.Attributes = append(details.Attributes, runner.AutoloadAttribute{
			AttributeName: c.Config.AttributeName(AttrRegion), AttributeValue: a.Region,
		})
	}
	return details.JSON()
}

func (d *Driver) listDomainGroupRoles(ctx context.Context, c *driver.Call) (string, error) {
	domainID := strings.TrimSpace(c.Params.Get("domain_id"))
	groupID := strings.TrimSpace(c.Params.Get("group_id"))
	if domainID == "" || groupID == "" {
		return "", types.CommandExecutionErrorf("domain_id and group_id are required")
	}
	id, err := d.connect(ctx, c)
	if err != nil {
		return "", err
	}
	roles, err := id.ListDomainGroupRoles(ctx, domainID, groupID)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Infof("group %s holds %d roles on domain %s", groupID, len(roles), domainID)
	b, err := json.Marshal(roles)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Driver) healthCheck(ctx context.Context, c *driver.Call) (string, error) {
	log := logging.FromContext(ctx)
	status := hostapi.LiveStatusOnline
	msg := fmt.Sprintf("Health check on resource %s passed.", c.Config.Name)
	if _, err := d.connect(ctx, c); err != nil {
		log.Errorf("health check failed: %v", err)
		status = hostapi.LiveStatusError
		msg = fmt.Sprintf("Health check on resource %s failed.", c.Config.Name)
	}
	if c.API != nil {
		if err := c.API.SetResourceLiveStatus(ctx, c.Config.Name, status, msg); err != nil {
			log.Warnf("failed to set live status: %v", err)
		}
	}
	return msg, nil
}
