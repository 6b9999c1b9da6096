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

package openstack

import (
	"context"
	"errors"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/identity/v3/roles"

	"github.com/sdcio/shell-server/pkg/resource"
	"github.com/sdcio/shell-server/pkg/types"
)

// Auth are the Keystone credentials of a resource.
type Auth struct {
	IdentityEndpoint string
	Username         string
	Password         string
	DomainName       string
	ProjectName      string
	Region           string
}

// Role is a role assigned on a resource.
type Role struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Links map[string]any `json:"links"`
}

// Identity is the part of the Keystone v3 API the driver uses.
type Identity interface {
	// ListDomainGroupRoles lists the roles a group holds on a domain.
	ListDomainGroupRoles(ctx context.Context, domainID, groupID string) ([]Role, error)
}

// Connector authenticates against Keystone.
type Connector interface {
	Connect(ctx context.Context, a Auth) (Identity, error)
}

// Gophercloud connects with gophercloud.
type Gophercloud struct{}

func (Gophercloud) Connect(ctx context.Context, a Auth) (Identity, error) {
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: a.IdentityEndpoint,
		Username:         a.Username,
		Password:         a.Password,
		DomainName:       a.DomainName,
	}
	if a.ProjectName != "" {
		opts.Scope = &gophercloud.AuthScope{ProjectName: a.ProjectName, DomainName: a.DomainName}
	}
	provider, err := openstack.NewClient(a.IdentityEndpoint)
	if err != nil {
		return nil, types.NewConnectionError(a.IdentityEndpoint, err)
	}
	provider.Context = ctx
	if err := openstack.Authenticate(provider, opts); err != nil {
		return nil, classify(a, err)
	}
	client, err := openstack.NewIdentityV3(provider, gophercloud.EndpointOpts{Region: a.Region})
	if err != nil {
		return nil, types.NewConnectionError(a.IdentityEndpoint, err)
	}
	return &identityClient{endpoint: a.IdentityEndpoint, client: client}, nil
}

type identityClient struct {
	endpoint string
	client   *gophercloud.ServiceClient
}

func (c *identityClient) ListDomainGroupRoles(ctx context.Context, domainID, groupID string) ([]Role, error) {
	c.client.ProviderClient.Context = ctx
	pages, err := roles.ListAssignmentsOnResource(c.client, roles.ListAssignmentsOnResourceOpts{
		DomainID: domainID,
		GroupID:  groupID,
	}).AllPages()
	if err != nil {
		var notFound gophercloud.ErrDefault404
		if errors.As(err, &notFound) {
			return nil, types.CommandExecutionErrorf("domain %q or group %q not found", domainID, groupID)
		}
		return nil, types.NewConnectionError(c.endpoint, err)
	}
	rs, err := roles.ExtractRoles(pages)
	if err != nil {
		return nil, types.CommandExecutionErrorf("decoding role assignments: %v", err)
	}
	result := make([]Role, 0, len(rs))
	for _, r := range rs {
		result = append(result, Role{ID: r.ID, Name: r.Name, Links: r.Links})
	}
	return result, nil
}

func classify(a Auth, err error) error {
	var unauthorized gophercloud.ErrDefault401
	if errors.As(err, &unauthorized) {
		return types.NewCredentialError(a.Username, resource.AttrPassword, err)
	}
	return types.NewConnectionError(a.IdentityEndpoint, err)
}
