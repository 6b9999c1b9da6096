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

package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/resource"
	"github.com/sdcio/shell-server/pkg/types"
)

var errNoAPI = errors.New("host API is not available")

// Credentials are the decrypted secrets of one resource.
type Credentials struct {
	Username       string
	Password       string
	EnablePassword string
	SNMPV3Password string
	SNMPV3PrivKey  string
	BackupPassword string
}

// Resolver extracts the credentials of a resource and has the host decrypt
// them.
type Resolver struct {
	api hostapi.API
}

func NewResolver(api hostapi.API) *Resolver {
	return &Resolver{api: api}
}

// Resolve returns the decrypted credentials of the resource. User and
// password are mandatory, the remaining secrets stay empty when the resource
// does not carry them.
func (r *Resolver) Resolve(ctx context.Context, cfg resource.Config) (Credentials, error) {
	user := strings.TrimSpace(cfg.User)
	if user == "" {
		return Credentials{}, types.NewCredentialError(cfg.Name, cfg.AttributeName(resource.AttrUser), nil)
	}
	if cfg.Password == "" {
		return Credentials{}, types.NewCredentialError(cfg.Name, cfg.AttributeName(resource.AttrPassword), nil)
	}
	c := Credentials{Username: user}
	var err error
	if c.Password, err = r.decrypt(ctx, cfg, resource.AttrPassword, cfg.Password); err != nil {
		return Credentials{}, err
	}
	if c.EnablePassword, err = r.decrypt(ctx, cfg, resource.AttrEnablePassword, cfg.EnablePassword); err != nil {
		return Credentials{}, err
	}
	if c.SNMPV3Password, err = r.decrypt(ctx, cfg, resource.AttrSNMPV3Password, cfg.SNMPV3Password); err != nil {
		return Credentials{}, err
	}
	if c.SNMPV3PrivKey, err = r.decrypt(ctx, cfg, resource.AttrSNMPV3PrivateKey, cfg.SNMPV3PrivateKey); err != nil {
		return Credentials{}, err
	}
	if c.BackupPassword, err = r.decrypt(ctx, cfg, resource.AttrBackupPassword, cfg.BackupPassword); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

func (r *Resolver) decrypt(ctx context.Context, cfg resource.Config, attr, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if r.api == nil {
		return "", types.NewCredentialError(cfg.Name, cfg.AttributeName(attr), errNoAPI)
	}
	plain, err := r.api.DecryptPassword(ctx, value)
	if err != nil {
		return "", types.NewCredentialError(cfg.Name, cfg.AttributeName(attr), err)
	}
	return plain, nil
}
