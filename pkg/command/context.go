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

// Package command holds the context the orchestration host sends along with
// every driver command. Values are decoded once per call and passed by value.
package command

import (
	"fmt"
	"maps"
	"strings"
)

// Resource describes the resource a command runs on.
type Resource struct {
	Name       string            `json:"name,omitempty"`
	FullName   string            `json:"fullname,omitempty"`
	Address    string            `json:"address,omitempty"`
	Model      string            `json:"model,omitempty"`
	Family     string            `json:"family,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Reservation identifies the sandbox reservation a command runs in.
type Reservation struct {
	ReservationID   string `json:"reservation_id,omitempty"`
	Domain          string `json:"domain,omitempty"`
	Owner           string `json:"owner_user,omitempty"`
	EnvironmentName string `json:"environment_name,omitempty"`
}

// Connectivity tells the driver how to reach the host API.
type Connectivity struct {
	ServerAddress  string `json:"server_address,omitempty"`
	AdminAuthToken string `json:"admin_auth_token,omitempty"`
	APIPort        int    `json:"cloudshell_api_port,omitempty"`
}

// Context is the resource command context.
type Context struct {
	Resource     Resource     `json:"resource"`
	Reservation  Reservation  `json:"reservation"`
	Connectivity Connectivity `json:"connectivity"`
}

// InitContext is sent once when a driver instance is initialized.
type InitContext struct {
	Resource     Resource     `json:"resource"`
	Connectivity Connectivity `json:"connectivity"`
}

// Context returns a resource command context carrying the same resource and
// connectivity without a reservation.
func (c InitContext) Context() Context {
	return Context{
		Resource:     c.Resource.clone(),
		Connectivity: c.Connectivity,
	}
}

func (r Resource) clone() Resource {
	r.Attributes = maps.Clone(r.Attributes)
	return r
}

// ModelAttribute looks up "<prefix>.<name>" first and then the bare name.
func (r Resource) ModelAttribute(prefix, name string) (string, bool) {
	if prefix != "" {
		if v, ok := r.Attributes[prefix+"."+name]; ok {
			return v, true
		}
	}
	v, ok := r.Attributes[name]
	return v, ok
}

// Validate checks the fields every driver command depends on.
func (c Context) Validate() error {
	if strings.TrimSpace(c.Resource.Name) == "" {
		return fmt.Errorf("command context: missing resource name")
	}
	return nil
}

// Params carries the named command parameters.
type Params map[string]string

// Get returns the value of a parameter or an empty string.
func (p Params) Get(name string) string {
	if p == nil {
		return ""
	}
	return p[name]
}

// GetDefault returns the value of a parameter, or def when it is empty.
func (p Params) GetDefault(name, def string) string {
	if v := strings.TrimSpace(p.Get(name)); v != "" {
		return v
	}
	return def
}
