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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/sdcio/shell-server/mocks/mockhostapi"
	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/types"
)

type fakeIdentity struct {
	roles map[string][]Role
}

func (f *fakeIdentity) ListDomainGroupRoles(_ context.Context, domainID, groupID string) ([]Role, error) {
	r, ok := f.roles[domainID+"/"+groupID]
	if !ok {
		return nil, types.CommandExecutionErrorf("domain %q or group %q not found", domainID, groupID)
	}
	return r, nil
}

type fakeConnector struct {
	identity *fakeIdentity
	err      error
	auths    []Auth
}

func (f *fakeConnector) Connect(_ context.Context, a Auth) (Identity, error) {
	f.auths = append(f.auths, a)
	if f.err != nil {
		return nil, f.err
	}
	return f.identity, nil
}

func testContext(attrs map[string]string) command.Context {
	a := map[string]string{
		ShellName + ".User":           "admin",
		ShellName + ".Password":       "enc",
		ShellName + ".Controller URL": "http://keystone.example:5000/v3/",
	}
	for k, v := range attrs {
		a[k] = v
	}
	return command.Context{Resource: command.Resource{Name: "keystone", Model: ShellName, Attributes: a}}
}

func newDriver(t *testing.T, conn Connector) (*Driver, *mockhostapi.MockAPI) {
	ctrl := gomock.NewController(t)
	api := mockhostapi.NewMockAPI(ctrl)
	api.EXPECT().DecryptPassword(gomock.Any(), "enc").Return("secret", nil).AnyTimes()
	return New("keystone", driver.Settings{HostAPI: hostapi.Static(api)}, conn), api
}

func TestDriver_ListDomainGroupRoles(t *testing.T) {
	conn := &fakeConnector{identity: &fakeIdentity{roles: map[string][]Role{
		"d1/g1": {{ID: "r1", Name: "admin", Links: map[string]any{"self": "http://keystone.example:5000/v3/roles/r1"}}},
		"d1/g2": {},
	}}}
	d, _ := newDriver(t, conn)

	tests := []struct {
		name     string
		params   command.Params
		want     string
		wantKind types.ErrorKind
	}{
		{
			name:   "one role",
			params: command.Params{"domain_id": "d1", "group_id": "g1"},
			want:   `[{"id":"r1","name":"admin","links":{"self":"http://keystone.example:5000/v3/roles/r1"}}]`,
		},
		{
			name:   "no roles",
			params: command.Params{"domain_id": "d1", "group_id": "g2"},
			want:   `[]`,
		},
		{
			name:     "unknown group",
			params:   command.Params{"domain_id": "d1", "group_id": "g9"},
			wantKind: types.KindCommandExecution,
		},
		{
			name:     "missing group",
			params:   command.Params{"domain_id": "d1"},
			wantKind: types.KindCommandExecution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Execute(context.Background(), driver.Request{
				Command: "list_domain_group_roles",
				Context: testContext(nil),
				Params:  tt.params,
			})
			if kind := types.Kind(err); kind != tt.wantKind {
				t.Fatalf("Execute() error = %v, want kind %q", err, tt.wantKind)
			}
			if got != tt.want {
				t.Errorf("Execute() = %s, want %s", got, tt.want)
			}
		})
	}

	want := Auth{
		IdentityEndpoint: "http://keystone.example:5000/v3/",
		Username:         "admin",
		Password:         "secret",
		DomainName:       "default",
	}
	if diff := cmp.Diff(want, conn.auths[0]); diff != "" {
		t.Errorf("Auth mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus string
		wantMsg    string
	}{
		{name: "reachable", wantStatus: hostapi.LiveStatusOnline, wantMsg: "Health check on resource keystone passed."},
		{name: "unreachable", err: types.NewConnectionError("keystone", errors.New("connection refused")), wantStatus: hostapi.LiveStatusError, wantMsg: "Health check on resource keystone failed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, api := newDriver(t, &fakeConnector{identity: &fakeIdentity{}, err: tt.err})
			api.EXPECT().SetResourceLiveStatus(gomock.Any(), "keystone", tt.wantStatus, tt.wantMsg).Return(nil)
			got, err := d.Execute(context.Background(), driver.Request{Command: "health_check", Context: testContext(nil)})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.wantMsg {
				t.Errorf("Execute() = %q", got)
			}
		})
	}
}

func TestDriver_Inventory(t *testing.T) {
	d, _ := newDriver(t, &fakeConnector{identity: &fakeIdentity{}})
	got, err := d.Execute(context.Background(), driver.Request{
		Command: "get_inventory",
		Context: testContext(map[string]string{ShellName + ".OpenStack Region": "RegionOne"}),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"resources":[],"attributes":[` +
		`{"relative_address":"","attribute_name":"OpenStack Identity.OpenStack Domain Name","attribute_value":"default"},` +
		`{"relative_address":"","attribute_name":"OpenStack Identity.OpenStack Region","attribute_value":"RegionOne"}]}`
	if got != want {
		t.Errorf("Execute() = %s", got)
	}

	_, err = d.Execute(context.Background(), driver.Request{
		Command: "get_inventory",
		Context: testContext(map[string]string{ShellName + ".Controller URL": ""}),
	})
	if types.Kind(err) != types.KindCommandExecution {
		t.Errorf("Execute() without controller URL error = %v", err)
	}
}

// keystone serves the token and role assignment endpoints of Keystone v3.
func keystone(t *testing.T, password string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Auth struct {
				Identity struct {
					Password struct {
						User struct {
							Name     string `json:"name"`
							Password string `json:"password"`
						} `json:"user"`
					} `json:"password"`
				} `json:"identity"`
			} `json:"auth"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body.Auth.Identity.Password.User.Password != password {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":401,"message":"The request you have made requires authentication."}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Subject-Token", "tok-1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":{"methods":["password"],"expires_at":"2099-01-01T00:00:00.000000Z","catalog":[]}}`))
	})
	mux.HandleFunc("/v3/domains/d1/groups/g1/roles", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"roles":[{"id":"r1","name":"admin","links":{"self":"http://keystone/v3/roles/r1"}}],"links":{"self":"http://keystone/v3/domains/d1/groups/g1/roles","next":null,"previous":null}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGophercloud(t *testing.T) {
	srv := keystone(t, "secret")
	ctx := context.Background()

	id, err := Gophercloud{}.Connect(ctx, Auth{
		IdentityEndpoint: srv.URL + "/v3/",
		Username:         "admin",
		Password:         "secret",
		DomainName:       "default",
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	got, err := id.ListDomainGroupRoles(ctx, "d1", "g1")
	if err != nil {
		t.Fatalf("ListDomainGroupRoles() error = %v", err)
	}
	want := []Role{{ID: "r1", Name: "admin", Links: map[string]any{"self": "http://keystone/v3/roles/r1"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListDomainGroupRoles() mismatch (-want +got):\n%s", diff)
	}

	_, err = Gophercloud{}.Connect(ctx, Auth{
		IdentityEndpoint: srv.URL + "/v3/",
		Username:         "admin",
		Password:         "wrong",
		DomainName:       "default",
	})
	if types.Kind(err) != types.KindCredential {
		t.Errorf("Connect() with a wrong password error = %v, want CredentialError", err)
	}
}
