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

package centos

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/sdcio/shell-server/mocks/mockhostapi"
	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/session/testhelper"
	"github.com/sdcio/shell-server/pkg/types"
)

func testContext() command.Context {
	return command.Context{
		Resource: command.Resource{
			Name:    "web01",
			Address: "192.0.2.20",
			Model:   "Centos",
			Attributes: map[string]string{
				"Centos.User":     "root",
				"Centos.Password": "enc",
			},
		},
		Reservation: command.Reservation{ReservationID: "res-1"},
	}
}

type fixture struct {
	script  *testhelper.Script
	api     *mockhostapi.MockAPI
	targets []session.Target
	driver  *Driver
}

func newFixture(t *testing.T, templatesDir string, replies ...testhelper.Reply) *fixture {
	ctrl := gomock.NewController(t)
	f := &fixture{script: testhelper.NewScript(replies...), api: mockhostapi.NewMockAPI(ctrl)}
	f.api.EXPECT().DecryptPassword(gomock.Any(), "enc").Return("secret", nil).AnyTimes()
	inner := testhelper.Factory(t, ctrl, f.script)
	f.driver = New("web01", driver.Settings{
		TemplatesDir: templatesDir,
		HostAPI:      hostapi.Static(f.api),
		Sessions: session.FactoryFunc(func(ctx context.Context, tg session.Target) (session.Session, error) {
			f.targets = append(f.targets, tg)
			return inner.Open(ctx, tg)
		}),
	})
	return f
}

func TestDriver_SendCommand(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		replies  []testhelper.Reply
		want     string
		wantKind types.ErrorKind
		wantSent []string
	}{
		{
			name:     "single command",
			command:  "uname -r",
			replies:  []testhelper.Reply{{Match: "uname", Output: "3.10.0-1160.el7.x86_64\n"}},
			want:     "3.10.0-1160.el7.x86_64",
			wantSent: []string{"uname -r"},
		},
		{
			name:     "command list",
			command:  `["hostname", "uptime"]`,
			replies:  []testhelper.Reply{{Match: "hostname", Output: "web01\n"}, {Match: "uptime", Output: "up 3 days\n"}},
			want:     "web01\nup 3 days",
			wantSent: []string{"hostname", "uptime"},
		},
		{
			name:     "command not found",
			command:  "ifconfig",
			replies:  []testhelper.Reply{{Match: "ifconfig", Output: "bash: ifconfig: command not found\n"}},
			wantKind: types.KindCommandExecution,
			wantSent: []string{"ifconfig"},
		},
		{
			name:     "empty",
			wantKind: types.KindCommandExecution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "", tt.replies...)
			got, err := f.driver.Execute(context.Background(), driver.Request{
				Command: "send_command",
				Context: testContext(),
				Params:  command.Params{"command": tt.command},
			})
			if kind := types.Kind(err); kind != tt.wantKind {
				t.Fatalf("Execute() error = %v, want kind %q", err, tt.wantKind)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantSent, f.script.Sent()); diff != "" {
				t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
			}
			for _, tg := range f.targets {
				if tg.Type != session.TransportExec || tg.Username != "root" || tg.Password != "secret" {
					t.Errorf("unexpected session target %+v", tg)
				}
			}
		})
	}
}

func TestDriver_RunParsedConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "linux_server.txt"), []byte("hostnamectl set-hostname {hostname}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, dir)
	f.api.EXPECT().GetReservationDetails(gomock.Any(), "res-1").
		Return(&hostapi.ReservationDetails{ID: "res-1", Description: "hostname: web01"}, nil)

	got, err := f.driver.Execute(context.Background(), driver.Request{Command: "run_parsed_config", Context: testContext()})
	if err != nil {
		t.Fatal(err)
	}
	if got != `[""]` {
		t.Errorf("Execute() = %s", got)
	}
	if diff := cmp.Diff([]string{"hostnamectl set-hostname web01"}, f.script.Sent()); diff != "" {
		t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_RunParsedConfig_HostAPIFailure(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.api.EXPECT().GetReservationDetails(gomock.Any(), "res-1").Return(nil, errors.New("reservation not found"))
	if _, err := f.driver.Execute(context.Background(), driver.Request{Command: "run_parsed_config", Context: testContext()}); err == nil {
		t.Fatal("Execute() expected an error")
	}
}

func TestDriver_Inventory(t *testing.T) {
	f := newFixture(t, "")
	got, err := f.driver.Execute(context.Background(), driver.Request{Command: "get_inventory", Context: testContext()})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"resources":[],"attributes":[]}` {
		t.Errorf("Execute() = %s", got)
	}
	if f.script.Opened() != 0 {
		t.Error("get_inventory opened a session")
	}
}

func TestDriver_Orchestration(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if got, err := f.driver.Execute(ctx, driver.Request{Command: "orchestration_save", Context: testContext()}); err != nil || got != "" {
		t.Errorf("orchestration_save = %q, %v", got, err)
	}
	if _, err := f.driver.Execute(ctx, driver.Request{
		Command: "orchestration_save",
		Context: testContext(),
		Params:  command.Params{"mode": "deep"},
	}); types.Kind(err) != types.KindCommandExecution {
		t.Errorf("deep orchestration_save error = %v", err)
	}

	info := `{"saved_artifact":{"artifact_type":"sftp","identifier":"//10.0.0.1/web01.tar"},"resource_name":"web02","restore_rules":{"requires_same_resource":true},"created_date":"2024-03-05T14:07:09.000000"}`
	if _, err := f.driver.Execute(ctx, driver.Request{
		Command: "orchestration_restore",
		Context: testContext(),
		Params:  command.Params{"saved_artifact_info": info},
	}); types.Kind(err) != types.KindCommandExecution {
		t.Errorf("orchestration_restore of another resource error = %v", err)
	}
}

func TestDriver_MissingModelCredentials(t *testing.T) {
	f := newFixture(t, "")
	cc := testContext()
	cc.Resource.Model = "Ubuntu"
	if _, err := f.driver.Execute(context.Background(), driver.Request{Command: "send_command", Context: cc, Params: command.Params{"command": "id"}}); types.Kind(err) != types.KindCredential {
		t.Fatalf("Execute() error = %v, want CredentialError", err)
	}
}
