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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/sdcio/shell-server/mocks/mockhostapi"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/session/testhelper"
	"github.com/sdcio/shell-server/pkg/types"
)

const linuxTemplate = `# network setup
hostnamectl set-hostname {hostname}

ip addr add {ip}/{prefix} dev eth1
`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DefaultTemplate+".txt"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestParseDescription(t *testing.T) {
	got := ParseDescription("hostname: web01\r\nip=10.0.0.5\nprefix : 24\nfree text line\n: orphan")
	want := map[string]string{"hostname": "web01", "ip": "10.0.0.5", "prefix": "24"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseDescription() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTemplate(t *testing.T) {
	dir := writeTemplate(t, linuxTemplate)

	got, err := RenderTemplate(dir, DefaultTemplate, map[string]string{"hostname": "web01", "ip": "10.0.0.5", "prefix": "24"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hostnamectl set-hostname web01", "ip addr add 10.0.0.5/24 dev eth1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RenderTemplate() mismatch (-want +got):\n%s", diff)
	}

	_, err = RenderTemplate(dir, DefaultTemplate, map[string]string{"hostname": "web01"})
	if types.Kind(err) != types.KindCommandExecution || !strings.Contains(err.Error(), "ip, prefix") {
		t.Errorf("RenderTemplate() with missing values error = %v", err)
	}
	if _, err := RenderTemplate(dir, "missing", nil); err == nil {
		t.Error("RenderTemplate() of a missing file expected an error")
	}
}

func TestParseCommandList(t *testing.T) {
	if diff := cmp.Diff([]string{"uname -a", "uptime"}, ParseCommandList(`["uname -a","uptime"]`)); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff([]string{"uname -a"}, ParseCommandList("uname -a")); diff != "" {
		t.Error(diff)
	}
	if ParseCommandList("  ") != nil {
		t.Error("blank input should yield no commands")
	}
}

func TestRunner_RunParsedConfig(t *testing.T) {
	tests := []struct {
		name        string
		description string
		replies     []testhelper.Reply
		want        []string
		wantSent    []string
	}{
		{
			name:        "rendered and sent",
			description: "hostname: web01\nip: 10.0.0.5\nprefix: 24",
			replies:     []testhelper.Reply{{Match: "hostnamectl", Output: "\n"}, {Match: "ip addr", Output: "done\n"}},
			want:        []string{"\ndone"},
			wantSent:    []string{"hostnamectl set-hostname web01", "ip addr add 10.0.0.5/24 dev eth1"},
		},
		{
			name:        "missing placeholder reported in result",
			description: "hostname: web01",
			want:        []string{`template "linux_server": no value for ip, prefix`},
		},
		{
			name:        "command failure reported in result",
			description: "hostname: web01\nip: 10.0.0.5\nprefix: 24",
			replies:     []testhelper.Reply{{Match: "hostnamectl", Output: "bash: hostnamectl: command not found\n"}},
			wantSent:    []string{"hostnamectl set-hostname web01"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := mockhostapi.NewMockAPI(ctrl)
			api.EXPECT().GetReservationDetails(gomock.Any(), "res-1").Return(&hostapi.ReservationDetails{ID: "res-1", Description: tt.description}, nil)

			script := testhelper.NewScript(tt.replies...)
			r := newRunner(t, script, nil)
			r.Profile = Linux
			r.API = api

			out, err := r.RunParsedConfig(context.Background(), writeTemplate(t, linuxTemplate), DefaultTemplate, "res-1")
			if err != nil {
				t.Fatalf("RunParsedConfig() error = %v", err)
			}
			var got []string
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 {
				t.Fatalf("RunParsedConfig() = %v, want one result", got)
			}
			if tt.want != nil {
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("result mismatch (-want +got):\n%s", diff)
				}
			} else if !strings.Contains(got[0], "command not found") {
				t.Errorf("result %q does not carry the failure", got[0])
			}
			if diff := cmp.Diff(tt.wantSent, script.Sent()); diff != "" {
				t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
