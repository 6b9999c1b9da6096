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

package nxos

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/mock/gomock"

	"github.com/sdcio/shell-server/mocks/mockhostapi"
	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/runner"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/session/testhelper"
	"github.com/sdcio/shell-server/pkg/snmp"
	"github.com/sdcio/shell-server/pkg/types"
)

var testNow = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

func testContext(attrs map[string]string) command.Context {
	a := map[string]string{
		ShellName + ".User":                       "admin",
		ShellName + ".Password":                   "enc",
		ShellName + ".VRF Management Name":        "management",
		ShellName + ".tftp_server":                "10.1.1.1/cfg",
		ShellName + ".Sessions Concurrency Limit": "4",
	}
	maps.Copy(a, attrs)
	return command.Context{
		Resource:    command.Resource{Name: "sw1", Address: "192.0.2.10", Model: ShellName, Attributes: a},
		Reservation: command.Reservation{ReservationID: "res-1", Domain: "Global"},
	}
}

func newAPI(ctrl *gomock.Controller) *mockhostapi.MockAPI {
	api := mockhostapi.NewMockAPI(ctrl)
	api.EXPECT().DecryptPassword(gomock.Any(), "enc").Return("secret", nil).AnyTimes()
	return api
}

func settings(api hostapi.API, sessions session.Factory) driver.Settings {
	return driver.Settings{
		LockTimeout: 5 * time.Second,
		HostAPI:     hostapi.Static(api),
		Sessions:    sessions,
		Now:         func() time.Time { return testNow },
	}
}

type stateRecorder struct {
	m      sync.Mutex
	states []runner.RestoreState
}

func (r *stateRecorder) record(st runner.RestoreState) {
	r.m.Lock()
	defer r.m.Unlock()
	r.states = append(r.states, st)
}

func (r *stateRecorder) get() []runner.RestoreState {
	r.m.Lock()
	defer r.m.Unlock()
	return append([]runner.RestoreState(nil), r.states...)
}

// trackingSession records how many device operations run at the same time
// across all sessions sharing the counters.
type trackingSession struct {
	active  *atomic.Int32
	maxSeen *atomic.Int32
	hold    <-chan struct{}
	entered chan<- struct{}
}

func (s *trackingSession) enter() func() {
	n := s.active.Add(1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return func() { s.active.Add(-1) }
}

func (s *trackingSession) Send(ctx context.Context, cmd string) (string, error) {
	defer s.enter()()
	if strings.HasPrefix(cmd, "dir ") {
		if s.entered != nil {
			s.entered <- struct{}{}
		}
		if s.hold != nil {
			select {
			case <-s.hold:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return cmd + "\n", nil
	}
	return "", nil
}

func (s *trackingSession) SendConfig(ctx context.Context, cmds []string) (string, error) {
	defer s.enter()()
	return "", nil
}

func (s *trackingSession) SendInteractive(ctx context.Context, input, _ string) (string, error) {
	defer s.enter()()
	return "", nil
}

func (s *trackingSession) Alive() bool  { return true }
func (s *trackingSession) Close() error { return nil }

func TestDriver_Initialize(t *testing.T) {
	d := New("sw1", driver.Settings{})
	out, err := d.Initialize(context.Background(), command.InitContext{Resource: testContext(nil).Resource})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Finished initializing" {
		t.Errorf("Initialize() = %q", out)
	}
	if !d.Initialized() {
		t.Error("driver not marked initialized")
	}
	if _, err := d.Initialize(context.Background(), command.InitContext{}); err == nil {
		t.Error("Initialize() without a resource name expected an error")
	}
}

func TestDriver_Commands(t *testing.T) {
	want := []string{
		"ApplyConnectivityChanges", "get_inventory", "health_check", "load_firmware",
		"orchestration_restore", "orchestration_save", "restore", "restore_demo",
		"run_custom_command", "run_custom_config_command", "save", "save_demo", "shutdown",
	}
	if diff := cmp.Diff(want, New("sw1", driver.Settings{}).Commands()); diff != "" {
		t.Errorf("Commands() mismatch (-want +got):\n%s", diff)
	}
}

func TestDriver_ExclusiveCommandsNeverOverlap(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := newAPI(ctrl)
	api.EXPECT().WriteMessageToReservationOutput(gomock.Any(), "res-1", gomock.Any()).Return(nil).AnyTimes()

	var active, maxSeen atomic.Int32
	factory := session.FactoryFunc(func(context.Context, session.Target) (session.Session, error) {
		return &trackingSession{active: &active, maxSeen: &maxSeen}, nil
	})
	rec := &stateRecorder{}
	d := New("sw1", settings(api, factory), WithRestoreStates(rec.record))

	reqs := []driver.Request{
		{Command: "restore", Params: command.Params{"path": "tftp://10.1.1.1/cfg/sw1-running-050324-140709"}},
		{Command: "load_firmware", Params: command.Params{"path": "tftp://10.1.1.1/images/nxos.bin"}},
		{Command: "orchestration_restore", Params: command.Params{"saved_artifact_info": `{"saved_artifact":{"artifact_type":"bootflash","identifier":"sw1-running-050324-140709"},"resource_name":"sw1","restore_rules":{"requires_same_resource":true},"created_date":"2024-03-05T14:07:09.000000"}`}},
	}
	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 12; i++ {
		req := reqs[i%len(reqs)]
		req.Context = testContext(nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Execute(context.Background(), req); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Execute() error = %v", err)
	}

	if got := maxSeen.Load(); got != 1 {
		t.Errorf("exclusive commands overlapped: %d device operations at once", got)
	}
	// every restore runs from LockAcquired to LockReleased before the next one starts
	held := false
	for _, st := range rec.get() {
		switch st {
		case runner.RestoreLockAcquired:
			if held {
				t.Fatalf("lock acquired twice without release: %v", rec.get())
			}
			held = true
		case runner.RestoreLockReleased:
			held = false
		case runner.RestoreIdle:
			if held {
				t.Fatalf("restore idle while holding the lock: %v", rec.get())
			}
		default:
			if !held {
				t.Fatalf("restore state %s outside the lock: %v", st, rec.get())
			}
		}
	}
}

func TestDriver_RestoreStates(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		replies  []testhelper.Reply
		wantKind types.ErrorKind
		want     []runner.RestoreState
	}{
		{
			name: "remote file",
			path: "tftp://10.1.1.1/cfg/sw1-running-050324-140709",
			want: []runner.RestoreState{
				runner.RestoreLockAcquired, runner.RestoreSessionOpen, runner.RestoreTransferring,
				runner.RestoreApplying, runner.RestoreSessionClosed, runner.RestoreLockReleased, runner.RestoreIdle,
			},
		},
		{
			name:     "device rejects the configuration",
			path:     "bootflash:sw1-running-050324-140709",
			replies:  []testhelper.Reply{{Match: "configure replace", Output: "% Invalid command at '^' marker.\n"}},
			wantKind: types.KindCommandExecution,
			want: []runner.RestoreState{
				runner.RestoreLockAcquired, runner.RestoreSessionOpen,
				runner.RestoreApplying, runner.RestoreSessionClosed, runner.RestoreLockReleased, runner.RestoreIdle,
			},
		},
		{
			name:     "session drops during transfer",
			path:     "tftp://10.1.1.1/cfg/sw1-running-050324-140709",
			replies:  []testhelper.Reply{{Match: "copy tftp:", Err: types.NewConnectionError("192.0.2.10", errors.New("EOF"))}},
			wantKind: types.KindConnection,
			want: []runner.RestoreState{
				runner.RestoreLockAcquired, runner.RestoreSessionOpen, runner.RestoreTransferring,
				runner.RestoreSessionClosed, runner.RestoreLockReleased, runner.RestoreIdle,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := newAPI(ctrl)
			api.EXPECT().WriteMessageToReservationOutput(gomock.Any(), "res-1", "Started Restore").Return(nil)

			rec := &stateRecorder{}
			d := New("sw1", settings(api, testhelper.Factory(t, ctrl, testhelper.NewScript(tt.replies...))), WithRestoreStates(rec.record))
			_, err := d.Execute(context.Background(), driver.Request{
				Command: "restore",
				Context: testContext(nil),
				Params:  command.Params{"path": tt.path},
			})
			if kind := types.Kind(err); kind != tt.wantKind {
				t.Fatalf("Execute() error = %v, want kind %q", err, tt.wantKind)
			}
			if diff := cmp.Diff(tt.want, rec.get()); diff != "" {
				t.Errorf("restore states mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDriver_LockReleasedAfterFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := newAPI(ctrl)
	s := settings(api, testhelper.Factory(t, ctrl, testhelper.NewScript()))
	s.LockTimeout = 100 * time.Millisecond
	s.SNMP = snmp.OpenerFunc(func(context.Context, snmp.Params) (snmp.Handler, error) {
		return nil, errors.New("request timeout")
	})
	d := New("sw1", s)

	for i := 0; i < 3; i++ {
		_, err := d.Execute(context.Background(), driver.Request{Command: "get_inventory", Context: testContext(nil)})
		if kind := types.Kind(err); kind != types.KindConnection {
			t.Fatalf("attempt %d: Execute() error = %v, want ConnectionError", i, err)
		}
	}
}

func TestDriver_LockTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := newAPI(ctrl)
	api.EXPECT().WriteMessageToReservationOutput(gomock.Any(), "res-1", gomock.Any()).Return(nil).AnyTimes()

	var active, maxSeen atomic.Int32
	hold := make(chan struct{})
	entered := make(chan struct{}, 1)
	factory := session.FactoryFunc(func(context.Context, session.Target) (session.Session, error) {
		return &trackingSession{active: &active, maxSeen: &maxSeen, hold: hold, entered: entered}, nil
	})
	s := settings(api, factory)
	s.LockTimeout = 50 * time.Millisecond
	d := New("sw1", s)

	done := make(chan error, 1)
	go func() {
		_, err := d.Execute(context.Background(), driver.Request{
			Command: "load_firmware",
			Context: testContext(nil),
			Params:  command.Params{"path": "bootflash:nxos.bin"},
		})
		done <- err
	}()
	<-entered

	_, err := d.Execute(context.Background(), driver.Request{
		Command: "restore",
		Context: testContext(nil),
		Params:  command.Params{"path": "bootflash:sw1-running-050324-140709"},
	})
	var lockErr *types.LockTimeoutError
	if !errors.As(err, &lockErr) {
		t.Fatalf("Execute() error = %v, want LockTimeoutError", err)
	}
	if lockErr.Operation != "restore" {
		t.Errorf("LockTimeoutError.Operation = %q", lockErr.Operation)
	}

	// commands outside the lock are not blocked by it
	if _, err := d.Execute(context.Background(), driver.Request{
		Command: "run_custom_command",
		Context: testContext(nil),
		Params:  command.Params{"custom_command": "show clock"},
	}); err != nil {
		t.Fatalf("run_custom_command while the lock is held: %v", err)
	}

	close(hold)
	if err := <-done; err != nil {
		t.Fatalf("load_firmware error = %v", err)
	}
}

func TestDriver_Demo(t *testing.T) {
	tests := []struct {
		name     string
		req      driver.Request
		message  string
		want     string
		wantSent []string
	}{
		{
			name:    "save_demo",
			req:     driver.Request{Command: "save_demo", Params: command.Params{"configuration_type": "startup"}},
			message: "starting to save to tftp://10.1.1.1/cfg",
			want:    "sw1-startup-050324-140709",
			wantSent: []string{
				"copy startup-config tftp://10.1.1.1/cfg/sw1-startup-050324-140709 vrf management",
			},
		},
		{
			name:    "restore_demo appends",
			req:     driver.Request{Command: "restore_demo", Params: command.Params{"filename": "sw1-running-050324-140709"}},
			message: "starting to restore from tftp://10.1.1.1/cfg/sw1-running-050324-140709",
			wantSent: []string{
				"copy tftp://10.1.1.1/cfg/sw1-running-050324-140709 bootflash:sw1-running-050324-140709 vrf management",
				"copy bootflash:sw1-running-050324-140709 running-config",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			api := newAPI(ctrl)
			api.EXPECT().WriteMessageToReservationOutput(gomock.Any(), "res-1", tt.message).Return(nil)

			script := testhelper.NewScript()
			d := New("sw1", settings(api, testhelper.Factory(t, ctrl, script)))
			tt.req.Context = testContext(nil)
			got, err := d.Execute(context.Background(), tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Execute() = %q, want %q", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantSent, script.Sent()); diff != "" {
				t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDriver_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      driver.Request
		wantKind types.ErrorKind
	}{
		{
			name:     "unknown command",
			req:      driver.Request{Command: "format_flash", Context: testContext(nil)},
			wantKind: types.KindCommandExecution,
		},
		{
			name:     "missing password",
			req:      driver.Request{Command: "health_check", Context: testContext(map[string]string{ShellName + ".Password": ""})},
			wantKind: types.KindCredential,
		},
		{
			name:     "shutdown not supported",
			req:      driver.Request{Command: "shutdown", Context: testContext(nil)},
			wantKind: types.KindCommandExecution,
		},
		{
			name:     "restore demo without tftp server",
			req:      driver.Request{Command: "restore_demo", Context: testContext(map[string]string{ShellName + ".tftp_server": ""}), Params: command.Params{"filename": "f"}},
			wantKind: types.KindCommandExecution,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			script := testhelper.NewScript()
			d := New("sw1", settings(newAPI(ctrl), testhelper.Factory(t, ctrl, script)))
			if _, err := d.Execute(context.Background(), tt.req); types.Kind(err) != tt.wantKind {
				t.Fatalf("Execute() error = %v, want kind %q", err, tt.wantKind)
			}
			if len(script.Sent()) != 0 {
				t.Errorf("commands sent: %v", script.Sent())
			}
		})
	}
}
