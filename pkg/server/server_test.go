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

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/config"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/types"
)

type fakeDriver struct {
	started  chan string
	cleanups *atomic.Int32
}

func (f *fakeDriver) Initialize(_ context.Context, ic command.InitContext) (string, error) {
	if ic.Resource.Name == "" {
		return "", types.CommandExecutionErrorf("missing resource name")
	}
	return "Finished initializing", nil
}

func (f *fakeDriver) Execute(ctx context.Context, req driver.Request) (string, error) {
	switch req.Command {
	case "echo":
		return req.Params.Get("value"), nil
	case "block":
		f.started <- req.CommandID
		<-ctx.Done()
		return "", ctx.Err()
	case "connect":
		return "", types.NewConnectionError(req.Context.Resource.Address, errors.New("connection refused"))
	case "locked":
		return "", &types.LockTimeoutError{Owner: "d1", Operation: "restore", Waited: time.Second}
	}
	return "", types.CommandExecutionErrorf("unknown command %s", req.Command)
}

func (f *fakeDriver) Commands() []string { return []string{"block", "connect", "echo", "locked"} }

func (f *fakeDriver) Cleanup() { f.cleanups.Add(1) }

type fixture struct {
	srv      *Server
	http     *httptest.Server
	started  chan string
	cleanups *atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{started: make(chan string, 1), cleanups: &atomic.Int32{}}
	reg := driver.NewRegistry()
	reg.Register("fake", func(name string, _ driver.Settings) (driver.Driver, error) {
		return &fakeDriver{started: f.started, cleanups: f.cleanups}, nil
	})

	cfg, err := config.New("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Prometheus = &config.PromConfig{Address: cfg.HTTPServer.Address}
	cfg.Drivers = []*config.DriverConfig{{Name: "d1", Kind: "fake"}}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	f.srv, err = New(ctx, cfg, reg, driver.Settings{})
	if err != nil {
		t.Fatal(err)
	}
	f.srv.createInitialDrivers(ctx)
	f.http = httptest.NewServer(f.srv.Handler())
	t.Cleanup(f.http.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.http.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	rsp, err := f.http.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer rsp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(rsp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return rsp.StatusCode
}

var resourceCtx = command.Context{
	Resource:    command.Resource{Name: "sw1", Address: "10.0.0.1"},
	Reservation: command.Reservation{ReservationID: "res-1"},
}

func TestServer_ListDrivers(t *testing.T) {
	f := newFixture(t)
	rsp := new(ListResponse)
	if code := f.do(t, http.MethodGet, "/api/v1/drivers", nil, rsp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := &ListResponse{
		Kinds:   []string{"fake"},
		Drivers: []*DriverInfo{{Name: "d1", Kind: "fake", Commands: []string{"block", "connect", "echo", "locked"}}},
	}
	if diff := cmp.Diff(want, rsp); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_ExecuteCommand(t *testing.T) {
	tests := []struct {
		name     string
		command  string
		driver   string
		wantCode int
		wantType types.ErrorKind
		want     string
	}{
		{name: "result", command: "echo", driver: "d1", wantCode: http.StatusOK, want: "hello"},
		{name: "connection error", command: "connect", driver: "d1", wantCode: http.StatusBadGateway, wantType: types.KindConnection},
		{name: "lock timeout", command: "locked", driver: "d1", wantCode: http.StatusLocked, wantType: types.KindLockTimeout},
		{name: "unknown command", command: "nope", driver: "d1", wantCode: http.StatusUnprocessableEntity, wantType: types.KindCommandExecution},
		{name: "unknown driver", command: "echo", driver: "d2", wantCode: http.StatusNotFound, wantType: types.KindUnknown},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &CommandRequest{Context: resourceCtx, Params: command.Params{"value": "hello"}}
			var out map[string]string
			code := f.do(t, http.MethodPost, "/api/v1/drivers/"+tt.driver+"/commands/"+tt.command, body, &out)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%v)", code, tt.wantCode, out)
			}
			if tt.wantType != "" {
				if out["type"] != string(tt.wantType) {
					t.Errorf("type = %q, want %q", out["type"], tt.wantType)
				}
				if out["error"] == "" {
					t.Error("missing error message")
				}
				return
			}
			if out["result"] != tt.want {
				t.Errorf("result = %q, want %q", out["result"], tt.want)
			}
			if out["command_id"] == "" {
				t.Error("no command id generated")
			}
		})
	}
}

func TestServer_CancelCommand(t *testing.T) {
	f := newFixture(t)

	type result struct {
		code int
		out  map[string]string
		err  error
	}
	res := make(chan result, 1)
	go func() {
		b, _ := json.Marshal(&CommandRequest{CommandID: "c-1", Context: resourceCtx})
		rsp, err := f.http.Client().Post(f.http.URL+"/api/v1/drivers/d1/commands/block", "application/json", bytes.NewReader(b))
		if err != nil {
			res <- result{err: err}
			return
		}
		defer rsp.Body.Close()
		var out map[string]string
		err = json.NewDecoder(rsp.Body).Decode(&out)
		res <- result{code: rsp.StatusCode, out: out, err: err}
	}()

	select {
	case id := <-f.started:
		if id != "c-1" {
			t.Fatalf("started command %q, want c-1", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("command did not start")
	}

	list := new(CommandsResponse)
	f.do(t, http.MethodGet, "/api/v1/commands", nil, list)
	if len(list.Commands) != 1 || list.Commands[0].ID != "c-1" || list.Commands[0].Command != "block" {
		t.Errorf("in-flight commands = %+v", list.Commands)
	}

	if code := f.do(t, http.MethodPost, "/api/v1/commands/c-1/cancel", nil, nil); code != http.StatusAccepted {
		t.Fatalf("cancel status = %d", code)
	}
	r := <-res
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.code != http.StatusRequestTimeout {
		t.Errorf("cancelled command status = %d, want %d", r.code, http.StatusRequestTimeout)
	}
	if !strings.Contains(r.out["error"], "canceled") {
		t.Errorf("error = %q", r.out["error"])
	}

	if code := f.do(t, http.MethodPost, "/api/v1/commands/c-1/cancel", nil, nil); code != http.StatusNotFound {
		t.Errorf("second cancel status = %d, want 404", code)
	}
}

func TestServer_InitializeAndDelete(t *testing.T) {
	f := newFixture(t)
	ireq := &InitializeRequest{Kind: "fake", Context: command.InitContext{Resource: command.Resource{Name: "sw2"}}}

	out := new(Response)
	if code := f.do(t, http.MethodPost, "/api/v1/drivers/d2/initialize", ireq, out); code != http.StatusOK {
		t.Fatalf("initialize status = %d", code)
	}
	if out.Result != "Finished initializing" {
		t.Errorf("result = %q", out.Result)
	}
	// existing instance, kind may be omitted
	if code := f.do(t, http.MethodPost, "/api/v1/drivers/d1/initialize", &InitializeRequest{Context: ireq.Context}, nil); code != http.StatusOK {
		t.Errorf("re-initialize status = %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/v1/drivers/d1/initialize", &InitializeRequest{Kind: "other", Context: ireq.Context}, nil); code != http.StatusBadRequest {
		t.Errorf("kind mismatch status = %d, want 400", code)
	}
	if code := f.do(t, http.MethodPost, "/api/v1/drivers/d3/initialize", &InitializeRequest{Kind: "missing", Context: ireq.Context}, nil); code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", code)
	}
	if code := f.do(t, http.MethodPost, "/api/v1/drivers/d4/initialize", &InitializeRequest{Kind: "fake"}, nil); code != http.StatusUnprocessableEntity {
		t.Errorf("invalid context status = %d, want 422", code)
	}

	if code := f.do(t, http.MethodDelete, "/api/v1/drivers/d2", nil, nil); code != http.StatusOK {
		t.Fatalf("delete status = %d", code)
	}
	if f.cleanups.Load() != 1 {
		t.Errorf("cleanups = %d, want 1", f.cleanups.Load())
	}
	if code := f.do(t, http.MethodDelete, "/api/v1/drivers/d2", nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
}

func TestServer_BadBody(t *testing.T) {
	f := newFixture(t)
	rsp, err := f.http.Client().Post(f.http.URL+"/api/v1/drivers/d1/commands/echo", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rsp.StatusCode)
	}
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/drivers/d1/commands/echo", &CommandRequest{Context: resourceCtx}, nil)
	rsp, err := f.http.Client().Get(f.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer rsp.Body.Close()
	if rsp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", rsp.StatusCode)
	}
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(rsp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "go_goroutines") {
		t.Error("metrics do not include the Go collector")
	}
}

func TestServer_NotReady(t *testing.T) {
	f := newFixture(t)
	f.srv.ready.Store(false)
	if code := f.do(t, http.MethodGet, "/api/v1/drivers", nil, nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	_, err := f.srv.readyInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(context.Context, any) (any, error) {
		return nil, nil
	})
	if status.Code(err) != codes.Unavailable {
		t.Errorf("readyInterceptor() code = %v, want Unavailable", status.Code(err))
	}
}

func TestServer_Health(t *testing.T) {
	f := newFixture(t)
	rsp, err := f.srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if rsp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", rsp.GetStatus())
	}

	f.srv.Stop()
	if f.cleanups.Load() != 1 {
		t.Errorf("cleanups after stop = %d, want 1", f.cleanups.Load())
	}
	rsp, err = f.srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if rsp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status after stop = %v, want NOT_SERVING", rsp.GetStatus())
	}
}
