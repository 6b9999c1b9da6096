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

package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrapli/scrapligo/channel"
	"github.com/scrapli/scrapligo/response"
	"github.com/scrapli/scrapligo/util"

	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

type fakeDriver struct {
	events []*channel.SendInteractiveEvent
	result string
	failed error
	err    error
	block  chan struct{}
	closed bool
}

func (f *fakeDriver) SendCommand(command string, _ ...util.Option) (*response.Response, error) {
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &response.Response{Input: command, Result: f.result, Failed: f.failed}, nil
}

func (f *fakeDriver) SendConfigs(configs []string, _ ...util.Option) (*response.MultiResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	mr := &response.MultiResponse{}
	for _, c := range configs {
		mr.Responses = append(mr.Responses, &response.Response{Input: c, Result: f.result})
	}
	mr.Failed = f.failed
	return mr, nil
}

func (f *fakeDriver) SendInteractive(events []*channel.SendInteractiveEvent, _ ...util.Option) (*response.Response, error) {
	f.events = append(f.events, events...)
	if f.err != nil {
		return nil, f.err
	}
	return &response.Response{Input: events[0].ChannelInput, Result: f.result, Failed: f.failed}, nil
}

func (f *fakeDriver) Close() error {
	f.closed = true
	return nil
}

func newSession(d driver) *Session {
	s := &Session{address: "192.0.2.1", d: d}
	s.alive.Store(true)
	return s
}

func TestSession_Send(t *testing.T) {
	tests := []struct {
		name      string
		d         *fakeDriver
		want      string
		wantKind  types.ErrorKind
		wantAlive bool
	}{
		{name: "ok", d: &fakeDriver{result: "NXOS: version 9.3"}, want: "NXOS: version 9.3", wantAlive: true},
		{name: "device rejected", d: &fakeDriver{result: "% Invalid command", failed: errors.New("failed")}, wantKind: types.KindCommandExecution, wantAlive: true},
		{name: "transport error", d: &fakeDriver{err: errors.New("EOF")}, wantKind: types.KindConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(tt.d)
			got, err := s.Send(context.Background(), "show version")
			if kind := types.Kind(err); kind != tt.wantKind {
				t.Fatalf("Send() error = %v, want kind %q", err, tt.wantKind)
			}
			if tt.wantKind == "" && got != tt.want {
				t.Errorf("Send() = %q, want %q", got, tt.want)
			}
			if s.Alive() != tt.wantAlive {
				t.Errorf("Alive() = %v, want %v", s.Alive(), tt.wantAlive)
			}
		})
	}
}

func TestSession_SendConfig(t *testing.T) {
	s := newSession(&fakeDriver{result: "ok"})
	if _, err := s.SendConfig(context.Background(), []string{"snmp-server community public ro"}); err != nil {
		t.Fatalf("SendConfig() error = %v", err)
	}
}

func TestSession_SendInteractive(t *testing.T) {
	d := &fakeDriver{result: "This command will reboot the system. (y/n)?  [n]"}
	s := newSession(d)
	got, err := s.SendInteractive(context.Background(), "reload", "(y/n)")
	if err != nil {
		t.Fatalf("SendInteractive() error = %v", err)
	}
	if got != d.result {
		t.Errorf("SendInteractive() = %q", got)
	}
	if len(d.events) != 1 || d.events[0].ChannelInput != "reload" || d.events[0].ChannelResponse != "(y/n)" {
		t.Errorf("events = %+v", d.events)
	}

	d.err = errors.New("EOF")
	if _, err := s.SendInteractive(context.Background(), "y", ""); types.Kind(err) != types.KindConnection {
		t.Fatalf("SendInteractive() error = %v, want ConnectionError", err)
	}
}

func TestSession_ContextCancelClosesSession(t *testing.T) {
	d := &fakeDriver{block: make(chan struct{})}
	defer close(d.block)
	s := newSession(d)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Send(ctx, "show tech-support"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Send() error = %v, want deadline exceeded", err)
	}
	if s.Alive() {
		t.Error("session alive after cancellation")
	}
}

func TestFactory_UnsupportedTransport(t *testing.T) {
	_, err := Factory{}.Open(context.Background(), session.Target{Address: "192.0.2.1", Type: "serial"})
	if types.Kind(err) != types.KindConnection {
		t.Fatalf("Open() error = %v, want ConnectionError", err)
	}
}
