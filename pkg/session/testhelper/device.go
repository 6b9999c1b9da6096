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

package testhelper

import (
	"context"
	"strings"
	"sync"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/sdcio/shell-server/mocks/mocksession"
	"github.com/sdcio/shell-server/pkg/session"
)

// Reply is returned for every command starting with Match.
type Reply struct {
	Match  string
	Output string
	Err    error
}

// Script is a scripted device shared by all sessions created from it.
type Script struct {
	m       sync.Mutex
	replies []Reply
	sent    []string
	opened  int
}

func NewScript(replies ...Reply) *Script {
	return &Script{replies: replies}
}

// Sent returns every command received so far, in order.
func (s *Script) Sent() []string {
	s.m.Lock()
	defer s.m.Unlock()
	return append([]string(nil), s.sent...)
}

// Opened returns the number of sessions opened on the script.
func (s *Script) Opened() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.opened
}

func (s *Script) reply(cmd string) (string, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.sent = append(s.sent, cmd)
	for _, r := range s.replies {
		if strings.HasPrefix(cmd, r.Match) {
			return r.Output, r.Err
		}
	}
	return "", nil
}

// ConfigureSessionMock makes ms answer from the script.
func ConfigureSessionMock(_ *testing.T, ms *mocksession.MockSession, s *Script) {
	ms.EXPECT().Send(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, cmd string) (string, error) {
			return s.reply(cmd)
		},
	)
	ms.EXPECT().SendConfig(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, cmds []string) (string, error) {
			var sb strings.Builder
			for _, c := range cmds {
				out, err := s.reply(c)
				if err != nil {
					return sb.String(), err
				}
				sb.WriteString(out)
			}
			return sb.String(), nil
		},
	)
	ms.EXPECT().SendInteractive(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(
		func(_ context.Context, input, _ string) (string, error) {
			return s.reply(input)
		},
	)
	ms.EXPECT().Alive().AnyTimes().Return(true)
	ms.EXPECT().Close().AnyTimes().Return(nil)
}

// Factory returns a session factory handing out script backed sessions.
func Factory(t *testing.T, ctrl *gomock.Controller, s *Script) session.Factory {
	return session.FactoryFunc(func(context.Context, session.Target) (session.Session, error) {
		ms := mocksession.NewMockSession(ctrl)
		ConfigureSessionMock(t, ms, s)
		s.m.Lock()
		s.opened++
		s.m.Unlock()
		return ms, nil
	})
}

// Pool returns a single session pool over the script.
func Pool(t *testing.T, ctrl *gomock.Controller, s *Script) *session.Pool {
	return session.NewPool(t.Name(), session.Target{Address: "192.0.2.1", Type: session.TransportSSH}, Factory(t, ctrl, s), session.PoolConfig{Limit: 1})
}
