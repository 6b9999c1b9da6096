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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type runningCommand struct {
	driver  string
	command string
	started time.Time
	cancel  context.CancelFunc
}

// commandTracker keeps the cancel functions of in-flight commands by command
// id.
type commandTracker struct {
	m       *sync.Mutex
	running map[string]*runningCommand
}

func newCommandTracker() *commandTracker {
	return &commandTracker{
		m:       &sync.Mutex{},
		running: map[string]*runningCommand{},
	}
}

// start registers id and returns a context cancelled by cancel(id). done must
// be called once the command returned.
func (t *commandTracker) start(ctx context.Context, id, drv, cmd string) (context.Context, func(), error) {
	t.m.Lock()
	defer t.m.Unlock()
	if _, ok := t.running[id]; ok {
		return nil, nil, fmt.Errorf("command id %s is already running", id)
	}
	ctx, cancel := context.WithCancel(ctx)
	t.running[id] = &runningCommand{driver: drv, command: cmd, started: time.Now(), cancel: cancel}
	return ctx, func() {
		t.m.Lock()
		delete(t.running, id)
		t.m.Unlock()
		cancel()
	}, nil
}

func (t *commandTracker) cancel(id string) bool {
	t.m.Lock()
	defer t.m.Unlock()
	rc, ok := t.running[id]
	if ok {
		rc.cancel()
	}
	return ok
}

func (t *commandTracker) cancelAll() {
	t.m.Lock()
	defer t.m.Unlock()
	for _, rc := range t.running {
		rc.cancel()
	}
}

// CommandInfo describes an in-flight command.
type CommandInfo struct {
	ID      string    `json:"id"`
	Driver  string    `json:"driver"`
	Command string    `json:"command"`
	Started time.Time `json:"started"`
}

func (t *commandTracker) list() []CommandInfo {
	t.m.Lock()
	defer t.m.Unlock()
	result := make([]CommandInfo, 0, len(t.running))
	for id, rc := range t.running {
		result = append(result, CommandInfo{ID: id, Driver: rc.driver, Command: rc.command, Started: rc.started})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Started.Before(result[j].Started) })
	return result
}
