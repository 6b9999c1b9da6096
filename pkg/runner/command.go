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
	"strings"

	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

// ParseCustomCommands splits a ";" separated command line.
func ParseCustomCommands(raw string) []string {
	var cmds []string
	for _, c := range strings.Split(raw, ";") {
		if c = strings.TrimSpace(c); c != "" {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// RunCustomCommand sends the commands one after the other and returns the
// concatenated output.
func (r *Runner) RunCustomCommand(ctx context.Context, raw string) (string, error) {
	cmds := ParseCustomCommands(raw)
	if len(cmds) == 0 {
		return "", types.CommandExecutionErrorf("custom command is empty")
	}
	var sb strings.Builder
	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		for _, c := range cmds {
			out, err := r.send(ctx, s, c)
			sb.WriteString(out)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return sb.String(), err
}

// RunCustomConfigCommand sends the commands in configuration mode.
func (r *Runner) RunCustomConfigCommand(ctx context.Context, raw string) (string, error) {
	cmds := ParseCustomCommands(raw)
	if len(cmds) == 0 {
		return "", types.CommandExecutionErrorf("custom command is empty")
	}
	var out string
	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		var err error
		out, err = r.sendConfig(ctx, s, cmds)
		return err
	})
	return out, err
}
