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
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

// DefaultTemplate is the command template run_parsed_config renders.
const DefaultTemplate = "linux_server"

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_.\- ]+)\}`)

// ParseDescription reads "key: value" or "key=value" lines of a reservation
// description. Lines without a separator are ignored.
func ParseDescription(desc string) map[string]string {
	values := map[string]string{}
	for _, line := range strings.Split(strings.ReplaceAll(desc, "\r\n", "\n"), "\n") {
		i := strings.IndexAny(line, ":=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		if key == "" {
			continue
		}
		values[key] = strings.TrimSpace(line[i+1:])
	}
	return values
}

// RenderTemplate reads <dir>/<name>.txt and fills its {key} placeholders. It
// returns the non empty, non comment lines. Placeholders without a value are
// an error.
func RenderTemplate(dir, name string, values map[string]string) ([]string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name+".txt"))
	if err != nil {
		return nil, types.CommandExecutionErrorf("reading template %q: %v", name, err)
	}
	missing := map[string]struct{}{}
	text := placeholder.ReplaceAllStringFunc(string(b), func(m string) string {
		key := strings.TrimSpace(m[1 : len(m)-1])
		v, ok := values[key]
		if !ok {
			missing[key] = struct{}{}
			return m
		}
		return v
	})
	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, types.CommandExecutionErrorf("template %q: no value for %s", name, strings.Join(keys, ", "))
	}

	var cmds []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmds = append(cmds, line)
	}
	return cmds, nil
}

// ParseCommandList accepts a JSON list of commands or a single command.
func ParseCommandList(raw string) []string {
	raw = strings.TrimSpace(raw)
	var list []string
	if strings.HasPrefix(raw, "[") && json.Unmarshal([]byte(raw), &list) == nil {
		return list
	}
	if raw == "" {
		return nil
	}
	return []string{raw}
}

// SendCommands runs the commands in order and returns their joined output.
func (r *Runner) SendCommands(ctx context.Context, cmds []string) (string, error) {
	if len(cmds) == 0 {
		return "", types.CommandExecutionErrorf("no command to send")
	}
	outs := make([]string, 0, len(cmds))
	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		for _, c := range cmds {
			out, err := r.send(ctx, s, c)
			outs = append(outs, strings.TrimRight(out, "\n"))
			if err != nil {
				return err
			}
		}
		return nil
	})
	out := strings.Join(outs, "\n")
	logging.FromContext(ctx).Info(out)
	return out, err
}

// RunParsedConfig renders the template with values from the reservation
// description and sends the result. Failures are returned in the result
// list, not as error.
func (r *Runner) RunParsedConfig(ctx context.Context, templatesDir, name, reservationID string) (string, error) {
	log := logging.FromContext(ctx)
	if r.API == nil {
		return "", errors.New("host API is not available")
	}
	details, err := r.API.GetReservationDetails(ctx, reservationID)
	if err != nil {
		return "", err
	}

	var result []string
	cmds, err := RenderTemplate(templatesDir, name, ParseDescription(details.Description))
	if err == nil {
		var out string
		out, err = r.SendCommands(ctx, cmds)
		if err == nil {
			result = append(result, out)
		}
	}
	if err != nil {
		log.Error(err)
		result = append(result, err.Error())
	}
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
