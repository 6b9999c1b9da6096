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
	"fmt"
	"path"
	"strings"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const reloadPrompt = "(y/n)"

// firmwareStep is one stage of a firmware load.
type firmwareStep struct {
	name string
	run  func(ctx context.Context, s session.Session) error
}

// LoadFirmware copies the image to the device, verifies it, sets it as boot
// image, saves the startup configuration and reloads. Cancellation is checked
// between steps, steps already done are not rolled back.
func (r *Runner) LoadFirmware(ctx context.Context, imagePath, vrf string) (string, error) {
	imagePath = strings.TrimSpace(imagePath)
	local, file := r.localImage(imagePath)
	if imagePath == "" || file == "." || file == "/" || strings.HasSuffix(imagePath, "/") {
		return "", types.CommandExecutionErrorf("firmware path %q has no file name", imagePath)
	}
	vrf = r.vrf(vrf)
	log := logging.FromContext(ctx)

	steps := []firmwareStep{
		{"transfer", func(ctx context.Context, s session.Session) error {
			if !isRemote(imagePath) {
				return nil
			}
			_, err := r.send(ctx, s, copyCommand(imagePath, local, vrf))
			return err
		}},
		{"verify", func(ctx context.Context, s session.Session) error {
			out, err := r.send(ctx, s, "dir "+local)
			if err != nil {
				return err
			}
			if !strings.Contains(out, file) {
				return types.NewCommandExecutionError("dir "+local, out, fmt.Errorf("image %s not found after transfer", file))
			}
			return nil
		}},
		{"boot", func(ctx context.Context, s session.Session) error {
			_, err := r.sendConfig(ctx, s, []string{"boot nxos " + local})
			return err
		}},
		{"save", func(ctx context.Context, s session.Session) error {
			_, err := r.send(ctx, s, copyCommand("running-config", "startup-config", ""))
			return err
		}},
		{"reload", func(ctx context.Context, s session.Session) error {
			out, err := s.SendInteractive(ctx, "reload", reloadPrompt)
			if err != nil {
				return err
			}
			if err := r.Profile.Check("reload", out); err != nil {
				return err
			}
			_, err = s.SendInteractive(ctx, "y", "")
			// the device drops the session once the reload is confirmed
			if types.Kind(err) == types.KindConnection {
				return nil
			}
			return err
		}},
	}

	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		for _, st := range steps {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("firmware load cancelled before step %q: %w", st.name, err)
			}
			log.Infof("firmware load: %s", st.name)
			if err := st.run(ctx, s); err != nil {
				return fmt.Errorf("firmware load step %q: %w", st.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Firmware %s loaded, device is reloading", file), nil
}

// localImage returns where the image lives on the device and its file name.
// Remote URLs land on the default file system; paths already naming a file
// system such as "bootflash:nxos.bin" are used as they are.
func (r *Runner) localImage(imagePath string) (local, file string) {
	if isRemote(imagePath) {
		file = path.Base(imagePath)
		return r.Profile.FileSystem + file, file
	}
	if fs, rest, ok := strings.Cut(imagePath, ":"); ok && fs != "" && !strings.Contains(fs, "/") {
		return imagePath, path.Base(rest)
	}
	file = path.Base(imagePath)
	return r.Profile.FileSystem + strings.TrimPrefix(imagePath, "/"), file
}
