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

	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

// HealthCheck probes the device and reports the outcome as the live status
// of the resource. A failed probe is reported in the message, not as error.
func (r *Runner) HealthCheck(ctx context.Context) (string, error) {
	log := logging.FromContext(ctx)
	status := hostapi.LiveStatusOnline
	msg := fmt.Sprintf("Health check on resource %s passed.", r.Config.Name)

	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		_, err := r.send(ctx, s, r.Profile.HealthCommand)
		return err
	})
	if err != nil {
		log.Errorf("health check failed: %v", err)
		status = hostapi.LiveStatusError
		msg = fmt.Sprintf("Health check on resource %s failed.", r.Config.Name)
	}

	if r.API != nil {
		if err := r.API.SetResourceLiveStatus(ctx, r.Config.Name, status, msg); err != nil {
			log.Warnf("failed to set live status: %v", err)
		}
	}
	return msg, nil
}

// Shutdown powers the device off when the profile supports it.
func (r *Runner) Shutdown(ctx context.Context) (string, error) {
	if r.Profile.ShutdownCommand == "" {
		return "", types.CommandExecutionErrorf("shutdown command is not available for %s devices", r.Profile.Vendor)
	}
	err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
		_, err := r.send(ctx, s, r.Profile.ShutdownCommand)
		return err
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Resource %s is shutting down", r.Config.Name), nil
}
