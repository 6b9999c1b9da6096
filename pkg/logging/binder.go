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

package logging

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/command"
)

type loggerKey struct{}

// Bind attaches a logger carrying the reservation, resource and command of
// one driver call to ctx.
func Bind(ctx context.Context, cc command.Context, cmd, commandID string) (context.Context, *log.Entry) {
	fields := log.Fields{
		"resource": cc.Resource.Name,
		"command":  cmd,
	}
	if cc.Reservation.ReservationID != "" {
		fields["reservation-id"] = cc.Reservation.ReservationID
	}
	if commandID != "" {
		fields["command-id"] = commandID
	}
	entry := FromContext(ctx).WithFields(fields)
	return IntoContext(ctx, entry), entry
}

// IntoContext returns a copy of ctx carrying entry.
func IntoContext(ctx context.Context, entry *log.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// FromContext returns the logger bound to ctx, or one on the standard logger.
func FromContext(ctx context.Context) *log.Entry {
	if ctx != nil {
		if e, ok := ctx.Value(loggerKey{}).(*log.Entry); ok && e != nil {
			return e
		}
	}
	return log.NewEntry(log.StandardLogger())
}
