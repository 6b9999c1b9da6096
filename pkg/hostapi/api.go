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

package hostapi

import (
	"context"

	"github.com/sdcio/shell-server/pkg/command"
)

// Live status names understood by the host.
const (
	LiveStatusOnline = "Online"
	LiveStatusError  = "Error"
)

// ReservationDetails is the part of the reservation the drivers consume.
type ReservationDetails struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Description string `json:"ReservationDescription"`
}

// API is the subset of the orchestration host API used by the drivers.
type API interface {
	// DecryptPassword returns the plain text of an encrypted attribute value.
	DecryptPassword(ctx context.Context, encrypted string) (string, error)
	// WriteMessageToReservationOutput posts a message to the reservation output window.
	WriteMessageToReservationOutput(ctx context.Context, reservationID, message string) error
	// GetReservationDetails returns the details of a reservation.
	GetReservationDetails(ctx context.Context, reservationID string) (*ReservationDetails, error)
	// SetResourceLiveStatus sets the live status icon and description of a resource.
	SetResourceLiveStatus(ctx context.Context, resourceName, status, description string) error
}

// Factory returns an API session for a command context. The host hands every
// command its own auth token, so sessions are not shared between commands.
type Factory interface {
	NewSession(ctx context.Context, cc command.Context) (API, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, cc command.Context) (API, error)

func (f FactoryFunc) NewSession(ctx context.Context, cc command.Context) (API, error) {
	return f(ctx, cc)
}

// Static returns a Factory that always hands out api.
func Static(api API) Factory {
	return FactoryFunc(func(context.Context, command.Context) (API, error) {
		return api, nil
	})
}
