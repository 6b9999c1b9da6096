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
	"github.com/sdcio/shell-server/pkg/command"
)

// InitializeRequest creates (if needed) and initializes a driver instance.
type InitializeRequest struct {
	Kind    string              `json:"kind"`
	Context command.InitContext `json:"context"`
}

// CommandRequest runs a driver command. An empty CommandID gets a generated
// one.
type CommandRequest struct {
	CommandID string          `json:"command_id,omitempty"`
	Context   command.Context `json:"context"`
	Params    command.Params  `json:"params,omitempty"`
}

type Response struct {
	CommandID string `json:"command_id,omitempty"`
	Result    string `json:"result"`
}

type ErrorResponse struct {
	CommandID string `json:"command_id,omitempty"`
	Error     string `json:"error"`
	Type      string `json:"type"`
}

type DriverInfo struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Commands []string `json:"commands"`
}

type ListResponse struct {
	Kinds   []string      `json:"kinds"`
	Drivers []*DriverInfo `json:"drivers"`
}

type CommandsResponse struct {
	Commands []CommandInfo `json:"commands"`
}
