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

package config

import "time"

const (
	defaultHTTPAddress    = ":8080"
	defaultHTTPTimeout    = 30 * time.Minute
	defaultGRPCAddress    = ":56000"
	defaultMaxRecvMsgSize = 4 * 1024 * 1024
	defaultRPCTimeout     = time.Minute
	defaultPromAddress    = ":56090"

	defaultHostAPITimeout = 30 * time.Second

	defaultLockTimeout          = 10 * time.Minute
	defaultRetryMaxAttempts     = 1
	defaultRetryInitialInterval = 500 * time.Millisecond
	defaultRetryMaxInterval     = 10 * time.Second

	defaultOpsTimeout     = 2 * time.Minute
	defaultBreakerTimeout = 30 * time.Second
	defaultNetconfVersion = "1.0"
	defaultSNMPTimeout    = 5 * time.Second

	defaultTemplatesDir = "~/.shell-server/templates"
)
