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

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind names one class of the driver error taxonomy.
type ErrorKind string

const (
	KindCredential       ErrorKind = "CredentialError"
	KindConnection       ErrorKind = "ConnectionError"
	KindCommandExecution ErrorKind = "CommandExecutionError"
	KindLockTimeout      ErrorKind = "LockTimeoutError"
	KindUnknown          ErrorKind = "Error"
)

// CredentialError is returned when the credentials of a resource cannot be
// resolved from the command context or decrypted by the host.
type CredentialError struct {
	Resource  string
	Attribute string
	Err       error
}

func NewCredentialError(resource, attribute string, err error) *CredentialError {
	return &CredentialError{Resource: resource, Attribute: attribute, Err: err}
}

func (e *CredentialError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resource %q: credential attribute %q: %v", e.Resource, e.Attribute, e.Err)
	}
	return fmt.Sprintf("resource %q: missing credential attribute %q", e.Resource, e.Attribute)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// ConnectionError is returned when a session to a device cannot be opened.
type ConnectionError struct {
	Address string
	Err     error
}

func NewConnectionError(address string, err error) *ConnectionError {
	return &ConnectionError{Address: address, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandExecutionError is returned when a device rejected a command or an
// operation could not be carried out with the given inputs.
type CommandExecutionError struct {
	Command string
	Output  string
	Err     error
}

func NewCommandExecutionError(command, output string, err error) *CommandExecutionError {
	return &CommandExecutionError{Command: command, Output: output, Err: err}
}

// CommandExecutionErrorf builds a CommandExecutionError that is not bound to a
// single device command.
func CommandExecutionErrorf(format string, a ...any) *CommandExecutionError {
	return &CommandExecutionError{Err: fmt.Errorf(format, a...)}
}

func (e *CommandExecutionError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	if e.Output != "" {
		return fmt.Sprintf("command %q failed: %v; output: %s", e.Command, e.Err, e.Output)
	}
	return fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
}

func (e *CommandExecutionError) Unwrap() error { return e.Err }

// LockTimeoutError is returned when the global lock of a driver instance could
// not be acquired within the configured timeout.
type LockTimeoutError struct {
	Owner     string
	Operation string
	Waited    time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s waiting for the global lock for %q", e.Owner, e.Waited, e.Operation)
}

// Kind returns the taxonomy name of err. Errors outside the taxonomy map to
// KindUnknown.
func Kind(err error) ErrorKind {
	var credErr *CredentialError
	var connErr *ConnectionError
	var cmdErr *CommandExecutionError
	var lockErr *LockTimeoutError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &lockErr):
		return KindLockTimeout
	case errors.As(err, &credErr):
		return KindCredential
	case errors.As(err, &connErr):
		return KindConnection
	case errors.As(err, &cmdErr):
		return KindCommandExecution
	}
	return KindUnknown
}

// IsPermanent reports whether retrying the failed call cannot succeed.
func IsPermanent(err error) bool {
	switch Kind(err) {
	case KindCredential, KindCommandExecution:
		return true
	}
	return false
}
