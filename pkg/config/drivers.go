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

import (
	"errors"
	"fmt"
	"time"
)

// Defaults tune every driver instance.
type Defaults struct {
	// LockTimeout bounds the wait for the global lock of a driver instance.
	LockTimeout time.Duration `yaml:"lock-timeout,omitempty" json:"lock-timeout,omitempty"`
	Retry       *Retry        `yaml:"retry,omitempty" json:"retry,omitempty"`
	Session     *Session      `yaml:"session,omitempty" json:"session,omitempty"`
}

type Retry struct {
	// MaxAttempts counts the first attempt, 1 disables retrying.
	MaxAttempts     int           `yaml:"max-attempts,omitempty" json:"max-attempts,omitempty"`
	InitialInterval time.Duration `yaml:"initial-interval,omitempty" json:"initial-interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max-interval,omitempty" json:"max-interval,omitempty"`
}

type Session struct {
	// OpsTimeout bounds a single device operation.
	OpsTimeout time.Duration `yaml:"ops-timeout,omitempty" json:"ops-timeout,omitempty"`
	// BreakerFailures consecutive failures to open a session trip the circuit
	// breaker of a target. 0 disables the breaker.
	BreakerFailures uint32        `yaml:"breaker-failures,omitempty" json:"breaker-failures,omitempty"`
	BreakerTimeout  time.Duration `yaml:"breaker-timeout,omitempty" json:"breaker-timeout,omitempty"`
	// NetconfVersion is the preferred NETCONF version, 1.0 or 1.1.
	NetconfVersion string `yaml:"netconf-version,omitempty" json:"netconf-version,omitempty"`
	SNMPTimeout    time.Duration `yaml:"snmp-timeout,omitempty" json:"snmp-timeout,omitempty"`
	SNMPRetries    int           `yaml:"snmp-retries,omitempty" json:"snmp-retries,omitempty"`
}

func (d *Defaults) validateSetDefaults() error {
	if d.LockTimeout <= 0 {
		d.LockTimeout = defaultLockTimeout
	}
	if d.Retry == nil {
		d.Retry = &Retry{}
	}
	if d.Retry.MaxAttempts <= 0 {
		d.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if d.Retry.InitialInterval <= 0 {
		d.Retry.InitialInterval = defaultRetryInitialInterval
	}
	if d.Retry.MaxInterval < d.Retry.InitialInterval {
		d.Retry.MaxInterval = max(defaultRetryMaxInterval, d.Retry.InitialInterval)
	}
	if d.Session == nil {
		d.Session = &Session{}
	}
	return d.Session.validateSetDefaults()
}

func (s *Session) validateSetDefaults() error {
	if s.OpsTimeout <= 0 {
		s.OpsTimeout = defaultOpsTimeout
	}
	if s.BreakerFailures > 0 && s.BreakerTimeout <= 0 {
		s.BreakerTimeout = defaultBreakerTimeout
	}
	switch s.NetconfVersion {
	case "":
		s.NetconfVersion = defaultNetconfVersion
	case "1.0", "1.1":
	default:
		return fmt.Errorf("unknown netconf-version %q, must be one of 1.0, 1.1", s.NetconfVersion)
	}
	if s.SNMPTimeout <= 0 {
		s.SNMPTimeout = defaultSNMPTimeout
	}
	if s.SNMPRetries < 0 {
		s.SNMPRetries = 0
	}
	return nil
}

// DriverConfig is a driver instance created at startup.
type DriverConfig struct {
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// Kind selects the driver implementation, e.g. cisco-nxos.
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

func (d *DriverConfig) validateSetDefaults() error {
	if d.Name == "" {
		return errors.New("driver without name")
	}
	if d.Kind == "" {
		return fmt.Errorf("driver %q: missing kind", d.Name)
	}
	return nil
}
