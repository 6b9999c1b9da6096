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
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
	"sigs.k8s.io/controller-runtime/pkg/certwatcher"
)

type Config struct {
	HTTPServer   *HTTPServer     `yaml:"http-server,omitempty" json:"http-server,omitempty"`
	GRPCServer   *GRPCServer     `yaml:"grpc-server,omitempty" json:"grpc-server,omitempty"`
	Prometheus   *PromConfig     `yaml:"prometheus,omitempty" json:"prometheus,omitempty"`
	HostAPI      *HostAPI        `yaml:"host-api,omitempty" json:"host-api,omitempty"`
	Defaults     *Defaults       `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Drivers      []*DriverConfig `yaml:"drivers,omitempty" json:"drivers,omitempty"`
	TemplatesDir string          `yaml:"templates-dir,omitempty" json:"templates-dir,omitempty"`
}

type TLS struct {
	CA         string `yaml:"ca,omitempty" json:"ca,omitempty"`
	Cert       string `yaml:"cert,omitempty" json:"cert,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	SkipVerify bool   `yaml:"skip-verify,omitempty" json:"skip-verify,omitempty"`
}

func New(file string) (*Config, error) {
	c := new(Config)
	if file != "" {
		file, err := homedir.Expand(file)
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	}
	err := c.validateSetDefaults()
	return c, err
}

func (c *Config) validateSetDefaults() error {
	if c.HTTPServer == nil {
		c.HTTPServer = &HTTPServer{}
	}
	if err := c.HTTPServer.validateSetDefaults(); err != nil {
		return err
	}
	if c.GRPCServer == nil {
		c.GRPCServer = &GRPCServer{}
	}
	if err := c.GRPCServer.validateSetDefaults(); err != nil {
		return err
	}
	if c.Prometheus != nil {
		if err := c.Prometheus.validateSetDefaults(); err != nil {
			return err
		}
	}
	if c.HostAPI == nil {
		c.HostAPI = &HostAPI{}
	}
	if err := c.HostAPI.validateSetDefaults(); err != nil {
		return err
	}
	if c.Defaults == nil {
		c.Defaults = &Defaults{}
	}
	if err := c.Defaults.validateSetDefaults(); err != nil {
		return err
	}

	if c.TemplatesDir == "" {
		c.TemplatesDir = defaultTemplatesDir
	}
	dir, err := homedir.Expand(c.TemplatesDir)
	if err != nil {
		return fmt.Errorf("templates-dir: %w", err)
	}
	c.TemplatesDir = dir

	var errs []error
	names := make(map[string]struct{}, len(c.Drivers))
	for _, d := range c.Drivers {
		if err := d.validateSetDefaults(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := names[d.Name]; ok {
			errs = append(errs, fmt.Errorf("driver %q defined twice", d.Name))
		}
		names[d.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

type HTTPServer struct {
	Address string        `yaml:"address,omitempty" json:"address,omitempty"`
	TLS     *TLS          `yaml:"tls,omitempty" json:"tls,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (h *HTTPServer) validateSetDefaults() error {
	if h.Address == "" {
		h.Address = defaultHTTPAddress
	}
	if _, _, err := net.SplitHostPort(h.Address); err != nil {
		return fmt.Errorf("http-server address: %w", err)
	}
	if h.Timeout <= 0 {
		h.Timeout = defaultHTTPTimeout
	}
	return nil
}

type GRPCServer struct {
	Address        string        `yaml:"address,omitempty" json:"address,omitempty"`
	TLS            *TLS          `yaml:"tls,omitempty" json:"tls,omitempty"`
	MaxRecvMsgSize int           `yaml:"max-recv-msg-size,omitempty" json:"max-recv-msg-size,omitempty"`
	RPCTimeout     time.Duration `yaml:"rpc-timeout,omitempty" json:"rpc-timeout,omitempty"`
}

func (g *GRPCServer) validateSetDefaults() error {
	if g.Address == "" {
		g.Address = defaultGRPCAddress
	}
	if g.MaxRecvMsgSize <= 0 {
		g.MaxRecvMsgSize = defaultMaxRecvMsgSize
	}
	if g.RPCTimeout <= 0 {
		g.RPCTimeout = defaultRPCTimeout
	}
	return nil
}

type PromConfig struct {
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

func (p *PromConfig) validateSetDefaults() error {
	if p.Address == "" {
		p.Address = defaultPromAddress
	}
	return nil
}

// HostAPI configures the client of the orchestration host API. The host
// address and token come with every command.
type HostAPI struct {
	Scheme  string        `yaml:"scheme,omitempty" json:"scheme,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

func (h *HostAPI) validateSetDefaults() error {
	switch h.Scheme {
	case "":
		h.Scheme = "http"
	case "http", "https":
	default:
		return fmt.Errorf("host-api: unknown scheme %q", h.Scheme)
	}
	if h.Timeout <= 0 {
		h.Timeout = defaultHostAPITimeout
	}
	return nil
}

func (t *TLS) NewConfig(ctx context.Context) (*tls.Config, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: t.SkipVerify}
	if t.CA != "" {
		ca, err := os.ReadFile(t.CA)
		if err != nil {
			return nil, fmt.Errorf("failed to read client CA cert: %w", err)
		}
		if len(ca) != 0 {
			caCertPool := x509.NewCertPool()
			caCertPool.AppendCertsFromPEM(ca)
			tlsCfg.RootCAs = caCertPool
		}
	}

	if t.Cert != "" && t.Key != "" {
		certWatcher, err := certwatcher.New(t.Cert, t.Key)
		if err != nil {
			return nil, err
		}

		go func() {
			if err := certWatcher.Start(ctx); err != nil {
				log.Errorf("certificate watcher error: %v", err)
			}
		}()
		tlsCfg.GetCertificate = certWatcher.GetCertificate
	}
	return tlsCfg, nil
}
