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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sdcio/shell-server/pkg/config"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/driver/centos"
	"github.com/sdcio/shell-server/pkg/driver/nxos"
	"github.com/sdcio/shell-server/pkg/driver/openstack"
	"github.com/sdcio/shell-server/pkg/hostapi"
	"github.com/sdcio/shell-server/pkg/retry"
	"github.com/sdcio/shell-server/pkg/server"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/session/cli"
	"github.com/sdcio/shell-server/pkg/session/netconf"
	"github.com/sdcio/shell-server/pkg/session/ssh"
	"github.com/sdcio/shell-server/pkg/snmp"
)

var configFile string
var debug bool
var trace bool
var jsonLog bool
var pprofAddress string
var stop bool

var versionFlag bool
var version = "dev"
var commit = ""

func main() {
	pflag.StringVarP(&configFile, "config", "c", "", "config file path")
	pflag.BoolVarP(&debug, "debug", "d", false, "set log level to DEBUG")
	pflag.BoolVarP(&trace, "trace", "t", false, "set log level to TRACE")
	pflag.BoolVar(&jsonLog, "json-log", false, "log in JSON format")
	pflag.StringVar(&pprofAddress, "pprof-address", "", "start a pprof server on this address")
	pflag.BoolVarP(&versionFlag, "version", "v", false, "print version")
	pflag.Parse()

	if versionFlag {
		fmt.Println(version + "-" + commit)
		return
	}

	log.SetLevel(log.InfoLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	if trace {
		log.SetLevel(log.TraceLevel)
		log.SetReportCaller(true)
	}
	if jsonLog {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if pprofAddress != "" {
		go func() {
			log.Infof("pprof server started on %s", pprofAddress)
			err := http.ListenAndServe(pprofAddress, nil)
			if err != nil {
				log.Errorf("pprof server failed: %v", err)
			}
		}()
	}

	log.Infof("shell-server bootstrap version=%s commit=%s log-level=%s", version, commit, log.GetLevel())

	var s *server.Server
START:
	if s != nil {
		s.Stop()
	}
	cfg, err := config.New(configFile)
	if err != nil {
		log.Errorf("failed to read config: %v", err)
		os.Exit(1)
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		log.Errorf("failed to marshal config: %v", err)
		os.Exit(1)
	}
	log.Infof("read config:\n%s", string(b))

	ctx, cancel := context.WithCancel(context.Background())
	setupCloseHandler(cancel)
	s, err = server.New(ctx, cfg, newRegistry(), newSettings(cfg))
	if err != nil {
		log.Errorf("failed to create server: %v", err)
		os.Exit(1)
	}

	err = s.Serve(ctx)
	if err != nil {
		if stop {
			return
		}
		log.Errorf("failed to run server: %v", err)
		time.Sleep(time.Second)
		goto START
	}
}

func newRegistry() *driver.Registry {
	reg := driver.NewRegistry()
	reg.Register(nxos.Kind, nxos.Factory())
	reg.Register(centos.Kind, centos.Factory())
	reg.Register(openstack.Kind, openstack.Factory(nil))
	return reg
}

func newSettings(cfg *config.Config) driver.Settings {
	d := cfg.Defaults
	policy := retry.Policy{
		MaxAttempts:     d.Retry.MaxAttempts,
		InitialInterval: d.Retry.InitialInterval,
		MaxInterval:     d.Retry.MaxInterval,
	}
	scrapli := cli.Factory{}
	return driver.Settings{
		LockTimeout:     d.LockTimeout,
		Retry:           policy,
		SessionTimeout:  d.Session.OpsTimeout,
		BreakerFailures: d.Session.BreakerFailures,
		BreakerTimeout:  d.Session.BreakerTimeout,
		TemplatesDir:    cfg.TemplatesDir,
		HostAPI: &hostapi.HTTPFactory{
			Scheme:  cfg.HostAPI.Scheme,
			Timeout: cfg.HostAPI.Timeout,
			Retry:   policy,
		},
		Sessions: session.Dispatch{
			session.TransportAuto:    scrapli,
			session.TransportSSH:     scrapli,
			session.TransportTelnet:  scrapli,
			session.TransportExec:    ssh.Factory{},
			session.TransportNetconf: netconf.Factory{PreferredVersion: d.Session.NetconfVersion},
		},
		SNMP: snmp.WithTimeout(snmp.GoSNMP, d.Session.SNMPTimeout, d.Session.SNMPRetries),
		Now:  time.Now,
	}
}

func setupCloseHandler(cancelFn context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-c
		fmt.Fprintf(os.Stderr, "\nreceived signal '%s'. terminating...\n", sig.String())
		stop = true
		cancelFn()
		time.Sleep(500 * time.Millisecond)
		os.Exit(0)
	}()
}
