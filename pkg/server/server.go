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
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	_ "google.golang.org/grpc/encoding/gzip" // Install the gzip compressor
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/sdcio/shell-server/pkg/config"
	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/lock"
	"github.com/sdcio/shell-server/pkg/session"
)

type Server struct {
	config *config.Config
	ready  *atomic.Bool
	stop   *sync.Once

	ctx context.Context
	cfn context.CancelFunc

	srv    *grpc.Server
	health *health.Server

	router  *mux.Router
	reg     *prometheus.Registry
	httpSrv *http.Server

	registry *driver.Registry
	settings driver.Settings
	drivers  *DriverMap
	commands *commandTracker
}

// New builds a server creating driver instances from registry with the
// given settings.
func New(ctx context.Context, c *config.Config, registry *driver.Registry, settings driver.Settings) (*Server, error) {
	ctx, cancel := context.WithCancel(ctx)
	var s = &Server{
		config: c,
		ready:  &atomic.Bool{},
		stop:   &sync.Once{},
		ctx:    ctx,
		cfn:    cancel,

		health: health.NewServer(),
		router: mux.NewRouter(),
		reg:    prometheus.NewRegistry(),

		registry: registry,
		settings: settings,
		drivers:  NewDriverMap(),
		commands: newCommandTracker(),
	}

	lock.MustRegister(s.reg)
	session.MustRegister(s.reg)
	driver.MustRegister(s.reg)

	// gRPC server options
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(c.GRPCServer.MaxRecvMsgSize),
	}
	// unary interceptors
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		s.readyInterceptor,
		s.timeoutInterceptor,
	}

	var grpcMetrics *grpc_prometheus.ServerMetrics
	if c.Prometheus != nil {
		grpcMetrics = grpc_prometheus.NewServerMetrics()
		opts = append(opts,
			grpc.StreamInterceptor(grpcMetrics.StreamServerInterceptor()),
		)
		unaryInterceptors = append(unaryInterceptors, grpcMetrics.UnaryServerInterceptor())
		s.reg.MustRegister(grpcMetrics)
		s.reg.MustRegister(collectors.NewGoCollector())
		s.reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		s.router.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	opts = append(opts, grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(unaryInterceptors...)))

	if c.GRPCServer.TLS != nil {
		tlsCfg, err := c.GRPCServer.TLS.NewConfig(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	s.srv = grpc.NewServer(opts...)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.srv, s.health)
	if grpcMetrics != nil {
		grpcMetrics.InitializeMetrics(s.srv)
	}

	s.routes()
	s.httpSrv = &http.Server{
		Addr:              c.HTTPServer.Address,
		Handler:           s.router,
		ReadHeaderTimeout: time.Minute,
	}
	if c.HTTPServer.TLS != nil {
		tlsCfg, err := c.HTTPServer.TLS.NewConfig(ctx)
		if err != nil {
			cancel()
			return nil, err
		}
		s.httpSrv.TLSConfig = tlsCfg
	}
	return s, nil
}

// Serve runs the gRPC and HTTP servers until ctx is done or one of them
// fails.
func (s *Server) Serve(ctx context.Context) error {
	gl, err := net.Listen("tcp", s.config.GRPCServer.Address)
	if err != nil {
		return err
	}
	hl, err := net.Listen("tcp", s.config.HTTPServer.Address)
	if err != nil {
		gl.Close()
		return err
	}

	s.createInitialDrivers(ctx)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Infof("starting gRPC server on %s", s.config.GRPCServer.Address)
		return s.srv.Serve(gl)
	})
	eg.Go(func() error {
		log.Infof("starting HTTP server on %s", s.config.HTTPServer.Address)
		var err error
		if s.httpSrv.TLSConfig != nil {
			err = s.httpSrv.ServeTLS(hl, "", "")
		} else {
			err = s.httpSrv.Serve(hl)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	if s.config.Prometheus != nil && s.config.Prometheus.Address != s.config.HTTPServer.Address {
		go s.ServeMetrics()
	}
	eg.Go(func() error {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		s.Stop()
		return nil
	})
	return eg.Wait()
}

// Handler returns the HTTP command API.
func (s *Server) Handler() http.Handler { return s.router }

// ServeMetrics exposes the prometheus registry on its own listener.
func (s *Server) ServeMetrics() {
	m := http.NewServeMux()
	m.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         s.config.Prometheus.Address,
		Handler:      m,
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
	err := srv.ListenAndServe()
	if err != nil {
		log.Errorf("HTTP metrics server stopped: %v", err)
	}
}

// Stop cancels the running commands, closes the listeners and releases the
// sessions of every driver instance.
func (s *Server) Stop() {
	s.stop.Do(s.shutdown)
}

func (s *Server) shutdown() {
	s.ready.Store(false)
	s.health.Shutdown()
	s.commands.cancelAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown: %v", err)
	}
	s.srv.Stop()
	s.drivers.CleanupAll()
	s.cfn()
}

func (s *Server) createInitialDrivers(ctx context.Context) {
	wg := new(sync.WaitGroup)
	for _, dc := range s.config.Drivers {
		dc := dc
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Debugf("creating driver %s of kind %s", dc.Name, dc.Kind)
			d, err := s.registry.New(dc.Kind, dc.Name, s.settings)
			if err != nil {
				log.Errorf("driver %s: %v", dc.Name, err)
				return
			}
			if err := s.drivers.Add(dc.Name, dc.Kind, d); err != nil {
				log.Errorf("driver %s: %v", dc.Name, err)
			}
		}()
	}
	wg.Wait()
	s.ready.Store(true)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.Infof("ready...")
}

func (s *Server) timeoutInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	ctx, cfn := context.WithTimeout(ctx, s.config.GRPCServer.RPCTimeout)
	defer cfn()
	return handler(ctx, req)
}

func (s *Server) readyInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	if !s.ready.Load() {
		return nil, status.Error(codes.Unavailable, "not ready")
	}
	return handler(ctx, req)
}
