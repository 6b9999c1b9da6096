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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/driver"
	"github.com/sdcio/shell-server/pkg/types"
)

const maxBodySize = 4 * 1024 * 1024

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.logRequests, s.readyMiddleware)
	api.HandleFunc("/drivers", s.listDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{name}/initialize", s.initializeDriver).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{name}/commands/{command}", s.executeCommand).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{name}", s.deleteDriver).Methods(http.MethodDelete)
	api.HandleFunc("/commands", s.listCommands).Methods(http.MethodGet)
	api.HandleFunc("/commands/{id}/cancel", s.cancelCommand).Methods(http.MethodPost)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s took %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func (s *Server) readyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeJSON(w, http.StatusServiceUnavailable, &ErrorResponse{Error: "not ready", Type: string(types.KindUnknown)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listDrivers(w http.ResponseWriter, r *http.Request) {
	rsp := &ListResponse{Kinds: s.registry.Kinds()}
	for _, inst := range s.drivers.All() {
		rsp.Drivers = append(rsp.Drivers, &DriverInfo{
			Name:     inst.Name,
			Kind:     inst.Kind,
			Commands: inst.Driver.Commands(),
		})
	}
	if rsp.Drivers == nil {
		rsp.Drivers = []*DriverInfo{}
	}
	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) initializeDriver(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	req := new(InitializeRequest)
	if err := decode(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "", err)
		return
	}
	inst, err := s.drivers.GetOrCreate(name, req.Kind, func() (driver.Driver, error) {
		if req.Kind == "" {
			return nil, fmt.Errorf("driver %s does not exist and no kind was given", name)
		}
		return s.registry.New(req.Kind, name, s.settings)
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "", err)
		return
	}
	result, err := inst.Driver.Initialize(r.Context(), req.Context)
	if err != nil {
		writeError(w, statusFor(err), "", err)
		return
	}
	log.Infof("driver %s (%s) initialized for resource %s", name, inst.Kind, req.Context.Resource.Name)
	writeJSON(w, http.StatusOK, &Response{Result: result})
}

func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, cmd := vars["name"], vars["command"]
	inst, err := s.drivers.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "", err)
		return
	}
	req := new(CommandRequest)
	if err := decode(r, req); err != nil {
		writeError(w, http.StatusBadRequest, "", err)
		return
	}
	if req.CommandID == "" {
		req.CommandID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.HTTPServer.Timeout)
	defer cancel()
	ctx, done, err := s.commands.start(ctx, req.CommandID, name, cmd)
	if err != nil {
		writeError(w, http.StatusConflict, req.CommandID, err)
		return
	}
	defer done()

	result, err := inst.Driver.Execute(ctx, driver.Request{
		Command:   cmd,
		CommandID: req.CommandID,
		Context:   req.Context,
		Params:    req.Params,
	})
	if err != nil {
		writeError(w, statusFor(err), req.CommandID, err)
		return
	}
	writeJSON(w, http.StatusOK, &Response{CommandID: req.CommandID, Result: result})
}

func (s *Server) deleteDriver(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.drivers.Delete(name); err != nil {
		writeError(w, http.StatusNotFound, "", err)
		return
	}
	log.Infof("driver %s cleaned up", name)
	writeJSON(w, http.StatusOK, &Response{})
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &CommandsResponse{Commands: s.commands.list()})
}

func (s *Server) cancelCommand(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.commands.cancel(id) {
		writeError(w, http.StatusNotFound, id, fmt.Errorf("command %s is not running", id))
		return
	}
	log.Infof("command %s cancelled", id)
	writeJSON(w, http.StatusAccepted, &Response{CommandID: id, Result: "cancelled"})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch types.Kind(err) {
	case types.KindCredential:
		return http.StatusUnauthorized
	case types.KindConnection:
		return http.StatusBadGateway
	case types.KindCommandExecution:
		return http.StatusUnprocessableEntity
	case types.KindLockTimeout:
		return http.StatusLocked
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, code int, id string, err error) {
	writeJSON(w, code, &ErrorResponse{CommandID: id, Error: err.Error(), Type: string(types.Kind(err))})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}
