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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sdcio/shell-server/pkg/command"
	"github.com/sdcio/shell-server/pkg/retry"
)

const defaultAPIPort = 9000

// HTTPFactory creates HTTP API sessions towards the host named in the command
// context.
type HTTPFactory struct {
	// Scheme is http or https.
	Scheme  string
	Timeout time.Duration
	Retry   retry.Policy
	Client  *http.Client
}

func (f *HTTPFactory) NewSession(_ context.Context, cc command.Context) (API, error) {
	conn := cc.Connectivity
	if conn.ServerAddress == "" {
		return nil, fmt.Errorf("command context: missing host server address")
	}
	port := conn.APIPort
	if port == 0 {
		port = defaultAPIPort
	}
	scheme := f.Scheme
	if scheme == "" {
		scheme = "http"
	}
	hc := f.Client
	if hc == nil {
		hc = &http.Client{Timeout: f.Timeout}
	}
	return &httpSession{
		base: url.URL{
			Scheme: scheme,
			Host:   conn.ServerAddress + ":" + strconv.Itoa(port),
			Path:   "/api/",
		},
		token:  conn.AdminAuthToken,
		domain: cc.Reservation.Domain,
		client: hc,
		retry:  f.Retry,
	}, nil
}

type httpSession struct {
	base   url.URL
	token  string
	domain string
	client *http.Client
	retry  retry.Policy
}

type decryptPasswordRequest struct {
	EncryptedString string `json:"encryptedString"`
}

type decryptPasswordResponse struct {
	Value string `json:"Value"`
}

func (s *httpSession) DecryptPassword(ctx context.Context, encrypted string) (string, error) {
	rsp := new(decryptPasswordResponse)
	err := s.call(ctx, http.MethodPost, "DecryptPassword", nil, &decryptPasswordRequest{EncryptedString: encrypted}, rsp)
	if err != nil {
		return "", err
	}
	return rsp.Value, nil
}

type reservationMessageRequest struct {
	ReservationID string `json:"reservationId"`
	Message       string `json:"message"`
}

func (s *httpSession) WriteMessageToReservationOutput(ctx context.Context, reservationID, message string) error {
	return s.call(ctx, http.MethodPost, "WriteMessageToReservationOutput", nil,
		&reservationMessageRequest{ReservationID: reservationID, Message: message}, nil)
}

type reservationDetailsResponse struct {
	ReservationDescription ReservationDetails `json:"ReservationDescription"`
}

func (s *httpSession) GetReservationDetails(ctx context.Context, reservationID string) (*ReservationDetails, error) {
	rsp := new(reservationDetailsResponse)
	q := url.Values{"reservationId": []string{reservationID}}
	err := s.call(ctx, http.MethodGet, "GetReservationDetails", q, nil, rsp)
	if err != nil {
		return nil, err
	}
	return &rsp.ReservationDescription, nil
}

type liveStatusRequest struct {
	ResourceFullName string `json:"resourceFullName"`
	LiveStatusName   string `json:"liveStatusName"`
	AdditionalInfo   string `json:"additionalInfo"`
}

func (s *httpSession) SetResourceLiveStatus(ctx context.Context, resourceName, status, description string) error {
	return s.call(ctx, http.MethodPost, "SetResourceLiveStatus", nil,
		&liveStatusRequest{ResourceFullName: resourceName, LiveStatusName: status, AdditionalInfo: description}, nil)
}

func (s *httpSession) call(ctx context.Context, method, name string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return err
		}
	}
	u := s.base
	u.Path += name
	u.RawQuery = query.Encode()

	return retry.Do(ctx, s.retry, "host api "+name, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Basic "+s.token)
		if s.domain != "" {
			req.Header.Set("X-Domain", s.domain)
		}
		log.Tracef("host api request %s %s", method, u.Path)
		rsp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer rsp.Body.Close()
		b, err := io.ReadAll(rsp.Body)
		if err != nil {
			return err
		}
		if rsp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("host api %s: %s: %s", name, rsp.Status, bytes.TrimSpace(b))
		}
		if out == nil || len(b) == 0 {
			return nil
		}
		return json.Unmarshal(b, out)
	})
}
