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

// Package snmp reads device MIBs over SNMP for discovery.
package snmp

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPort    = 161
	defaultTimeout = 5 * time.Second
)

// Params describes how to reach the SNMP agent of a device.
type Params struct {
	Address   string
	Port      uint16
	Version   string
	Community string
	// v3
	User         string
	AuthProtocol string
	AuthPassword string
	PrivProtocol string
	PrivKey      string

	Timeout time.Duration
	Retries int
}

// Variable is one decoded varbind. Octet strings are returned as string,
// integer types as int64, object identifiers as string.
type Variable struct {
	OID   string
	Value any
	Raw   []byte
}

func (v Variable) String() string {
	switch val := v.Value.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func (v Variable) Int() int64 {
	if i, ok := v.Value.(int64); ok {
		return i
	}
	return 0
}

// Index returns the OID suffix below root, e.g. the ifIndex of a table cell.
func (v Variable) Index(root string) string {
	return strings.TrimPrefix(strings.TrimPrefix(v.OID, strings.TrimPrefix(root, ".")), ".")
}

// Handler queries one agent.
type Handler interface {
	Get(ctx context.Context, oids ...string) ([]Variable, error)
	Walk(ctx context.Context, root string) ([]Variable, error)
	Close() error
}

// Opener connects handlers.
type Opener interface {
	Open(ctx context.Context, p Params) (Handler, error)
}

type OpenerFunc func(ctx context.Context, p Params) (Handler, error)

func (f OpenerFunc) Open(ctx context.Context, p Params) (Handler, error) { return f(ctx, p) }

// GoSNMP opens gosnmp backed handlers.
var GoSNMP Opener = OpenerFunc(Open)

// WithTimeout fills in the timeout and retries of requests that leave them
// unset before handing them to o.
func WithTimeout(o Opener, timeout time.Duration, retries int) Opener {
	return OpenerFunc(func(ctx context.Context, p Params) (Handler, error) {
		if p.Timeout <= 0 {
			p.Timeout = timeout
		}
		if p.Retries == 0 {
			p.Retries = retries
		}
		return o.Open(ctx, p)
	})
}

// Open connects to the agent described by p.
func Open(ctx context.Context, p Params) (Handler, error) {
	g := &gosnmp.GoSNMP{
		Target:             p.Address,
		Port:               p.Port,
		Community:          p.Community,
		Timeout:            p.Timeout,
		Retries:            p.Retries,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     20,
		ExponentialTimeout: true,
		Context:            ctx,
	}
	if g.Port == 0 {
		g.Port = defaultPort
	}
	if g.Timeout <= 0 {
		g.Timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(p.Version)) {
	case "v1", "1":
		g.Version = gosnmp.Version1
	case "", "v2", "v2c", "2", "2c":
		g.Version = gosnmp.Version2c
	case "v3", "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		usm, flags, err := usmParams(p)
		if err != nil {
			return nil, err
		}
		g.SecurityParameters = usm
		g.MsgFlags = flags
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", p.Version)
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect to %s: %w", p.Address, err)
	}
	log.Debugf("snmp: connected to %s:%d (%s)", p.Address, g.Port, g.Version)
	return &handler{g: g}, nil
}

func usmParams(p Params) (*gosnmp.UsmSecurityParameters, gosnmp.SnmpV3MsgFlags, error) {
	usm := &gosnmp.UsmSecurityParameters{UserName: p.User}
	flags := gosnmp.NoAuthNoPriv

	auth, ok := authProtocols[normalizeProtocol(p.AuthProtocol)]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported SNMP v3 authentication protocol %q", p.AuthProtocol)
	}
	if auth != gosnmp.NoAuth {
		usm.AuthenticationProtocol = auth
		usm.AuthenticationPassphrase = p.AuthPassword
		flags = gosnmp.AuthNoPriv
	}
	priv, ok := privProtocols[normalizeProtocol(p.PrivProtocol)]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported SNMP v3 privacy protocol %q", p.PrivProtocol)
	}
	if priv != gosnmp.NoPriv {
		if auth == gosnmp.NoAuth {
			return nil, 0, fmt.Errorf("SNMP v3 privacy protocol %q requires an authentication protocol", p.PrivProtocol)
		}
		usm.PrivacyProtocol = priv
		usm.PrivacyPassphrase = p.PrivKey
		flags = gosnmp.AuthPriv
	}
	return usm, flags, nil
}

func normalizeProtocol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || strings.HasPrefix(s, "NO ") {
		return ""
	}
	return strings.ReplaceAll(s, "-", "")
}

var authProtocols = map[string]gosnmp.SnmpV3AuthProtocol{
	"":       gosnmp.NoAuth,
	"MD5":    gosnmp.MD5,
	"SHA":    gosnmp.SHA,
	"SHA224": gosnmp.SHA224,
	"SHA256": gosnmp.SHA256,
	"SHA384": gosnmp.SHA384,
	"SHA512": gosnmp.SHA512,
}

var privProtocols = map[string]gosnmp.SnmpV3PrivProtocol{
	"":       gosnmp.NoPriv,
	"DES":    gosnmp.DES,
	"AES":    gosnmp.AES,
	"AES128": gosnmp.AES,
	"AES192": gosnmp.AES192,
	"AES256": gosnmp.AES256,
}

type handler struct {
	g *gosnmp.GoSNMP
}

func (h *handler) Get(ctx context.Context, oids ...string) ([]Variable, error) {
	h.g.Context = ctx
	pkt, err := h.g.Get(oids)
	if err != nil {
		return nil, err
	}
	if pkt.Error != gosnmp.NoError {
		return nil, fmt.Errorf("snmp get %v: %v", oids, pkt.Error)
	}
	vars := make([]Variable, 0, len(pkt.Variables))
	for _, pdu := range pkt.Variables {
		if pdu.Type == gosnmp.NoSuchObject || pdu.Type == gosnmp.NoSuchInstance {
			continue
		}
		vars = append(vars, decode(pdu))
	}
	return vars, nil
}

func (h *handler) Walk(ctx context.Context, root string) ([]Variable, error) {
	h.g.Context = ctx
	walk := h.g.BulkWalkAll
	if h.g.Version == gosnmp.Version1 {
		walk = h.g.WalkAll
	}
	pdus, err := walk(root)
	if err != nil {
		return nil, err
	}
	vars := make([]Variable, 0, len(pdus))
	for _, pdu := range pdus {
		vars = append(vars, decode(pdu))
	}
	return vars, nil
}

func (h *handler) Close() error {
	if h.g.Conn == nil {
		return nil
	}
	return h.g.Conn.Close()
}

func decode(pdu gosnmp.SnmpPDU) Variable {
	v := Variable{OID: strings.TrimPrefix(pdu.Name, ".")}
	switch pdu.Type {
	case gosnmp.OctetString:
		b, _ := pdu.Value.([]byte)
		v.Raw = b
		v.Value = string(b)
	case gosnmp.ObjectIdentifier:
		s, _ := pdu.Value.(string)
		v.Value = strings.TrimPrefix(s, ".")
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
		v.Value = toInt64(gosnmp.ToBigInt(pdu.Value))
	default:
		v.Value = pdu.Value
	}
	return v
}

func toInt64(b *big.Int) int64 {
	if b == nil || !b.IsInt64() {
		return 0
	}
	return b.Int64()
}
