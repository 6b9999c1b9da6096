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

package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/snmp"
	"github.com/sdcio/shell-server/pkg/types"
)

// SNMP objects read during discovery.
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysObjectID = "1.3.6.1.2.1.1.2.0"
	oidSysContact  = "1.3.6.1.2.1.1.4.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"

	oidIfDescr       = "1.3.6.1.2.1.2.2.1.2"
	oidIfType        = "1.3.6.1.2.1.2.2.1.3"
	oidIfMtu         = "1.3.6.1.2.1.2.2.1.4"
	oidIfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	oidIfHighSpeed   = "1.3.6.1.2.1.31.1.1.1.15"
	oidIfAlias       = "1.3.6.1.2.1.31.1.1.1.18"

	oidEntPhysicalClass    = "1.3.6.1.2.1.47.1.1.1.1.5"
	oidEntPhysicalSerialNo = "1.3.6.1.2.1.47.1.1.1.1.11"
	oidEntPhysicalModel    = "1.3.6.1.2.1.47.1.1.1.1.13"

	entClassChassis = 3

	ifTypeEthernet    = 6
	ifTypeGigabit     = 117
	ifTypeLag         = 161
	chassisRelAddress = "CH1"
)

// AutoloadResource is a sub resource found on the device.
type AutoloadResource struct {
	Model            string `json:"model"`
	Name             string `json:"name"`
	RelativeAddress  string `json:"relative_address"`
	UniqueIdentifier string `json:"unique_identifier"`
}

// AutoloadAttribute is an attribute of the device or one of its sub
// resources. The root resource has an empty relative address.
type AutoloadAttribute struct {
	RelativeAddress string `json:"relative_address"`
	AttributeName   string `json:"attribute_name"`
	AttributeValue  string `json:"attribute_value"`
}

// AutoloadDetails is the structure returned by get_inventory.
type AutoloadDetails struct {
	Resources  []AutoloadResource  `json:"resources"`
	Attributes []AutoloadAttribute `json:"attributes"`
}

func (d AutoloadDetails) JSON() (string, error) {
	if d.Resources == nil {
		d.Resources = []AutoloadResource{}
	}
	if d.Attributes == nil {
		d.Attributes = []AutoloadAttribute{}
	}
	b, err := json.Marshal(d)
	return string(b), err
}

func (d *AutoloadDetails) attr(rel, name, value string) {
	d.Attributes = append(d.Attributes, AutoloadAttribute{RelativeAddress: rel, AttributeName: name, AttributeValue: value})
}

// SNMPParams builds the SNMP parameters of the resource.
func (r *Runner) SNMPParams() snmp.Params {
	return snmp.Params{
		Address:      r.Config.Address,
		Version:      r.Config.SNMPVersion,
		Community:    r.Config.SNMPReadCommunity,
		User:         r.Config.SNMPV3User,
		AuthProtocol: r.Config.SNMPV3AuthProtocol,
		AuthPassword: r.Credentials.SNMPV3Password,
		PrivProtocol: r.Config.SNMPV3PrivProtocol,
		PrivKey:      r.Credentials.SNMPV3PrivKey,
	}
}

func (r *Runner) snmpCommunityCommand(remove bool) (string, error) {
	community := r.Config.SNMPReadCommunity
	if community == "" {
		return "", types.CommandExecutionErrorf("SNMP read community is empty, cannot enable SNMP")
	}
	if remove {
		return "no snmp-server community " + community, nil
	}
	return "snmp-server community " + community + " ro", nil
}

// Discover reads the device over SNMP and returns its structure. SNMP is
// enabled through the CLI first and disabled afterwards when the resource
// asks for it.
func (r *Runner) Discover(ctx context.Context) (AutoloadDetails, error) {
	log := logging.FromContext(ctx)
	if r.SNMP == nil {
		return AutoloadDetails{}, types.CommandExecutionErrorf("no SNMP handler configured")
	}
	v3 := strings.Contains(strings.ToLower(r.Config.SNMPVersion), "3")
	if r.Config.EnableSNMP && !v3 {
		cmd, err := r.snmpCommunityCommand(false)
		if err != nil {
			return AutoloadDetails{}, err
		}
		log.Info("enabling SNMP")
		if err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
			_, err := r.sendConfig(ctx, s, []string{cmd})
			return err
		}); err != nil {
			return AutoloadDetails{}, err
		}
		if r.Config.DisableSNMP {
			defer func() {
				cmd, _ := r.snmpCommunityCommand(true)
				log.Info("disabling SNMP")
				if err := r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
					_, err := r.sendConfig(ctx, s, []string{cmd})
					return err
				}); err != nil {
					log.Errorf("failed to disable SNMP: %v", err)
				}
			}()
		}
	}

	h, err := r.SNMP.Open(ctx, r.SNMPParams())
	if err != nil {
		return AutoloadDetails{}, types.NewConnectionError(r.Config.Address, err)
	}
	defer h.Close()
	return r.discover(ctx, h)
}

func (r *Runner) discover(ctx context.Context, h snmp.Handler) (AutoloadDetails, error) {
	sys, err := h.Get(ctx, oidSysDescr, oidSysObjectID, oidSysContact, oidSysName, oidSysLocation)
	if err != nil {
		return AutoloadDetails{}, types.NewConnectionError(r.Config.Address, err)
	}
	values := map[string]string{}
	for _, v := range sys {
		values[v.OID] = v.String()
	}
	descr := values[oidSysDescr]
	if !r.supportedOS(descr) {
		return AutoloadDetails{}, types.CommandExecutionErrorf("unsupported device OS: %q", firstLine(descr))
	}

	d := AutoloadDetails{}
	d.attr("", r.Config.AttributeName("Vendor"), r.Profile.Vendor)
	d.attr("", r.Config.AttributeName("System Name"), values[oidSysName])
	d.attr("", r.Config.AttributeName("Contact Name"), values[oidSysContact])
	d.attr("", r.Config.AttributeName("Location"), values[oidSysLocation])
	version := ""
	if r.Profile.VersionPattern != nil {
		if m := r.Profile.VersionPattern.FindStringSubmatch(descr); len(m) > 1 {
			version = m[1]
		}
	}
	d.attr("", r.Config.AttributeName("OS Version"), version)

	model, serial, err := r.chassis(ctx, h)
	if err != nil {
		return AutoloadDetails{}, err
	}
	if model == "" {
		model = values[oidSysObjectID]
	}
	d.attr("", r.Config.AttributeName("Model"), model)

	d.Resources = append(d.Resources, AutoloadResource{
		Model:            r.Config.ShellName + ".GenericChassis",
		Name:             "Chassis 1",
		RelativeAddress:  chassisRelAddress,
		UniqueIdentifier: r.uniqueID(chassisRelAddress),
	})
	d.attr(chassisRelAddress, r.Config.ShellName+".GenericChassis.Model", model)
	d.attr(chassisRelAddress, r.Config.ShellName+".GenericChassis.Serial Number", serial)

	if err := r.ports(ctx, h, &d); err != nil {
		return AutoloadDetails{}, err
	}
	return d, nil
}

func (r *Runner) supportedOS(descr string) bool {
	if len(r.Config.SupportedOS) == 0 {
		return true
	}
	for _, p := range r.Config.SupportedOS {
		if re, err := regexp.Compile("(?i)" + p); err == nil && re.MatchString(descr) {
			return true
		}
	}
	return false
}

func (r *Runner) uniqueID(rel string) string {
	return fmt.Sprintf("%s.%s", r.Config.Name, rel)
}

func (r *Runner) chassis(ctx context.Context, h snmp.Handler) (model, serial string, err error) {
	classes, err := h.Walk(ctx, oidEntPhysicalClass)
	if err != nil {
		return "", "", types.NewConnectionError(r.Config.Address, err)
	}
	idx := ""
	for _, c := range classes {
		if c.Int() == entClassChassis {
			idx = c.Index(oidEntPhysicalClass)
			break
		}
	}
	if idx == "" {
		return "", "", nil
	}
	vars, err := h.Get(ctx, oidEntPhysicalModel+"."+idx, oidEntPhysicalSerialNo+"."+idx)
	if err != nil {
		return "", "", types.NewConnectionError(r.Config.Address, err)
	}
	for _, v := range vars {
		switch v.OID {
		case oidEntPhysicalModel + "." + idx:
			model = strings.TrimSpace(v.String())
		case oidEntPhysicalSerialNo + "." + idx:
			serial = strings.TrimSpace(v.String())
		}
	}
	return model, serial, nil
}

type ifEntry struct {
	index int
	descr string
	typ   int64
	mtu   string
	mac   string
	speed string
	alias string
}

func (r *Runner) ports(ctx context.Context, h snmp.Handler, d *AutoloadDetails) error {
	entries := map[string]*ifEntry{}
	get := func(idx string) *ifEntry {
		e, ok := entries[idx]
		if !ok {
			n, _ := strconv.Atoi(idx)
			e = &ifEntry{index: n}
			entries[idx] = e
		}
		return e
	}
	columns := []struct {
		oid string
		set func(e *ifEntry, v snmp.Variable)
	}{
		{oidIfDescr, func(e *ifEntry, v snmp.Variable) { e.descr = v.String() }},
		{oidIfType, func(e *ifEntry, v snmp.Variable) { e.typ = v.Int() }},
		{oidIfMtu, func(e *ifEntry, v snmp.Variable) { e.mtu = v.String() }},
		{oidIfPhysAddress, func(e *ifEntry, v snmp.Variable) { e.mac = macAddress(v.Raw) }},
		{oidIfHighSpeed, func(e *ifEntry, v snmp.Variable) { e.speed = v.String() }},
		{oidIfAlias, func(e *ifEntry, v snmp.Variable) { e.alias = v.String() }},
	}
	for _, col := range columns {
		vars, err := h.Walk(ctx, col.oid)
		if err != nil {
			return types.NewConnectionError(r.Config.Address, err)
		}
		for _, v := range vars {
			col.set(get(v.Index(col.oid)), v)
		}
	}

	list := make([]*ifEntry, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].index < list[j].index })

	for _, e := range list {
		if e.descr == "" {
			continue
		}
		var model, rel string
		switch e.typ {
		case ifTypeEthernet, ifTypeGigabit:
			if strings.HasPrefix(strings.ToLower(e.descr), "mgmt") {
				continue
			}
			model = r.Config.ShellName + ".GenericPort"
			rel = fmt.Sprintf("%s/P%d", chassisRelAddress, e.index)
		case ifTypeLag:
			model = r.Config.ShellName + ".GenericPortChannel"
			rel = fmt.Sprintf("PC%d", e.index)
		default:
			continue
		}
		d.Resources = append(d.Resources, AutoloadResource{
			Model:            model,
			Name:             PortResourceName(e.descr),
			RelativeAddress:  rel,
			UniqueIdentifier: r.uniqueID(rel),
		})
		d.attr(rel, model+".Port Description", e.alias)
		if e.typ == ifTypeLag {
			continue
		}
		d.attr(rel, model+".MAC Address", e.mac)
		d.attr(rel, model+".MTU", e.mtu)
		d.attr(rel, model+".Bandwidth", e.speed)
		d.attr(rel, model+".L2 Protocol Type", "ethernet")
	}
	return nil
}

// PortResourceName turns an interface name into a resource name. Resource
// names cannot contain "/", so "/" becomes "-" and an existing "-" is doubled.
func PortResourceName(ifName string) string {
	name := strings.ReplaceAll(strings.TrimSpace(ifName), "-", "--")
	return strings.ReplaceAll(name, "/", "-")
}

// PortInterfaceName reverses PortResourceName for the last element of a full
// resource name such as "sw1/Chassis 1/Ethernet1-1".
func PortInterfaceName(fullName string) string {
	name := fullName
	if i := strings.LastIndex(fullName, "/"); i >= 0 {
		name = fullName[i+1:]
	}
	name = strings.TrimSpace(name)
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		switch {
		case name[i] != '-':
			sb.WriteByte(name[i])
		case i+1 < len(name) && name[i+1] == '-':
			sb.WriteByte('-')
			i++
		default:
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

func macAddress(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return net.HardwareAddr(b).String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
