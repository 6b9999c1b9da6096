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
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/session"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	ActionSetVlan    = "setVlan"
	ActionRemoveVlan = "removeVlan"

	modeAccess = "access"
	modeTrunk  = "trunk"
)

var vlanRange = regexp.MustCompile(`^\d+(-\d+)?(,\d+(-\d+)?)*$`)

type ConnectivityRequest struct {
	DriverRequest struct {
		Actions []ConnectivityAction `json:"actions"`
	} `json:"driverRequest"`
}

type ConnectivityAction struct {
	ActionID         string           `json:"actionId"`
	Type             string           `json:"type"`
	ConnectionID     string           `json:"connectionId,omitempty"`
	ConnectionParams ConnectionParams `json:"connectionParams"`
	ActionTarget     ActionTarget     `json:"actionTarget"`
}

type ConnectionParams struct {
	VlanID                string             `json:"vlanId"`
	Mode                  string             `json:"mode"`
	VlanServiceAttributes []ServiceAttribute `json:"vlanServiceAttributes,omitempty"`
}

type ServiceAttribute struct {
	AttributeName  string `json:"attributeName"`
	AttributeValue string `json:"attributeValue"`
}

type ActionTarget struct {
	FullName    string `json:"fullName"`
	FullAddress string `json:"fullAddress"`
}

type ActionResult struct {
	ActionID         string `json:"actionId"`
	Type             string `json:"type"`
	UpdatedInterface string `json:"updatedInterface"`
	InfoMessage      string `json:"infoMessage"`
	ErrorMessage     string `json:"errorMessage"`
	Success          bool   `json:"success"`
}

type connectivityResponse struct {
	DriverResponse struct {
		ActionResults []ActionResult `json:"actionResults"`
	} `json:"driverResponse"`
}

func (p ConnectionParams) qinq() bool {
	for _, a := range p.VlanServiceAttributes {
		if strings.EqualFold(a.AttributeName, "QnQ") && strings.EqualFold(a.AttributeValue, "true") {
			return true
		}
	}
	return false
}

// ApplyConnectivityChanges runs the actions of a connectivity request
// concurrently and reports one result per action.
func (r *Runner) ApplyConnectivityChanges(ctx context.Context, request string) (string, error) {
	var req ConnectivityRequest
	if err := json.Unmarshal([]byte(request), &req); err != nil {
		return "", types.CommandExecutionErrorf("invalid connectivity request: %v", err)
	}
	actions := req.DriverRequest.Actions
	results := make([]ActionResult, len(actions))

	var g errgroup.Group
	g.SetLimit(r.Pool.Limit())
	for i, a := range actions {
		i, a := i, a
		g.Go(func() error {
			results[i] = r.applyAction(ctx, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var resp connectivityResponse
	resp.DriverResponse.ActionResults = results
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Runner) applyAction(ctx context.Context, a ConnectivityAction) ActionResult {
	iface := PortInterfaceName(a.ActionTarget.FullName)
	res := ActionResult{ActionID: a.ActionID, Type: a.Type, UpdatedInterface: a.ActionTarget.FullName}

	cmds, err := vlanCommands(a, iface)
	if err == nil {
		err = r.Pool.With(ctx, func(ctx context.Context, s session.Session) error {
			_, err := r.sendConfig(ctx, s, cmds)
			return err
		})
	}
	if err != nil {
		logging.FromContext(ctx).Errorf("action %s on %s failed: %v", a.ActionID, iface, err)
		res.ErrorMessage = err.Error()
		return res
	}
	res.Success = true
	switch a.Type {
	case ActionSetVlan:
		res.InfoMessage = fmt.Sprintf("Vlan %s configured successfully on %s", a.ConnectionParams.VlanID, iface)
	default:
		res.InfoMessage = fmt.Sprintf("Vlan %s removed successfully from %s", a.ConnectionParams.VlanID, iface)
	}
	return res
}

func vlanCommands(a ConnectivityAction, iface string) ([]string, error) {
	vlan := strings.ReplaceAll(a.ConnectionParams.VlanID, " ", "")
	if !vlanRange.MatchString(vlan) {
		return nil, types.CommandExecutionErrorf("invalid vlan id %q", a.ConnectionParams.VlanID)
	}
	if iface == "" {
		return nil, types.CommandExecutionErrorf("action %s has no target interface", a.ActionID)
	}
	mode := strings.ToLower(a.ConnectionParams.Mode)
	if mode != modeAccess && mode != modeTrunk {
		return nil, types.CommandExecutionErrorf("unsupported port mode %q", a.ConnectionParams.Mode)
	}
	if mode == modeAccess && strings.ContainsAny(vlan, ",-") {
		return nil, types.CommandExecutionErrorf("access ports take a single vlan, got %q", vlan)
	}

	switch a.Type {
	case ActionSetVlan:
		cmds := []string{"vlan " + vlan, "state active", "no shutdown", "exit", "interface " + iface, "switchport"}
		switch {
		case a.ConnectionParams.qinq():
			cmds = append(cmds, "switchport mode dot1q-tunnel", "switchport access vlan "+vlan)
		case mode == modeAccess:
			cmds = append(cmds, "switchport mode access", "switchport access vlan "+vlan)
		default:
			cmds = append(cmds, "switchport mode trunk", "switchport trunk allowed vlan add "+vlan)
		}
		return append(cmds, "no shutdown"), nil
	case ActionRemoveVlan:
		if mode == modeAccess {
			return []string{"interface " + iface, "no switchport access vlan " + vlan}, nil
		}
		return []string{"interface " + iface, "switchport trunk allowed vlan remove " + vlan}, nil
	}
	return nil, types.CommandExecutionErrorf("unsupported action type %q", a.Type)
}
