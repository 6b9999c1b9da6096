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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/sdcio/shell-server/pkg/logging"
	"github.com/sdcio/shell-server/pkg/types"
)

const (
	ModeShallow = "shallow"
	ModeDeep    = "deep"

	createdDateLayout = "2006-01-02T15:04:05.000000"
)

// artifact types a saved configuration can be restored from
var artifactTypes = map[string]struct{}{
	"tftp": {}, "ftp": {}, "sftp": {}, "scp": {}, "http": {}, "https": {},
	"bootflash": {}, "volatile": {}, "logflash": {}, "slot0": {}, "usb1": {}, "usb2": {},
}

// CreatedDate is a UTC timestamp with microsecond precision and no zone.
type CreatedDate struct {
	time.Time
}

func (d CreatedDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format(createdDateLayout))
}

func (d *CreatedDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range []string{createdDateLayout, "2006-01-02T15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid created_date %q", s)
}

type SavedArtifact struct {
	ArtifactType string `json:"artifact_type"`
	Identifier   string `json:"identifier"`
}

type RestoreRules struct {
	RequiresSameResource bool `json:"requires_same_resource"`
}

// SavedArtifactInfo describes a saved configuration to the orchestration.
type SavedArtifactInfo struct {
	ResourceName  string        `json:"resource_name"`
	CreatedDate   CreatedDate   `json:"created_date"`
	RestoreRules  RestoreRules  `json:"restore_rules"`
	SavedArtifact SavedArtifact `json:"saved_artifact"`
}

type saveResult struct {
	SavedArtifactsInfo SavedArtifactInfo `json:"saved_artifacts_info"`
}

// OrchestrationParams are the custom params of orchestration save and
// restore, sent as {"custom_params": {...}}.
type OrchestrationParams struct {
	FolderPath        string `json:"folder_path,omitempty"`
	ConfigurationType string `json:"configuration_type,omitempty"`
	RestoreMethod     string `json:"restore_method,omitempty"`
	VRFManagementName string `json:"vrf_management_name,omitempty"`
}

// ParseOrchestrationParams accepts both the wrapped and the bare form. An
// empty string yields zero params.
func ParseOrchestrationParams(raw string) (OrchestrationParams, error) {
	var p OrchestrationParams
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p, nil
	}
	var wrapped struct {
		CustomParams *OrchestrationParams `json:"custom_params"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return p, types.CommandExecutionErrorf("invalid custom params: %v", err)
	}
	if wrapped.CustomParams != nil {
		return *wrapped.CustomParams, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, types.CommandExecutionErrorf("invalid custom params: %v", err)
	}
	return p, nil
}

// Mode normalizes an orchestration mode, defaulting to shallow.
func Mode(s string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(s)); m {
	case "", ModeShallow:
		return ModeShallow, nil
	case ModeDeep:
		return "", types.CommandExecutionErrorf("orchestration mode %q is not supported", ModeDeep)
	}
	return "", types.CommandExecutionErrorf("unknown orchestration mode %q", s)
}

// OrchestrationSave saves the configuration and describes the artifact as
// saved artifacts info JSON.
func (r *Runner) OrchestrationSave(ctx context.Context, mode, customParams string) (string, error) {
	if _, err := Mode(mode); err != nil {
		return "", err
	}
	p, err := ParseOrchestrationParams(customParams)
	if err != nil {
		return "", err
	}
	cfgType, err := ConfigurationType(p.ConfigurationType)
	if err != nil {
		return "", err
	}
	folder := strings.TrimRight(strings.TrimSpace(p.FolderPath), "/")
	if folder == "" {
		folder = r.Config.BackupFolder(r.Credentials.BackupPassword)
	}
	created := r.now()
	fileName, err := r.Save(ctx, SaveRequest{FolderPath: folder, ConfigurationType: cfgType, VRF: p.VRFManagementName})
	if err != nil {
		return "", err
	}

	full := joinPath(folder, fileName)
	artifactType, identifier, ok := strings.Cut(full, ":")
	if !ok {
		return "", types.CommandExecutionErrorf("cannot derive artifact type from %q", full)
	}
	info := SavedArtifactInfo{
		ResourceName: r.Config.Name,
		CreatedDate:  CreatedDate{created.UTC()},
		RestoreRules: RestoreRules{RequiresSameResource: true},
		SavedArtifact: SavedArtifact{
			ArtifactType: strings.ToLower(artifactType),
			Identifier:   identifier,
		},
	}
	b, err := json.Marshal(saveResult{SavedArtifactsInfo: info})
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Infof("orchestration save stored %s", full)
	return string(b), nil
}

// ParseSavedArtifactInfo decodes saved artifacts info, wrapped in
// {"saved_artifacts_info": ...} or bare.
func ParseSavedArtifactInfo(raw string) (SavedArtifactInfo, error) {
	var info SavedArtifactInfo
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return info, types.CommandExecutionErrorf("saved artifact info is empty")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return info, types.CommandExecutionErrorf("invalid saved artifact info: %v", err)
	}
	body := []byte(raw)
	if wrapped, ok := probe["saved_artifacts_info"]; ok {
		body = wrapped
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&info); err != nil {
		return info, types.CommandExecutionErrorf("invalid saved artifact info: %v", err)
	}
	if info.SavedArtifact.ArtifactType == "" || info.SavedArtifact.Identifier == "" {
		return info, types.CommandExecutionErrorf("saved artifact info has no artifact type or identifier")
	}
	return info, nil
}

// Validate checks that the artifact can be restored on resourceName.
func (info SavedArtifactInfo) Validate(resourceName string) error {
	if info.RestoreRules.RequiresSameResource && !strings.EqualFold(info.ResourceName, resourceName) {
		return types.CommandExecutionErrorf("saved configuration of resource %q cannot be restored on resource %q", info.ResourceName, resourceName)
	}
	if _, ok := artifactTypes[strings.ToLower(info.SavedArtifact.ArtifactType)]; !ok {
		return types.CommandExecutionErrorf("unsupported artifact type %q", info.SavedArtifact.ArtifactType)
	}
	return nil
}

// Path returns the location the artifact is restored from.
func (info SavedArtifactInfo) Path() string {
	return strings.ToLower(info.SavedArtifact.ArtifactType) + ":" + info.SavedArtifact.Identifier
}

// OrchestrationRestore restores an artifact produced by OrchestrationSave.
// The configuration type defaults to the one encoded in the file name.
func (r *Runner) OrchestrationRestore(ctx context.Context, savedArtifactInfo, customParams string) error {
	info, err := ParseSavedArtifactInfo(savedArtifactInfo)
	if err != nil {
		return err
	}
	if err := info.Validate(r.Config.Name); err != nil {
		return err
	}
	p, err := ParseOrchestrationParams(customParams)
	if err != nil {
		return err
	}
	cfgType := p.ConfigurationType
	if cfgType == "" {
		cfgType = ConfigurationRunning
		if strings.Contains(path.Base(info.SavedArtifact.Identifier), "-"+ConfigurationStartup+"-") {
			cfgType = ConfigurationStartup
		}
	}
	return r.Restore(ctx, RestoreRequest{
		Path:              info.Path(),
		ConfigurationType: cfgType,
		RestoreMethod:     p.RestoreMethod,
		VRF:               p.VRFManagementName,
	})
}
