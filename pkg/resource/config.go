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

package resource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sdcio/shell-server/pkg/command"
)

const (
	defaultSessionsConcurrencyLimit = 1
	defaultCLIConnectionType        = "auto"
	defaultSNMPVersion              = "v2c"
	defaultBackupType               = "File System"
)

// attribute names as they appear on the resource, without the shell prefix
const (
	AttrUser                     = "User"
	AttrPassword                 = "Password"
	AttrEnablePassword           = "Enable Password"
	AttrCLIConnectionType        = "CLI Connection Type"
	AttrCLITCPPort               = "CLI TCP Port"
	AttrSessionsConcurrencyLimit = "Sessions Concurrency Limit"
	AttrVRFManagementName        = "VRF Management Name"
	AttrBackupLocation           = "Backup Location"
	AttrBackupType               = "Backup Type"
	AttrBackupUser               = "Backup User"
	AttrBackupPassword           = "Backup Password"
	AttrTFTPServer               = "tftp_server"
	AttrSNMPReadCommunity        = "SNMP Read Community"
	AttrSNMPWriteCommunity       = "SNMP Write Community"
	AttrSNMPVersion              = "SNMP Version"
	AttrSNMPV3User               = "SNMP V3 User"
	AttrSNMPV3Password           = "SNMP V3 Password"
	AttrSNMPV3PrivateKey         = "SNMP V3 Private Key"
	AttrSNMPV3AuthProtocol       = "SNMP V3 Authentication Protocol"
	AttrSNMPV3PrivProtocol       = "SNMP V3 Privacy Protocol"
	AttrEnableSNMP               = "Enable SNMP"
	AttrDisableSNMP              = "Disable SNMP"
	AttrConsoleServerIP          = "Console Server IP Address"
	AttrConsoleUser              = "Console User"
	AttrConsolePassword          = "Console Password"
	AttrConsolePort              = "Console Port"
)

// Config is the read-only view of the resource attributes a driver works
// with. It is rebuilt for every command and never persisted.
type Config struct {
	ShellName   string
	SupportedOS []string

	Name     string
	FullName string
	Address  string
	Model    string
	Family   string

	User              string
	Password          string
	EnablePassword    string
	CLIConnectionType string
	CLITCPPort        int

	SessionsConcurrencyLimit int
	VRFManagementName        string

	BackupLocation string
	BackupType     string
	BackupUser     string
	BackupPassword string
	TFTPServer     string

	SNMPReadCommunity  string
	SNMPWriteCommunity string
	SNMPVersion        string
	SNMPV3User         string
	SNMPV3Password     string
	SNMPV3PrivateKey   string
	SNMPV3AuthProtocol string
	SNMPV3PrivProtocol string
	EnableSNMP         bool
	DisableSNMP        bool

	ConsoleServerIP string
	ConsoleUser     string
	ConsolePassword string
	ConsolePort     int

	res    command.Resource
	prefix string
}

// New builds the resource configuration of a networking shell from the
// command context. Attributes are looked up as "<shellName>.<attribute>"
// first, then by their bare name.
func New(shellName string, supportedOS []string, cc command.Context) (Config, error) {
	r := cc.Resource
	c := Config{
		ShellName:   shellName,
		SupportedOS: supportedOS,
		Name:        r.Name,
		FullName:    r.FullName,
		Address:     r.Address,
		Model:       r.Model,
		Family:      r.Family,
		res:         r,
		prefix:      shellName,
	}
	if c.prefix == "" {
		c.prefix = r.Model
	}

	var err error
	c.User = c.Attribute(AttrUser)
	c.Password = c.Attribute(AttrPassword)
	c.EnablePassword = c.Attribute(AttrEnablePassword)
	c.CLIConnectionType = c.attributeDefault(AttrCLIConnectionType, defaultCLIConnectionType)
	if c.CLITCPPort, err = c.intAttribute(AttrCLITCPPort, 0); err != nil {
		return Config{}, err
	}
	if c.SessionsConcurrencyLimit, err = c.intAttribute(AttrSessionsConcurrencyLimit, defaultSessionsConcurrencyLimit); err != nil {
		return Config{}, err
	}
	if c.SessionsConcurrencyLimit <= 0 {
		c.SessionsConcurrencyLimit = defaultSessionsConcurrencyLimit
	}
	c.VRFManagementName = c.Attribute(AttrVRFManagementName)

	c.BackupLocation = c.Attribute(AttrBackupLocation)
	c.BackupType = c.attributeDefault(AttrBackupType, defaultBackupType)
	c.BackupUser = c.Attribute(AttrBackupUser)
	c.BackupPassword = c.Attribute(AttrBackupPassword)
	c.TFTPServer = c.Attribute(AttrTFTPServer)

	c.SNMPReadCommunity = c.Attribute(AttrSNMPReadCommunity)
	c.SNMPWriteCommunity = c.Attribute(AttrSNMPWriteCommunity)
	c.SNMPVersion = c.attributeDefault(AttrSNMPVersion, defaultSNMPVersion)
	c.SNMPV3User = c.Attribute(AttrSNMPV3User)
	c.SNMPV3Password = c.Attribute(AttrSNMPV3Password)
	c.SNMPV3PrivateKey = c.Attribute(AttrSNMPV3PrivateKey)
	c.SNMPV3AuthProtocol = c.Attribute(AttrSNMPV3AuthProtocol)
	c.SNMPV3PrivProtocol = c.Attribute(AttrSNMPV3PrivProtocol)
	c.EnableSNMP = c.boolAttribute(AttrEnableSNMP)
	c.DisableSNMP = c.boolAttribute(AttrDisableSNMP)

	c.ConsoleServerIP = c.Attribute(AttrConsoleServerIP)
	c.ConsoleUser = c.Attribute(AttrConsoleUser)
	c.ConsolePassword = c.Attribute(AttrConsolePassword)
	if c.ConsolePort, err = c.intAttribute(AttrConsolePort, 0); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Attribute returns the value of a resource attribute, honoring the shell
// prefix. Missing attributes yield an empty string.
func (c Config) Attribute(name string) string {
	v, _ := c.res.ModelAttribute(c.prefix, name)
	return v
}

// AttributeName returns the fully qualified attribute name as the host stores
// it.
func (c Config) AttributeName(name string) string {
	if c.prefix == "" {
		return name
	}
	return c.prefix + "." + name
}

func (c Config) attributeDefault(name, def string) string {
	if v := strings.TrimSpace(c.Attribute(name)); v != "" {
		return v
	}
	return def
}

func (c Config) intAttribute(name string, def int) (int, error) {
	v := strings.TrimSpace(c.Attribute(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("resource %q: attribute %q: %w", c.Name, c.AttributeName(name), err)
	}
	return i, nil
}

func (c Config) boolAttribute(name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.Attribute(name))) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// BackupFolder returns the folder configurations are saved to when the
// caller did not provide one. A location without a scheme is prefixed with the
// backup type, and the backup user is embedded with password, which must be
// the decrypted Backup Password.
func (c Config) BackupFolder(password string) string {
	loc := strings.TrimRight(strings.TrimSpace(c.BackupLocation), "/")
	if loc == "" {
		loc = strings.TrimRight(strings.TrimSpace(c.TFTPServer), "/")
		if loc == "" {
			return ""
		}
		if !strings.Contains(loc, "://") {
			loc = "tftp://" + loc
		}
		return loc
	}
	if strings.Contains(loc, "://") {
		return loc
	}
	scheme := strings.ToLower(strings.ReplaceAll(c.BackupType, " ", ""))
	if scheme == "filesystem" || scheme == "" {
		return loc
	}
	if c.BackupUser != "" {
		cred := c.BackupUser
		if password != "" {
			cred += ":" + password
		}
		return fmt.Sprintf("%s://%s@%s", scheme, cred, loc)
	}
	return fmt.Sprintf("%s://%s", scheme, loc)
}
