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
	"fmt"
	"sort"
	"sync"

	"github.com/sdcio/shell-server/pkg/driver"
)

// Instance is a named driver instance.
type Instance struct {
	Name   string
	Kind   string
	Driver driver.Driver
}

// DriverMap holds the driver instances of the server by name.
type DriverMap struct {
	md      *sync.RWMutex
	drivers map[string]*Instance
}

func NewDriverMap() *DriverMap {
	return &DriverMap{
		md:      &sync.RWMutex{},
		drivers: map[string]*Instance{},
	}
}

func (d *DriverMap) Add(name, kind string, drv driver.Driver) error {
	d.md.Lock()
	defer d.md.Unlock()
	if _, ok := d.drivers[name]; ok {
		return fmt.Errorf("driver %s already exists", name)
	}
	d.drivers[name] = &Instance{Name: name, Kind: kind, Driver: drv}
	return nil
}

// GetOrCreate returns the instance called name, creating it with create when
// it does not exist. An existing instance of another kind is an error.
func (d *DriverMap) GetOrCreate(name, kind string, create func() (driver.Driver, error)) (*Instance, error) {
	d.md.Lock()
	defer d.md.Unlock()
	if inst, ok := d.drivers[name]; ok {
		if kind != "" && inst.Kind != kind {
			return nil, fmt.Errorf("driver %s exists with kind %s", name, inst.Kind)
		}
		return inst, nil
	}
	drv, err := create()
	if err != nil {
		return nil, err
	}
	inst := &Instance{Name: name, Kind: kind, Driver: drv}
	d.drivers[name] = inst
	return inst, nil
}

func (d *DriverMap) Get(name string) (*Instance, error) {
	d.md.RLock()
	defer d.md.RUnlock()
	inst, ok := d.drivers[name]
	if !ok {
		return nil, fmt.Errorf("unknown driver %s", name)
	}
	return inst, nil
}

// Delete cleans up the instance and forgets it.
func (d *DriverMap) Delete(name string) error {
	d.md.Lock()
	defer d.md.Unlock()
	inst, ok := d.drivers[name]
	if !ok {
		return fmt.Errorf("unknown driver %s", name)
	}
	inst.Driver.Cleanup()
	delete(d.drivers, name)
	return nil
}

// All returns the instances sorted by name.
func (d *DriverMap) All() []*Instance {
	d.md.RLock()
	defer d.md.RUnlock()
	result := make([]*Instance, 0, len(d.drivers))
	for _, inst := range d.drivers {
		result = append(result, inst)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (d *DriverMap) CleanupAll() {
	d.md.RLock()
	defer d.md.RUnlock()
	for _, inst := range d.drivers {
		inst.Driver.Cleanup()
	}
}
