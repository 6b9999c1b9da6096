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

package driver

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates the driver instance called name.
type Factory func(name string, s Settings) (Driver, error)

// Registry maps driver kinds to their factory.
type Registry struct {
	m         *sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		m:         &sync.RWMutex{},
		factories: map[string]Factory{},
	}
}

// Register adds a driver kind. Registering a kind twice panics.
func (r *Registry) Register(kind string, f Factory) {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.factories[kind]; ok {
		panic(fmt.Sprintf("driver kind %q registered twice", kind))
	}
	r.factories[kind] = f
}

// New creates a driver instance of the given kind.
func (r *Registry) New(kind, name string, s Settings) (Driver, error) {
	r.m.RLock()
	f, ok := r.factories[kind]
	r.m.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown driver kind %q", kind)
	}
	return f(name, s)
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
