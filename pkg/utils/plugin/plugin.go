// Copyright (c) KAITO authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kaito-project/examples-deployer/pkg/model"
)

// Registration binds an example type such as "chatqna" to the catalog that
// values synthesis reads for it.
type Registration struct {
	Name     string
	Instance model.Example
}

// Registry maps example types to their catalogs. Example packages fill it from
// init, so a binary supports exactly the examples it imports.
type Registry struct {
	sync.RWMutex
	examples map[string]*Registration
}

// Examples is populated by blank-importing presets/examples/all.
var Examples Registry

// Register adds an example. A later registration under the same type replaces
// the earlier one.
func (reg *Registry) Register(r *Registration) {
	reg.Lock()
	defer reg.Unlock()
	if r.Name == "" {
		panic("example type is not specified")
	}
	if reg.examples == nil {
		reg.examples = make(map[string]*Registration)
	}
	reg.examples[r.Name] = r
}

// MustGet is for callers that already checked Has, such as tests over the
// built-in example types.
func (reg *Registry) MustGet(name string) model.Example {
	e, ok := reg.Get(name)
	if !ok {
		panic(fmt.Sprintf("example %q is not registered", name))
	}
	return e
}

func (reg *Registry) Get(name string) (model.Example, bool) {
	reg.RLock()
	defer reg.RUnlock()
	r, ok := reg.examples[name]
	if !ok {
		return nil, false
	}
	return r.Instance, true
}

// ListExampleNames returns the registered example types in sorted order.
func (reg *Registry) ListExampleNames() []string {
	reg.RLock()
	defer reg.RUnlock()
	names := make([]string, 0, len(reg.examples))
	for k := range reg.examples {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (reg *Registry) Has(name string) bool {
	reg.RLock()
	defer reg.RUnlock()
	_, ok := reg.examples[name]
	return ok
}

// IsValidExample reports whether values can be synthesized for the example type.
func IsValidExample(name string) bool {
	return Examples.Has(name)
}
