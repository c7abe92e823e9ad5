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

package values

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
)

// locator resolves where a service's settings are written in the document.
type locator func(doc *Document, name string, svc *v1alpha1.ServiceConfig) *ServiceValues

var locators = map[v1alpha1.Role]locator{
	v1alpha1.RoleBackend: func(doc *Document, _ string, _ *v1alpha1.ServiceConfig) *ServiceValues {
		return &doc.ServiceValues
	},
	v1alpha1.RoleLLM: func(doc *Document, _ string, svc *v1alpha1.ServiceConfig) *ServiceValues {
		return doc.Entry(svc.EngineOrDefault())
	},
}

func byName(doc *Document, name string, _ *v1alpha1.ServiceConfig) *ServiceValues {
	return doc.Entry(name)
}

// locate returns the output location of the service, routed by its role.
func locate(doc *Document, name string, svc *v1alpha1.ServiceConfig) *ServiceValues {
	if l, ok := locators[v1alpha1.RoleForService(name)]; ok {
		return l(doc, name, svc)
	}
	return byName(doc, name, svc)
}

// OutputKey returns the document key a service is written under. The backend
// is written at the top level and reports an empty key.
func OutputKey(name string, svc *v1alpha1.ServiceConfig) string {
	switch v1alpha1.RoleForService(name) {
	case v1alpha1.RoleBackend:
		return ""
	case v1alpha1.RoleLLM:
		return svc.EngineOrDefault()
	default:
		return name
	}
}

// modelIDSetters is the closed set of roles that receive a model identifier.
var modelIDSetters = map[v1alpha1.Role]func(v *ServiceValues, id string){
	v1alpha1.RoleLLM:       func(v *ServiceValues, id string) { v.LLMModelID = id },
	v1alpha1.RoleEmbedding: func(v *ServiceValues, id string) { v.EmbeddingModelID = id },
	v1alpha1.RoleRerank:    func(v *ServiceValues, id string) { v.RerankModelID = id },
}

// MergePolicy decides which of two values of an optional field survives.
type MergePolicy int

const (
	// FirstWriteWins keeps a value that is already set.
	FirstWriteWins MergePolicy = iota
	// LastWriteWins always takes the proposed value.
	LastWriteWins
)

// Option is a value that may be unset.
type Option[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Set: true}
}

// OptionOf wraps v with an explicit presence flag.
func OptionOf[T any](v T, set bool) Option[T] {
	return Option[T]{Value: v, Set: set}
}

// Merge combines the current and proposed values according to the policy.
func Merge[T any](policy MergePolicy, current, proposed Option[T]) Option[T] {
	switch {
	case !proposed.Set:
		return current
	case policy == FirstWriteWins && current.Set:
		return current
	default:
		return proposed
	}
}
