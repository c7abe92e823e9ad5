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

package model

import (
	"maps"

	"github.com/samber/lo"
	"k8s.io/utils/ptr"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
)

type Example interface {
	GetServiceCatalog() *ServiceCatalog
	SupportsRerank() bool
	GetTunedParameters() *TunedParam // nil when the example has no tuned preset.
}

// CatalogService is one deployable unit of an example pipeline.
type CatalogService struct {
	Name     string
	Scalable bool // Scalable services get one replica per node by default.
}

// ServiceCatalog describes the services an example pipeline is made of.
type ServiceCatalog struct {
	Name     string
	Engine   string // Serving engine of the llm service.
	Services []CatalogService

	SupportsRerank bool

	// NoRerankImage replaces the backend image repository when rerank is disabled.
	// Empty means the example keeps its image.
	NoRerankImage string
}

func (c *ServiceCatalog) DeepCopy() *ServiceCatalog {
	if c == nil {
		return nil
	}
	out := new(ServiceCatalog)
	*out = *c
	out.Services = append([]CatalogService(nil), c.Services...)
	return out
}

// ServiceNames returns the catalog's service names in declaration order.
func (c *ServiceCatalog) ServiceNames() []string {
	return lo.Map(c.Services, func(s CatalogService, _ int) string { return s.Name })
}

// DefaultServices returns default instance counts for every catalog service on
// the given number of nodes. The llm engine gets eight replicas per node, less
// one when rerank occupies a card.
func (c *ServiceCatalog) DefaultServices(nodes int, withRerank bool) map[string]v1alpha1.ServiceConfig {
	if nodes < 1 {
		nodes = 1
	}
	rerank := c.SupportsRerank && withRerank

	services := make(map[string]v1alpha1.ServiceConfig, len(c.Services)+2)
	for _, svc := range c.Services {
		cfg := v1alpha1.ServiceConfig{}
		switch {
		case v1alpha1.RoleForService(svc.Name) == v1alpha1.RoleLLM:
			cfg.Engine = c.Engine
			if rerank {
				cfg.InstanceNum = v1alpha1.IntValue(8*nodes - 1)
			} else {
				cfg.InstanceNum = v1alpha1.IntValue(8 * nodes)
			}
		case svc.Scalable:
			cfg.InstanceNum = v1alpha1.IntValue(nodes)
		default:
			cfg.InstanceNum = v1alpha1.IntValue(1)
		}
		services[svc.Name] = cfg
	}
	if rerank {
		services[v1alpha1.RerankServiceName] = v1alpha1.ServiceConfig{InstanceNum: v1alpha1.IntValue(1)}
	} else if c.SupportsRerank {
		services[v1alpha1.RerankServiceName] = v1alpha1.ServiceConfig{Enabled: ptr.To(false)}
	}
	services[v1alpha1.BackendServiceName] = v1alpha1.ServiceConfig{InstanceNum: v1alpha1.IntValue(nodes)}
	return services
}

// ResourceShape is a tuned resource request for one service.
type ResourceShape struct {
	CPU    string `yaml:"cpu,omitempty"`
	Memory string `yaml:"memory,omitempty"`
	Cards  int    `yaml:"cards,omitempty"`
}

// TunedParam holds the benchmark-tuned resource shapes and engine flags of an example.
type TunedParam struct {
	Resources map[string]ResourceShape
	// ExtraArgs holds tuning knob values keyed by service name.
	ExtraArgs map[string]map[v1alpha1.TuningParameter]int
}

func (p *TunedParam) DeepCopy() *TunedParam {
	if p == nil {
		return nil
	}
	out := &TunedParam{
		Resources: maps.Clone(p.Resources),
		ExtraArgs: make(map[string]map[v1alpha1.TuningParameter]int, len(p.ExtraArgs)),
	}
	for name, args := range p.ExtraArgs {
		out.ExtraArgs[name] = maps.Clone(args)
	}
	return out
}

// ApplyTuned returns a copy of cfg with the tuned preset folded in. Values the
// caller set explicitly are kept. Only declared services are tuned, except the
// backend, and the rerank service only while it is enabled.
func ApplyTuned(cfg *v1alpha1.DeployConfig, tuned *TunedParam) *v1alpha1.DeployConfig {
	out := cfg.DeepCopy()
	if out == nil || tuned == nil {
		return out
	}
	if out.Services == nil {
		out.Services = map[string]v1alpha1.ServiceConfig{}
	}

	tunable := func(name string) bool {
		svc, ok := out.Services[name]
		switch {
		case name == v1alpha1.BackendServiceName:
			return true
		case !ok:
			return false
		case name == v1alpha1.RerankServiceName:
			return !svc.IsDisabled()
		default:
			return true
		}
	}

	for name, shape := range tuned.Resources {
		if !tunable(name) {
			continue
		}
		svc := out.Services[name]
		if svc.CoresPerInstance == "" && shape.CPU != "" {
			svc.CoresPerInstance = v1alpha1.Quantity(shape.CPU)
		}
		if svc.MemoryCapacity == "" && shape.Memory != "" {
			svc.MemoryCapacity = v1alpha1.Quantity(shape.Memory)
		}
		out.Services[name] = svc
	}

	for name, args := range tuned.ExtraArgs {
		if !tunable(name) {
			continue
		}
		svc := out.Services[name]
		for _, p := range v1alpha1.TuningParameters {
			v, ok := args[p]
			if !ok || svc.Tuning(p).Set {
				continue
			}
			svc.SetTuning(p, v1alpha1.IntValue(v))
		}
		out.Services[name] = svc
	}
	return out
}
