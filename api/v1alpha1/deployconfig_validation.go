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

package v1alpha1

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/klog/v2"
	"knative.dev/pkg/apis"
)

// reservedServiceNames collide with top-level keys of the values document.
var reservedServiceNames = map[string]bool{
	"global":       true,
	"image":        true,
	"nodeSelector": true,
	"replicaCount": true,
	"resources":    true,
	"extraCmdArgs": true,
	"enabled":      true,
}

func (c *DeployConfig) Validate(ctx context.Context) (errs *apis.FieldError) {
	klog.V(4).InfoS("Validate deploy config", "device", c.DeviceOrDefault(), "services", len(c.Services))
	if c.Node < 0 {
		errs = errs.Also(apis.ErrInvalidValue(c.Node, "node", "node count must be at least 1"))
	}
	if c.CardsPerNode < 0 {
		errs = errs.Also(apis.ErrInvalidValue(c.CardsPerNode, "cards_per_node", "must not be negative"))
	}
	if errmsgs := validation.IsDNS1123Label(c.DeviceOrDefault()); len(errmsgs) > 0 {
		errs = errs.Also(apis.ErrInvalidValue(strings.Join(errmsgs, ", "), "device"))
	}
	for _, name := range c.ServiceNames() {
		svc := c.Services[name]
		errs = errs.Also(c.validateService(name, &svc).ViaFieldKey("services", name))
	}
	return errs
}

func (c *DeployConfig) validateService(name string, svc *ServiceConfig) (errs *apis.FieldError) {
	if reservedServiceNames[name] {
		errs = errs.Also(apis.ErrGeneric(fmt.Sprintf("service name %q is reserved", name), apis.CurrentField))
	} else if errmsgs := validation.IsDNS1123Label(name); len(errmsgs) > 0 {
		errs = errs.Also(apis.ErrGeneric(fmt.Sprintf("invalid service name: %s", strings.Join(errmsgs, ", ")),
			apis.CurrentField))
	}

	if svc.Engine != "" {
		if errmsgs := validation.IsDNS1123Label(svc.Engine); len(errmsgs) > 0 {
			errs = errs.Also(apis.ErrInvalidValue(strings.Join(errmsgs, ", "), "engine"))
		} else if reservedServiceNames[svc.Engine] || svc.Engine == BackendServiceName {
			errs = errs.Also(apis.ErrInvalidValue(svc.Engine, "engine", "engine name collides with a reserved key"))
		}
	}
	// The llm entry is written under its engine key, which must not be another service's entry.
	if engine := svc.EngineOrDefault(); RoleForService(name) == RoleLLM && engine != name {
		if _, declared := c.Services[engine]; declared {
			errs = errs.Also(apis.ErrInvalidValue(engine, "engine",
				fmt.Sprintf("engine name collides with declared service %q", engine)))
		}
	}

	if v, ok := svc.InstanceNum.Get(); ok && v < 1 {
		errs = errs.Also(apis.ErrInvalidValue(v, "instance_num", "must be at least 1"))
	}
	if v, ok := svc.CardsPerInstance.Get(); ok {
		if v < 0 {
			errs = errs.Also(apis.ErrInvalidValue(v, "cards_per_instance", "must not be negative"))
		} else if c.CardsPerNode > 0 && v > c.CardsPerNode {
			errs = errs.Also(apis.ErrInvalidValue(v, "cards_per_instance",
				fmt.Sprintf("exceeds cards_per_node %d", c.CardsPerNode)))
		}
	}
	if svc.CoresPerInstance != "" {
		if _, err := resource.ParseQuantity(string(svc.CoresPerInstance)); err != nil {
			errs = errs.Also(apis.ErrInvalidValue(svc.CoresPerInstance, "cores_per_instance", err.Error()))
		}
	}
	if svc.MemoryCapacity != "" {
		if _, err := resource.ParseQuantity(string(svc.MemoryCapacity)); err != nil {
			errs = errs.Also(apis.ErrInvalidValue(svc.MemoryCapacity, "memory_capacity", err.Error()))
		}
	}
	for _, p := range TuningParameters {
		if v, ok := svc.Tuning(p).Get(); ok && v <= 0 {
			errs = errs.Also(apis.ErrInvalidValue(v, string(p), "must be greater than 0"))
		}
	}
	return errs
}
