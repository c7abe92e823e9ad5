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

package accelerator

import (
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

type FamilyHandler interface {
	GetSupportedFamilies() []string
	GetFamily(name string) *Family
}

// Family is an accelerator line that devices can be requested from.
type Family struct {
	Name string
	// Resource is the extended resource name pods request devices with.
	Resource corev1.ResourceName
	// ProductLabel is the node label carrying the device product name, if the
	// vendor's feature discovery publishes one.
	ProductLabel string
}

type generalFamilyHandler struct {
	supportedFamilies map[string]Family
}

func NewGeneralFamilyHandler(families []Family) FamilyHandler {
	m := make(map[string]Family)
	for _, f := range families {
		m[f.Name] = f
	}
	return &generalFamilyHandler{supportedFamilies: m}
}

func (h *generalFamilyHandler) GetSupportedFamilies() []string {
	keys := make([]string, 0, len(h.supportedFamilies))
	for k := range h.supportedFamilies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *generalFamilyHandler) GetFamily(name string) *Family {
	if f, ok := h.supportedFamilies[strings.ToLower(name)]; ok {
		return &f
	}
	return nil
}

var defaultHandler = NewGeneralFamilyHandler([]Family{
	{Name: consts.GaudiFamily, Resource: consts.GaudiResource},
	{Name: consts.NvidiaFamily, Resource: consts.NvidiaGPU, ProductLabel: "nvidia.com" + consts.GPUProductKey},
	{Name: consts.AMDFamily, Resource: consts.AMDGPU, ProductLabel: "amd.com" + consts.GPUProductKey},
})

// GetFamilyHandler returns the handler knowing every supported accelerator family.
func GetFamilyHandler() FamilyHandler {
	return defaultHandler
}

// GetFamily returns the accelerator family for a device tag, or nil when the tag
// names no accelerator-bearing family ("unknown", "cpu" or anything unrecognized).
func GetFamily(device string) *Family {
	return defaultHandler.GetFamily(device)
}

// IsAcceleratorBearing reports whether the device tag names a supported accelerator family.
func IsAcceleratorBearing(device string) bool {
	return GetFamily(device) != nil
}

// Capacity returns the number of allocatable devices of this family on the node.
func (f *Family) Capacity(node *corev1.Node) int64 {
	if f == nil || node == nil {
		return 0
	}
	q, ok := node.Status.Allocatable[f.Resource]
	if !ok {
		return 0
	}
	return q.Value()
}

// Product returns the device product name the node advertises, if any.
func (f *Family) Product(node *corev1.Node) string {
	if f == nil || node == nil || f.ProductLabel == "" {
		return ""
	}
	return node.Labels[f.ProductLabel]
}

// DetectFamily infers a node's accelerator family from its allocatable
// resources. Nodes without accelerator capacity report consts.CPUFamily.
func DetectFamily(node *corev1.Node) string {
	for _, name := range defaultHandler.GetSupportedFamilies() {
		f := defaultHandler.GetFamily(name)
		if f.Capacity(node) > 0 {
			return f.Name
		}
	}
	return consts.CPUFamily
}
