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

package featuregates

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

// FeatureGates holds the gate names and their current values.
var FeatureGates = map[string]bool{
	consts.FeatureFlagAPIClusterControl: false,
	consts.FeatureFlagRollbackOnFailure: true,
	consts.FeatureFlagFluxExport:        false,
}

// ParseAndValidateFeatureGates parses a "name=bool,..." list into FeatureGates.
// A list naming any unknown gate is rejected as a whole.
func ParseAndValidateFeatureGates(featureGates string) error {
	requested := map[string]bool{}
	if err := cliflag.NewMapStringBool(&requested).Set(featureGates); err != nil {
		return err
	}

	unknown := lo.Filter(lo.Keys(requested), func(name string, _ int) bool {
		_, ok := FeatureGates[name]
		return !ok
	})
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("invalid feature gate(s) %s, known gates are %s",
			strings.Join(unknown, ", "), strings.Join(Known(), ", "))
	}

	for name, enabled := range requested {
		FeatureGates[name] = enabled
		klog.V(2).InfoS("Feature gate set", "gate", name, "enabled", enabled)
	}
	return nil
}

// Known returns the sorted gate names.
func Known() []string {
	names := lo.Keys(FeatureGates)
	sort.Strings(names)
	return names
}

func Enabled(name string) bool {
	return FeatureGates[name]
}
