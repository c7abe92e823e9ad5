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

package utils

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/labels"
)

func Contains(s []string, e string) bool {
	return lo.Contains(s, e)
}

// MergeStringMaps returns a new map with override applied on top of base.
func MergeStringMaps(base, override map[string]string) map[string]string {
	return lo.Assign(base, override)
}

// ParseNodeSelector parses "k1=v1,k2=v2" into a map. An empty string yields nil.
func ParseNodeSelector(selector string) (map[string]string, error) {
	if selector == "" {
		return nil, nil
	}
	m, err := labels.ConvertSelectorToLabelsMap(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid node selector %q: %w", selector, err)
	}
	return map[string]string(m), nil
}

// ParseLabel parses a single "key=value" node label.
func ParseLabel(label string) (string, string, error) {
	m, err := ParseNodeSelector(label)
	if err != nil {
		return "", "", err
	}
	if len(m) != 1 {
		return "", "", fmt.Errorf("label %q must be a single key=value pair", label)
	}
	for k, v := range m {
		return k, v, nil
	}
	return "", "", nil
}

// SelectNodes picks count nodes. Nodes whose names are in previous come first;
// otherwise the listing order is kept. It errors when fewer than count nodes
// are available.
func SelectNodes(qualified []corev1.Node, previous []string, count int) ([]corev1.Node, error) {
	if count < 1 {
		return nil, fmt.Errorf("number of nodes must be at least 1, got %d", count)
	}
	if count > len(qualified) {
		return nil, fmt.Errorf("requested %d nodes but only %d are available", count, len(qualified))
	}
	sorted := append([]corev1.Node(nil), qualified...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Contains(previous, sorted[i].Name) && !Contains(previous, sorted[j].Name)
	})
	return sorted[:count], nil
}

// NodeNames returns the names of nodes in order.
func NodeNames(nodes []corev1.Node) []string {
	return lo.Map(nodes, func(n corev1.Node, _ int) string { return n.Name })
}

// NodesWithLabel returns the names of nodes carrying key=value.
func NodesWithLabel(nodes []corev1.Node, key, value string) []string {
	return NodeNames(lo.Filter(nodes, func(n corev1.Node, _ int) bool {
		v, ok := n.Labels[key]
		return ok && v == value
	}))
}
