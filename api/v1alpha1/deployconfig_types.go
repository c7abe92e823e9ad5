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
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"
)

// DeployConfig describes how one example pipeline should be laid out on the cluster.
type DeployConfig struct {
	// Device is the accelerator family the deployment targets, e.g. "gaudi".
	// +optional
	Device string `yaml:"device,omitempty"`
	// Version is informational only.
	// +optional
	Version string `yaml:"version,omitempty"`
	// Node is the number of nodes the example is spread over.
	// +optional
	Node int `yaml:"node,omitempty"`
	// CardsPerNode is the accelerator card count available on each node.
	// +optional
	CardsPerNode int `yaml:"cards_per_node,omitempty"`
	// HuggingFaceHubAPIToken is propagated verbatim into the global values section.
	HuggingFaceHubAPIToken string `yaml:"HUGGINGFACEHUB_API_TOKEN"`
	// ModelUseHostPath is the host path where model artifacts are mounted from.
	ModelUseHostPath string `yaml:"modelUseHostPath"`
	// Services maps service name to its per-service configuration.
	Services map[string]ServiceConfig `yaml:"services"`
}

// ServiceConfig is the per-service configuration record. Every field is optional.
type ServiceConfig struct {
	// Engine identifies the serving engine when the service plays the llm role.
	Engine string `yaml:"engine,omitempty"`
	// InstanceNum is the desired replica count.
	InstanceNum OptionalInt `yaml:"instance_num,omitempty"`
	// CardsPerInstance is the accelerator device count per replica.
	CardsPerInstance OptionalInt `yaml:"cards_per_instance,omitempty"`
	// CoresPerInstance is a CPU quantity, e.g. "4".
	CoresPerInstance Quantity `yaml:"cores_per_instance,omitempty"`
	// MemoryCapacity is a memory quantity, e.g. "8Gi".
	MemoryCapacity Quantity `yaml:"memory_capacity,omitempty"`
	// ModelID identifies the model artifact this service loads.
	ModelID string `yaml:"model_id,omitempty"`
	// Enabled is an explicit opt-out for optional services. Nil means enabled.
	Enabled *bool `yaml:"enabled,omitempty"`

	MaxBatchSize          OptionalInt `yaml:"max_batch_size,omitempty"`
	MaxInputLength        OptionalInt `yaml:"max_input_length,omitempty"`
	MaxTotalTokens        OptionalInt `yaml:"max_total_tokens,omitempty"`
	MaxBatchTotalTokens   OptionalInt `yaml:"max_batch_total_tokens,omitempty"`
	MaxBatchPrefillTokens OptionalInt `yaml:"max_batch_prefill_tokens,omitempty"`
}

// TuningParameter names one of the per-service tuning knobs.
type TuningParameter string

const (
	TuningMaxBatchSize          TuningParameter = "max_batch_size"
	TuningMaxInputLength        TuningParameter = "max_input_length"
	TuningMaxTotalTokens        TuningParameter = "max_total_tokens"
	TuningMaxBatchTotalTokens   TuningParameter = "max_batch_total_tokens"
	TuningMaxBatchPrefillTokens TuningParameter = "max_batch_prefill_tokens"
)

// TuningParameters is the fixed order in which tuning knobs become command-line flags.
var TuningParameters = []TuningParameter{
	TuningMaxBatchSize,
	TuningMaxInputLength,
	TuningMaxTotalTokens,
	TuningMaxBatchTotalTokens,
	TuningMaxBatchPrefillTokens,
}

// Flag returns the command-line flag for the knob, e.g. "--max-batch-size".
func (p TuningParameter) Flag() string {
	return "--" + strings.ReplaceAll(string(p), "_", "-")
}

// Tuning returns the value of the named knob.
func (s *ServiceConfig) Tuning(p TuningParameter) OptionalInt {
	switch p {
	case TuningMaxBatchSize:
		return s.MaxBatchSize
	case TuningMaxInputLength:
		return s.MaxInputLength
	case TuningMaxTotalTokens:
		return s.MaxTotalTokens
	case TuningMaxBatchTotalTokens:
		return s.MaxBatchTotalTokens
	case TuningMaxBatchPrefillTokens:
		return s.MaxBatchPrefillTokens
	default:
		return OptionalInt{}
	}
}

// SetTuning sets the value of the named knob.
func (s *ServiceConfig) SetTuning(p TuningParameter, v OptionalInt) {
	switch p {
	case TuningMaxBatchSize:
		s.MaxBatchSize = v
	case TuningMaxInputLength:
		s.MaxInputLength = v
	case TuningMaxTotalTokens:
		s.MaxTotalTokens = v
	case TuningMaxBatchTotalTokens:
		s.MaxBatchTotalTokens = v
	case TuningMaxBatchPrefillTokens:
		s.MaxBatchPrefillTokens = v
	}
}

// EngineOrDefault returns the serving engine, falling back to DefaultEngine.
func (s *ServiceConfig) EngineOrDefault() string {
	if s.Engine == "" {
		return DefaultEngine
	}
	return s.Engine
}

// IsDisabled reports whether the service was explicitly opted out.
func (s *ServiceConfig) IsDisabled() bool {
	return s.Enabled != nil && !*s.Enabled
}

// NodeCount returns the node count, defaulting to 1.
func (c *DeployConfig) NodeCount() int {
	if c.Node <= 0 {
		return 1
	}
	return c.Node
}

// DeviceOrDefault returns the accelerator family tag, defaulting to DefaultDevice.
func (c *DeployConfig) DeviceOrDefault() string {
	if c.Device == "" {
		return DefaultDevice
	}
	return c.Device
}

// RerankEnabled reports whether the rerank service is declared and not opted out.
func (c *DeployConfig) RerankEnabled() bool {
	svc, ok := c.Services[RerankServiceName]
	if !ok {
		return false
	}
	return !svc.IsDisabled()
}

// DeepCopy returns an independent copy of the configuration.
func (c *DeployConfig) DeepCopy() *DeployConfig {
	if c == nil {
		return nil
	}
	out := new(DeployConfig)
	*out = *c
	if c.Services != nil {
		out.Services = make(map[string]ServiceConfig, len(c.Services))
		for name, svc := range c.Services {
			out.Services[name] = *svc.DeepCopy()
		}
	}
	return out
}

// DeepCopy returns an independent copy of the service configuration.
func (s *ServiceConfig) DeepCopy() *ServiceConfig {
	if s == nil {
		return nil
	}
	out := new(ServiceConfig)
	*out = *s
	if s.Enabled != nil {
		enabled := *s.Enabled
		out.Enabled = &enabled
	}
	return out
}

// ServiceNames returns the declared service names in sorted order.
func (c *DeployConfig) ServiceNames() []string {
	names := lo.Keys(c.Services)
	sort.Strings(names)
	return names
}

// ParseDeployConfig decodes a deployment description from YAML.
func ParseDeployConfig(data []byte) (*DeployConfig, error) {
	cfg := &DeployConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse deploy config: %w", err)
	}
	if cfg.Services == nil {
		cfg.Services = map[string]ServiceConfig{}
	}
	return cfg, nil
}

// LoadDeployConfig reads and decodes a deployment description file.
func LoadDeployConfig(path string) (*DeployConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deploy config %s: %w", path, err)
	}
	return ParseDeployConfig(data)
}

// OptionalInt is an integer that may be unset. Null and empty string decode as unset.
type OptionalInt struct {
	Value int
	Set   bool
}

// IntValue returns a set OptionalInt.
func IntValue(v int) OptionalInt {
	return OptionalInt{Value: v, Set: true}
}

// Get returns the value and whether it is set.
func (o OptionalInt) Get() (int, bool) {
	return o.Value, o.Set
}

// Positive returns the value when it is set and greater than zero.
func (o OptionalInt) Positive() (int, bool) {
	if !o.Set || o.Value <= 0 {
		return 0, false
	}
	return o.Value, true
}

// IsZero lets yaml omitempty drop unset values.
func (o OptionalInt) IsZero() bool {
	return !o.Set
}

func (o *OptionalInt) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*o = OptionalInt{}
	case int:
		*o = IntValue(v)
	case int64:
		*o = IntValue(int(v))
	case uint64:
		*o = IntValue(int(v))
	case float64:
		if v != float64(int(v)) {
			return fmt.Errorf("expected an integer, got %v", v)
		}
		*o = IntValue(int(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			*o = OptionalInt{}
			return nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", v)
		}
		*o = IntValue(i)
	default:
		return fmt.Errorf("expected an integer, got %T", raw)
	}
	return nil
}

func (o OptionalInt) MarshalYAML() (interface{}, error) {
	if !o.Set {
		return nil, nil
	}
	return o.Value, nil
}

// Quantity is a resource quantity in cluster-native unit syntax, kept verbatim.
// Numeric YAML scalars are accepted and stringified.
type Quantity string

func (q *Quantity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*q = ""
	case string:
		*q = Quantity(strings.TrimSpace(v))
	case int, int64, uint64:
		*q = Quantity(fmt.Sprintf("%d", v))
	case float64:
		*q = Quantity(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("expected a resource quantity, got %T", raw)
	}
	return nil
}
