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
	"fmt"

	"gopkg.in/yaml.v2"
)

// Document is the Helm values document of one example deployment. Top-level
// scheduling fields belong to the backend aggregator; every other service has
// its own entry keyed by its output name.
type Document struct {
	Global GlobalValues `yaml:"global"`
	Image  *ImageValues `yaml:"image,omitempty"`

	ServiceValues `yaml:",inline"`

	Services map[string]*ServiceValues `yaml:",inline"`
}

type GlobalValues struct {
	HuggingFaceHubAPIToken string `yaml:"HUGGINGFACEHUB_API_TOKEN"`
	ModelUseHostPath       string `yaml:"modelUseHostPath"`
}

type ImageValues struct {
	Repository string `yaml:"repository"`
}

// ServiceValues are the chart settings of one service.
type ServiceValues struct {
	Enabled      *bool             `yaml:"enabled,omitempty"`
	NodeSelector map[string]string `yaml:"nodeSelector,omitempty"`
	ReplicaCount *int              `yaml:"replicaCount,omitempty"`
	Resources    *ResourceValues   `yaml:"resources,omitempty"`
	ExtraCmdArgs []string          `yaml:"extraCmdArgs,omitempty"`

	LLMModelID       string `yaml:"LLM_MODEL_ID,omitempty"`
	EmbeddingModelID string `yaml:"EMBEDDING_MODEL_ID,omitempty"`
	RerankModelID    string `yaml:"RERANK_MODEL_ID,omitempty"`
}

// ResourceValues always carries limits and requests together.
type ResourceValues struct {
	Limits   map[string]interface{} `yaml:"limits"`
	Requests map[string]interface{} `yaml:"requests"`
}

// Entry returns the values of the named service, creating an empty entry when absent.
func (d *Document) Entry(name string) *ServiceValues {
	if d.Services == nil {
		d.Services = make(map[string]*ServiceValues)
	}
	v, ok := d.Services[name]
	if !ok || v == nil {
		v = &ServiceValues{}
		d.Services[name] = v
	}
	return v
}

// Has reports whether the document carries an entry for the named service.
func (d *Document) Has(name string) bool {
	_, ok := d.Services[name]
	return ok
}

// Marshal serializes the document to YAML.
func (d *Document) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal values document: %w", err)
	}
	return out, nil
}

// ParseDocument decodes a values document previously produced by Marshal.
func ParseDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse values document: %w", err)
	}
	return doc, nil
}
