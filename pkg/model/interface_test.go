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
	"testing"

	"github.com/stretchr/testify/assert"
	"k8s.io/utils/ptr"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
)

func chatCatalog() *ServiceCatalog {
	return &ServiceCatalog{
		Name:   "chatqna",
		Engine: "tgi",
		Services: []CatalogService{
			{Name: "tei", Scalable: true},
			{Name: "llm", Scalable: true},
			{Name: "data-prep"},
			{Name: "retriever-usvc", Scalable: true},
		},
		SupportsRerank: true,
		NoRerankImage:  "opea/chatqna-without-rerank",
	}
}

func TestDefaultServices(t *testing.T) {
	tests := []struct {
		name        string
		catalog     *ServiceCatalog
		nodes       int
		withRerank  bool
		expectedLLM int
		rerank      *v1alpha1.ServiceConfig
	}{
		{
			name:        "two nodes without rerank",
			catalog:     chatCatalog(),
			nodes:       2,
			expectedLLM: 16,
			rerank:      &v1alpha1.ServiceConfig{Enabled: ptr.To(false)},
		},
		{
			name:        "two nodes with rerank",
			catalog:     chatCatalog(),
			nodes:       2,
			withRerank:  true,
			expectedLLM: 15,
			rerank:      &v1alpha1.ServiceConfig{InstanceNum: v1alpha1.IntValue(1)},
		},
		{
			name: "rerank requested but unsupported",
			catalog: &ServiceCatalog{
				Engine:   "tgi",
				Services: []CatalogService{{Name: "llm", Scalable: true}, {Name: "docsum-ui"}},
			},
			nodes:       1,
			withRerank:  true,
			expectedLLM: 8,
		},
		{
			name:        "zero nodes treated as one",
			catalog:     chatCatalog(),
			nodes:       0,
			expectedLLM: 8,
			rerank:      &v1alpha1.ServiceConfig{Enabled: ptr.To(false)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			services := tt.catalog.DefaultServices(tt.nodes, tt.withRerank)
			nodes := max(tt.nodes, 1)

			llm := services["llm"]
			assert.Equal(t, "tgi", llm.Engine)
			assert.Equal(t, v1alpha1.IntValue(tt.expectedLLM), llm.InstanceNum)
			assert.Equal(t, v1alpha1.IntValue(nodes), services["backend"].InstanceNum)

			for _, svc := range tt.catalog.Services {
				assert.Contains(t, services, svc.Name)
				if svc.Name == "llm" {
					continue
				}
				if svc.Scalable {
					assert.Equal(t, v1alpha1.IntValue(nodes), services[svc.Name].InstanceNum, svc.Name)
				} else {
					assert.Equal(t, v1alpha1.IntValue(1), services[svc.Name].InstanceNum, svc.Name)
				}
			}

			rerank, ok := services["teirerank"]
			if tt.rerank == nil {
				assert.False(t, ok)
			} else {
				assert.Equal(t, *tt.rerank, rerank)
			}
		})
	}
}

func TestServiceNames(t *testing.T) {
	assert.Equal(t, []string{"tei", "llm", "data-prep", "retriever-usvc"}, chatCatalog().ServiceNames())
}

func TestApplyTuned(t *testing.T) {
	tuned := &TunedParam{
		Resources: map[string]ResourceShape{
			"backend":        {CPU: "16", Memory: "8000Mi"},
			"tei":            {CPU: "80", Memory: "20000Mi"},
			"teirerank":      {Cards: 1},
			"llm":            {Cards: 1},
			"retriever-usvc": {CPU: "8", Memory: "8000Mi"},
		},
		ExtraArgs: map[string]map[v1alpha1.TuningParameter]int{
			"llm": {
				v1alpha1.TuningMaxInputLength:        1280,
				v1alpha1.TuningMaxTotalTokens:        2048,
				v1alpha1.TuningMaxBatchTotalTokens:   65536,
				v1alpha1.TuningMaxBatchPrefillTokens: 4096,
			},
		},
	}
	cfg := &v1alpha1.DeployConfig{
		Node: 1,
		Services: map[string]v1alpha1.ServiceConfig{
			"llm":       {Engine: "tgi", MaxTotalTokens: v1alpha1.IntValue(4096)},
			"tei":       {MemoryCapacity: "4Gi"},
			"teirerank": {Enabled: ptr.To(false)},
		},
	}

	out := ApplyTuned(cfg, tuned)

	assert.Len(t, cfg.Services, 3, "input must not be mutated")
	assert.Equal(t, v1alpha1.Quantity(""), cfg.Services["tei"].CoresPerInstance)

	assert.Equal(t, v1alpha1.Quantity("16"), out.Services["backend"].CoresPerInstance)
	assert.Equal(t, v1alpha1.Quantity("8000Mi"), out.Services["backend"].MemoryCapacity)
	assert.Equal(t, v1alpha1.Quantity("80"), out.Services["tei"].CoresPerInstance)
	assert.Equal(t, v1alpha1.Quantity("4Gi"), out.Services["tei"].MemoryCapacity, "explicit value wins")
	assert.Equal(t, v1alpha1.ServiceConfig{Enabled: ptr.To(false)}, out.Services["teirerank"], "disabled rerank is not tuned")
	assert.NotContains(t, out.Services, "retriever-usvc", "undeclared services are not added")

	llm := out.Services["llm"]
	assert.False(t, llm.CardsPerInstance.Set, "accelerator shapes are applied by the synthesizer")
	assert.Equal(t, v1alpha1.IntValue(1280), llm.MaxInputLength)
	assert.Equal(t, v1alpha1.IntValue(4096), llm.MaxTotalTokens, "explicit value wins")
	assert.Equal(t, v1alpha1.IntValue(65536), llm.MaxBatchTotalTokens)
	assert.False(t, llm.MaxBatchSize.Set)
}

func TestApplyTunedNil(t *testing.T) {
	cfg := &v1alpha1.DeployConfig{Services: map[string]v1alpha1.ServiceConfig{"llm": {}}}
	out := ApplyTuned(cfg, nil)
	assert.Equal(t, cfg, out)
	assert.NotSame(t, cfg, out)
	assert.Nil(t, ApplyTuned(nil, &TunedParam{}))
}

func TestTunedParamDeepCopy(t *testing.T) {
	p := &TunedParam{
		Resources: map[string]ResourceShape{"tei": {CPU: "80"}},
		ExtraArgs: map[string]map[v1alpha1.TuningParameter]int{"llm": {v1alpha1.TuningMaxBatchSize: 4}},
	}
	out := p.DeepCopy()
	out.ExtraArgs["llm"][v1alpha1.TuningMaxBatchSize] = 8
	out.Resources["tei"] = ResourceShape{CPU: "1"}

	assert.Equal(t, 4, p.ExtraArgs["llm"][v1alpha1.TuningMaxBatchSize])
	assert.Equal(t, "80", p.Resources["tei"].CPU)
	assert.Nil(t, (*TunedParam)(nil).DeepCopy())
}
