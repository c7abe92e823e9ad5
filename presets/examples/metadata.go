// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package examples

import (
	_ "embed"
	"fmt"

	"github.com/distribution/reference"
	"gopkg.in/yaml.v2"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
)

var (
	//go:embed supported_examples.yaml
	supportedExamplesYAML []byte

	// SupportedExamples is a global map that holds the source of truth
	// for all supported example pipelines and their service catalogs.
	SupportedExamples map[string]*Metadata
)

// Catalog is a struct that holds a list of supported examples parsed
// from presets/examples/supported_examples.yaml. The YAML file is
// considered the source of truth for the example service catalogs, and any
// information in the YAML file should not be hardcoded in the codebase.
type Catalog struct {
	Examples []Metadata `yaml:"examples,omitempty"`
}

type Metadata struct {
	Name           string            `yaml:"name"`
	Engine         string            `yaml:"engine"`
	SupportsRerank bool              `yaml:"supportsRerank,omitempty"`
	NoRerankImage  string            `yaml:"noRerankImage,omitempty"`
	Services       []ServiceMetadata `yaml:"services"`
	Tuned          *TunedMetadata    `yaml:"tuned,omitempty"`
}

type ServiceMetadata struct {
	Name     string `yaml:"name"`
	Scalable bool   `yaml:"scalable,omitempty"`
}

type TunedMetadata struct {
	Resources map[string]model.ResourceShape              `yaml:"resources,omitempty"`
	ExtraArgs map[string]map[v1alpha1.TuningParameter]int `yaml:"extraArgs,omitempty"`
}

// init unmarshals the YAML data in supportedExamplesYAML into the SupportedExamples map.
func init() {
	catalog := Catalog{}
	utilruntime.Must(yaml.Unmarshal(supportedExamplesYAML, &catalog))

	SupportedExamples = make(map[string]*Metadata)
	for i := range catalog.Examples {
		m := &catalog.Examples[i]
		utilruntime.Must(m.validate())
		SupportedExamples[m.Name] = m
	}
}

func (m *Metadata) validate() error {
	if _, err := v1alpha1.ParseExampleType(m.Name); err != nil {
		return err
	}
	if m.NoRerankImage != "" {
		named, err := reference.ParseNormalizedNamed(m.NoRerankImage)
		if err != nil {
			return fmt.Errorf("example %s: invalid image repository %q: %w", m.Name, m.NoRerankImage, err)
		}
		if !reference.IsNameOnly(named) {
			return fmt.Errorf("example %s: image repository %q must not carry a tag or digest", m.Name, m.NoRerankImage)
		}
	}
	return nil
}

// MustGet returns the metadata of a supported example, panicking when it is unknown.
func MustGet(name string) *Metadata {
	m, ok := SupportedExamples[name]
	if !ok {
		panic(fmt.Sprintf("example %s is not present in supported_examples.yaml", name))
	}
	return m
}

// ServiceCatalog converts the metadata into a fresh model.ServiceCatalog.
func (m *Metadata) ServiceCatalog() *model.ServiceCatalog {
	c := &model.ServiceCatalog{
		Name:           m.Name,
		Engine:         m.Engine,
		SupportsRerank: m.SupportsRerank,
		NoRerankImage:  m.NoRerankImage,
	}
	for _, s := range m.Services {
		c.Services = append(c.Services, model.CatalogService{Name: s.Name, Scalable: s.Scalable})
	}
	return c
}

// TunedParam converts the tuned preset, if any, into a fresh model.TunedParam.
func (m *Metadata) TunedParam() *model.TunedParam {
	if m.Tuned == nil {
		return nil
	}
	return (&model.TunedParam{
		Resources: m.Tuned.Resources,
		ExtraArgs: m.Tuned.ExtraArgs,
	}).DeepCopy()
}
