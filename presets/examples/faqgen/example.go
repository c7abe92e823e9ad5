// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package faqgen

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	metadata "github.com/kaito-project/examples-deployer/presets/examples"
)

func init() {
	plugin.Examples.Register(&plugin.Registration{
		Name:     PresetFaqGenExample,
		Instance: &faqgenA,
	})
}

const (
	PresetFaqGenExample = string(v1alpha1.ExampleFaqGen)
)

var faqgenA faqgen

type faqgen struct{}

func (*faqgen) GetServiceCatalog() *model.ServiceCatalog {
	return metadata.MustGet(PresetFaqGenExample).ServiceCatalog()
}
func (*faqgen) SupportsRerank() bool {
	return metadata.MustGet(PresetFaqGenExample).SupportsRerank
}
func (*faqgen) GetTunedParameters() *model.TunedParam {
	return metadata.MustGet(PresetFaqGenExample).TunedParam()
}
