// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package docsum

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	metadata "github.com/kaito-project/examples-deployer/presets/examples"
)

func init() {
	plugin.Examples.Register(&plugin.Registration{
		Name:     PresetDocSumExample,
		Instance: &docsumA,
	})
}

const (
	PresetDocSumExample = string(v1alpha1.ExampleDocSum)
)

var docsumA docsum

type docsum struct{}

func (*docsum) GetServiceCatalog() *model.ServiceCatalog {
	return metadata.MustGet(PresetDocSumExample).ServiceCatalog()
}
func (*docsum) SupportsRerank() bool {
	return metadata.MustGet(PresetDocSumExample).SupportsRerank
}
func (*docsum) GetTunedParameters() *model.TunedParam {
	return metadata.MustGet(PresetDocSumExample).TunedParam()
}
