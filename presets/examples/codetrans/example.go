// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package codetrans

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	metadata "github.com/kaito-project/examples-deployer/presets/examples"
)

func init() {
	plugin.Examples.Register(&plugin.Registration{
		Name:     PresetCodeTransExample,
		Instance: &codetransA,
	})
}

const (
	PresetCodeTransExample = string(v1alpha1.ExampleCodeTrans)
)

var codetransA codetrans

type codetrans struct{}

func (*codetrans) GetServiceCatalog() *model.ServiceCatalog {
	return metadata.MustGet(PresetCodeTransExample).ServiceCatalog()
}
func (*codetrans) SupportsRerank() bool {
	return metadata.MustGet(PresetCodeTransExample).SupportsRerank
}
func (*codetrans) GetTunedParameters() *model.TunedParam {
	return metadata.MustGet(PresetCodeTransExample).TunedParam()
}
