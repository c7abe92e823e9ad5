// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package codegen

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	metadata "github.com/kaito-project/examples-deployer/presets/examples"
)

func init() {
	plugin.Examples.Register(&plugin.Registration{
		Name:     PresetCodeGenExample,
		Instance: &codegenA,
	})
}

const (
	PresetCodeGenExample = string(v1alpha1.ExampleCodeGen)
)

var codegenA codegen

type codegen struct{}

func (*codegen) GetServiceCatalog() *model.ServiceCatalog {
	return metadata.MustGet(PresetCodeGenExample).ServiceCatalog()
}
func (*codegen) SupportsRerank() bool {
	return metadata.MustGet(PresetCodeGenExample).SupportsRerank
}
func (*codegen) GetTunedParameters() *model.TunedParam {
	return metadata.MustGet(PresetCodeGenExample).TunedParam()
}
