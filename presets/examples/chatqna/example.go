// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.
package chatqna

import (
	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	metadata "github.com/kaito-project/examples-deployer/presets/examples"
)

func init() {
	plugin.Examples.Register(&plugin.Registration{
		Name:     PresetChatQnAExample,
		Instance: &chatqnaA,
	})
}

const (
	PresetChatQnAExample = string(v1alpha1.ExampleChatQnA)
)

var chatqnaA chatqna

type chatqna struct{}

func (*chatqna) GetServiceCatalog() *model.ServiceCatalog {
	return metadata.MustGet(PresetChatQnAExample).ServiceCatalog()
}
func (*chatqna) SupportsRerank() bool {
	return metadata.MustGet(PresetChatQnAExample).SupportsRerank
}
func (*chatqna) GetTunedParameters() *model.TunedParam {
	return metadata.MustGet(PresetChatQnAExample).TunedParam()
}
