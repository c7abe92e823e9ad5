// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package all registers every supported example pipeline.
package all

import (
	_ "github.com/kaito-project/examples-deployer/presets/examples/chatqna"
	_ "github.com/kaito-project/examples-deployer/presets/examples/codegen"
	_ "github.com/kaito-project/examples-deployer/presets/examples/codetrans"
	_ "github.com/kaito-project/examples-deployer/presets/examples/docsum"
	_ "github.com/kaito-project/examples-deployer/presets/examples/faqgen"
)
