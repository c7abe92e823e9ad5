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

package consts

import "time"

const (
	// Chart repository defaults.
	DefaultRepoName    = "opea"
	DefaultRepoURL     = "https://opea-project.github.io/GenAIInfra"
	DefaultChartName   = "opea/chatqna"
	DefaultReleaseName = "chatqna"

	// DefaultNodeLabel is the label used to target nodes for example workloads.
	DefaultNodeLabel = "node-type=opea"
	// DefaultNamespace is never deleted on uninstall.
	DefaultNamespace = "default"

	KubectlBinary = "kubectl"
	HelmBinary    = "helm"

	// DefaultCommandTimeout bounds every kubectl and helm invocation.
	DefaultCommandTimeout = 5 * time.Minute

	// ValuesFileSuffix terminates every generated values file name.
	ValuesFileSuffix = "values.yaml"

	// Feature flags
	FeatureFlagAPIClusterControl = "apiClusterControl"
	FeatureFlagRollbackOnFailure = "rollbackOnFailure"
	FeatureFlagFluxExport        = "fluxExport"

	// Accelerator resource names.
	GaudiResource  = "habana.ai/gaudi"
	NvidiaGPU      = "nvidia.com/gpu"
	AMDGPU         = "amd.com/gpu"
	GaudiFamily    = "gaudi"
	NvidiaFamily   = "nvidia"
	AMDFamily      = "amd"
	CPUFamily      = "cpu"
	UnknownFamily  = "unknown"
	GPUProductKey  = "/gpu.product"
	MetricsSubsys  = "examples_deployer"
	EnvPrefix      = "EXAMPLES_DEPLOYER"
	ConfigFileName = "examples-deployer"
)
