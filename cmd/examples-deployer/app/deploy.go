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

package app

import (
	"fmt"

	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/deployer"
	"github.com/kaito-project/examples-deployer/pkg/featuregates"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

func newDeployCommand(o *rootOptions) *cobra.Command {
	var (
		opts         deployer.DeployOptions
		deployConfig string
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Label nodes, generate values and install an example chart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.FluxExportPath != "" && !featuregates.Enabled(consts.FeatureFlagFluxExport) {
				return fmt.Errorf("--flux-export requires the %s feature gate", consts.FeatureFlagFluxExport)
			}
			if deployConfig != "" {
				cfg, err := v1alpha1.LoadDeployConfig(deployConfig)
				if err != nil {
					return err
				}
				opts.DeployConfig = cfg
			}
			opts.RepoName = o.tools.RepoName
			opts.RepoURL = o.tools.RepoURL

			d, err := o.newDeployer(o.tools)
			if err != nil {
				return err
			}
			result, err := d.Deploy(cmd.Context(), opts)
			if err != nil {
				return err
			}
			klog.InfoS("Deploy finished", "valuesFile", result.ValuesFile, "labeledNodes", result.LabeledNodes,
				"namespaceCreated", result.NamespaceCreated, "installed", result.Installed)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.ExampleType, "example", "e", string(v1alpha1.ExampleChatQnA), "Example type, one of "+exampleList()+".")
	fs.StringVar(&opts.ReleaseName, "release-name", consts.DefaultReleaseName, "The Helm release name.")
	fs.StringVar(&opts.ChartName, "chart-name", consts.DefaultChartName, "The chart to deploy.")
	fs.StringVar(&opts.Namespace, "namespace", consts.DefaultNamespace, "Kubernetes namespace.")
	fs.StringVar(&opts.HFToken, "hftoken", "", "Hugging Face API token.")
	fs.StringVar(&opts.ModelDir, "modeldir", "", "Model directory mounted into services for pre-downloaded models.")
	fs.StringVar(&opts.UserValues, "user-values", "", "Path to a user-specified values file.")
	fs.BoolVar(&opts.ValuesOnly, "create-values-only", false, "Only create the values file without deploying.")
	fs.IntVar(&opts.NumNodes, "num-nodes", 1, "Number of nodes to use.")
	fs.StringSliceVar(&opts.NodeNames, "node-names", nil, "Specific node names to label.")
	fs.StringVar(&opts.Label, "label", consts.DefaultNodeLabel, "Label to add to nodes, as key=value.")
	fs.BoolVar(&opts.WithRerank, "with-rerank", false, "Include the rerank service.")
	fs.BoolVar(&opts.Tuned, "tuned", false, "Apply the example's benchmark-tuned preset.")
	fs.StringVarP(&deployConfig, "deploy-config", "f", "", "Deploy config YAML file used as the base description.")
	fs.StringVar(&opts.OutputDir, "output-dir", ".", "Directory the generated values file is written to.")
	fs.StringVar(&opts.FluxExportPath, "flux-export", "", "Also write Flux HelmRepository and HelmRelease manifests to this path.")
	fs.Var(cliflag.NewMapStringString(&opts.Sets), "set", "Extra helm values as key=value pairs, passed to helm install.")
	return cmd
}

func newUninstallCommand(o *rootOptions) *cobra.Command {
	var opts deployer.UninstallOptions
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Uninstall an example release, clear node labels and delete its namespace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := o.newDeployer(o.tools)
			if err != nil {
				return err
			}
			return d.Uninstall(cmd.Context(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.ReleaseName, "release-name", consts.DefaultReleaseName, "The Helm release name.")
	fs.StringVar(&opts.Namespace, "namespace", consts.DefaultNamespace, "Kubernetes namespace. Deleted unless default.")
	fs.StringVar(&opts.Label, "label", consts.DefaultNodeLabel, "Node label to clear. Empty keeps node labels.")
	fs.StringSliceVar(&opts.NodeNames, "node-names", nil, "Only clear the label from these nodes.")
	return cmd
}
