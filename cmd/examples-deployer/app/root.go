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
	"flag"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/pkg/deployer"
	"github.com/kaito-project/examples-deployer/pkg/featuregates"
	"github.com/kaito-project/examples-deployer/pkg/helm"
	"github.com/kaito-project/examples-deployer/pkg/kubectl"
	"github.com/kaito-project/examples-deployer/pkg/metrics"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/resources"
	"github.com/kaito-project/examples-deployer/pkg/utils/runner"
)

// rootOptions is the state shared by subcommands after flag parsing.
type rootOptions struct {
	cfgFile string
	tools   *ToolConfig
	// newDeployer is replaced in tests.
	newDeployer func(*ToolConfig) (*deployer.Deployer, error)
}

// NewRootCommand returns the examples-deployer command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{newDeployer: newDeployer})
}

func newRootCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "examples-deployer",
		Short:         "Generate Helm values for GenAI examples and deploy them with kubectl and helm",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := loadToolConfig(viper.New(), cmd.Root().PersistentFlags(), o.cfgFile)
			if err != nil {
				return err
			}
			if err := featuregates.ParseAndValidateFeatureGates(tools.FeatureGates); err != nil {
				return err
			}
			o.tools = tools
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if o.tools == nil || o.tools.MetricsTextfile == "" {
				return nil
			}
			return metrics.WriteTextfile(o.tools.MetricsTextfile)
		},
	}

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	cmd.PersistentFlags().AddGoFlagSet(goFlags)
	cmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "Config file (default is $PWD/"+consts.ConfigFileName+".yaml).")
	addToolFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newGenerateCommand(o),
		newDeployCommand(o),
		newUninstallCommand(o),
		newExportCommand(o),
		newVersionCommand(),
	)
	return cmd
}

// newDeployer wires the cluster and chart collaborators from the tool config.
func newDeployer(tools *ToolConfig) (*deployer.Deployer, error) {
	r := runner.New(nil, tools.CommandTimeout)

	var cluster kubectl.ClusterControl = kubectl.New(r, tools.KubectlBinary)
	if featuregates.Enabled(consts.FeatureFlagAPIClusterControl) {
		c, err := resources.NewClusterClientFromKubeconfig(tools.Kubeconfig, tools.KubeContext)
		if err != nil {
			return nil, err
		}
		cluster = c
	}

	return deployer.New(cluster, helm.New(r, tools.HelmBinary),
		featuregates.Enabled(consts.FeatureFlagRollbackOnFailure)), nil
}
