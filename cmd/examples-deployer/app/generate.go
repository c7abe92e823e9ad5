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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/values"
)

// synthesisFlags are shared by generate and export.
type synthesisFlags struct {
	example         string
	deployConfig    string
	nodeSelector    map[string]string
	tuned           bool
	defaultReplicas bool
	device          string
}

func (f *synthesisFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.example, "example", "e", string(v1alpha1.ExampleChatQnA),
		"Example type, one of "+exampleList()+".")
	cmd.Flags().StringVarP(&f.deployConfig, "deploy-config", "f", "", "Deploy config YAML file.")
	cmd.Flags().Var(cliflag.NewMapStringString(&f.nodeSelector), "node-selector",
		"Node selector applied to every service, as key=value pairs.")
	cmd.Flags().BoolVar(&f.tuned, "tuned", false, "Apply the example's benchmark-tuned preset.")
	cmd.Flags().BoolVar(&f.defaultReplicas, "default-replicas", false, "Fill in per-node default instance counts.")
	cmd.Flags().StringVar(&f.device, "device", "", "Override the accelerator family of the deploy config.")
}

func (f *synthesisFlags) options() values.Options {
	return values.Options{Tuned: f.tuned, DefaultReplicas: f.defaultReplicas, Device: f.device}
}

// load returns the deploy config, or nil when none was named.
func (f *synthesisFlags) load() (*v1alpha1.DeployConfig, error) {
	if f.deployConfig == "" {
		return nil, nil
	}
	return v1alpha1.LoadDeployConfig(f.deployConfig)
}

func exampleList() string {
	names := make([]string, 0, len(v1alpha1.ExampleTypes))
	for _, t := range v1alpha1.ExampleTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func newGenerateCommand(_ *rootOptions) *cobra.Command {
	var (
		f        synthesisFlags
		chartDir string
		action   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Synthesize a values file for an example and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result values.Result
			cfg, err := f.load()
			if err != nil {
				result = values.Result{Status: values.StatusError, Message: err.Error(), Err: err}
			} else {
				result = values.GenerateWithOptions(f.example, cfg, chartDir, v1alpha1.ParseActionType(action),
					f.nodeSelector, f.options())
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if !result.Succeeded() {
				return result.Err
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&chartDir, "chart-dir", ".", "Directory the values file is written to.")
	cmd.Flags().StringVar(&action, "action", string(v1alpha1.ActionOther), "Action type: deploy, update or other.")
	return cmd
}
