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

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/manifests"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/values"
)

func newExportCommand(o *rootOptions) *cobra.Command {
	var (
		f      synthesisFlags
		ctx    manifests.ExportContext
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write Flux HelmRepository and HelmRelease manifests carrying synthesized values",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			doc, _, err := values.SynthesizeWithOptions(f.example, cfg, f.nodeSelector, v1alpha1.ActionDeploy, f.options())
			if err != nil {
				return err
			}
			ctx.Document = doc
			ctx.RepoName = o.tools.RepoName
			ctx.RepoURL = o.tools.RepoURL
			if err := manifests.Export(&ctx, output); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&ctx.Release, "release-name", consts.DefaultReleaseName, "The Helm release name.")
	cmd.Flags().StringVar(&ctx.Namespace, "namespace", consts.DefaultNamespace, "Namespace of the Flux objects and the release.")
	cmd.Flags().StringVar(&ctx.Chart, "chart-name", consts.DefaultChartName, "The chart to deploy, as repo/chart.")
	cmd.Flags().StringVarP(&output, "output", "o", "flux.yaml", "Path the manifests are written to.")
	return cmd
}
