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

package deployer

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kaito-project/examples-deployer/pkg/values"
)

var _ = Describe("Deployer", func() {
	var (
		ctx     context.Context
		cluster *fakeCluster
		charts  *fakeHelm
		d       *Deployer
		outDir  string
		opts    DeployOptions
	)

	BeforeEach(func() {
		ctx = context.Background()
		cluster = newFakeCluster(
			testNode("node-a", nil),
			testNode("node-b", map[string]string{"node-type": "opea"}),
			testNode("node-c", nil),
		)
		charts = &fakeHelm{}
		d = New(cluster, charts, true)
		outDir = GinkgoT().TempDir()
		opts = DeployOptions{
			HFToken:   "hf_xxx",
			ModelDir:  "/mnt/opea-models",
			OutputDir: outDir,
		}
	})

	Context("Deploy", func() {
		It("requires the hub token and model directory", func() {
			_, err := d.Deploy(ctx, DeployOptions{HFToken: "hf_xxx"})
			Expect(err).To(MatchError(ErrMissingCredentials))
			Expect(charts.repos).To(BeEmpty())
		})

		It("rejects a malformed label", func() {
			opts.Label = "node-type"
			_, err := d.Deploy(ctx, opts)
			Expect(errors.Is(err, ErrInvalidOptions)).To(BeTrue())
		})

		It("labels nodes, synthesizes values and installs the chart", func() {
			opts.NumNodes = 2
			result, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())

			Expect(charts.repos).To(Equal([]string{"opea=https://opea-project.github.io/GenAIInfra"}))
			// node-b already carries the label and is preferred
			Expect(result.LabeledNodes).To(Equal([]string{"node-a"}))
			Expect(result.ValuesFile).To(Equal(filepath.Join(outDir, "chatqna-2-cpu-deploy-values.yaml")))
			Expect(result.NamespaceCreated).To(BeFalse())
			Expect(result.Installed).To(BeTrue())

			Expect(charts.installs).To(HaveLen(1))
			install := charts.installs[0]
			Expect(install.Release).To(Equal("chatqna"))
			Expect(install.Chart).To(Equal("opea/chatqna"))
			Expect(install.Namespace).To(Equal("default"))
			Expect(install.Sets).To(HaveKeyWithValue("global.HUGGINGFACEHUB_API_TOKEN", "hf_xxx"))
			Expect(install.ValuesFile).To(Equal(result.ValuesFile))

			data, err := os.ReadFile(result.ValuesFile)
			Expect(err).NotTo(HaveOccurred())
			doc, err := values.ParseDocument(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.NodeSelector).To(Equal(map[string]string{"node-type": "opea"}))
			Expect(*doc.ReplicaCount).To(Equal(2))
			Expect(*doc.Services["tgi"].ReplicaCount).To(Equal(16))
			Expect(doc.Global.HuggingFaceHubAPIToken).To(Equal("hf_xxx"))
		})

		It("rejects an unknown example before touching the cluster", func() {
			opts.ExampleType = "audioqna"
			_, err := d.Deploy(ctx, opts)
			Expect(errors.Is(err, ErrInvalidOptions)).To(BeTrue())
			Expect(charts.repos).To(BeEmpty())
			Expect(cluster.calls).To(BeEmpty())
		})

		It("passes extra sets on top of the global ones", func() {
			opts.NodeNames = []string{"node-b"}
			opts.Sets = map[string]string{"global.modelUseHostPath": "/data", "tgi.image.tag": "2.4"}
			_, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(charts.installs[0].Sets).To(Equal(map[string]string{
				"global.HUGGINGFACEHUB_API_TOKEN": "hf_xxx",
				"global.modelUseHostPath":         "/data",
				"tgi.image.tag":                   "2.4",
			}))
		})

		It("labels explicitly named nodes", func() {
			opts.NodeNames = []string{"node-c"}
			opts.WithRerank = true
			result, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.LabeledNodes).To(Equal([]string{"node-c"}))
			Expect(filepath.Base(result.ValuesFile)).To(Equal("chatqna-1-cpu-deploy-with-rerank-values.yaml"))
			Expect(cluster.nodes[2].Labels).To(HaveKeyWithValue("node-type", "opea"))
		})

		It("detects the accelerator family of the first node", func() {
			gaudi := testNode("gaudi-0", nil)
			gaudi.Status.Allocatable = corev1.ResourceList{"habana.ai/gaudi": resource.MustParse("8")}
			cluster.nodes = append(cluster.nodes, gaudi)
			opts.NodeNames = []string{"gaudi-0"}
			opts.ValuesOnly = true

			result, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Base(result.ValuesFile)).To(Equal("chatqna-1-gaudi-deploy-values.yaml"))
		})

		It("fails when more nodes are requested than available", func() {
			opts.NumNodes = 4
			_, err := d.Deploy(ctx, opts)
			Expect(errors.Is(err, ErrInvalidOptions)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("only 3 are available"))
			Expect(charts.installs).To(BeEmpty())
		})

		It("aborts before labeling when the chart repository cannot be added", func() {
			charts.repoErr = errors.New("Error: looks like the URL is not a valid chart repository")
			_, err := d.Deploy(ctx, opts)
			Expect(err).To(MatchError(ContainSubstring("failed to add helm repository opea")))
			Expect(errors.Is(err, charts.repoErr)).To(BeTrue())
			Expect(cluster.calls).To(BeEmpty())
			Expect(charts.installs).To(BeEmpty())
		})

		It("rejects a negative node count before touching the cluster", func() {
			opts.NumNodes = -1
			_, err := d.Deploy(ctx, opts)
			Expect(errors.Is(err, ErrInvalidOptions)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("at least 1, got -1"))
			Expect(charts.repos).To(BeEmpty())
			Expect(cluster.calls).To(BeEmpty())
		})

		It("stops after writing values when values only", func() {
			opts.ValuesOnly = true
			result, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Installed).To(BeFalse())
			Expect(charts.installs).To(BeEmpty())
			Expect(result.ValuesFile).To(BeAnExistingFile())
		})

		It("installs a user values file verbatim and exports flux manifests", func() {
			userValues := filepath.Join(outDir, "mine.yaml")
			Expect(os.WriteFile(userValues, []byte("tgi:\n  replicaCount: 3\n"), 0o600)).To(Succeed())
			opts.UserValues = userValues
			opts.FluxExportPath = filepath.Join(outDir, "flux.yaml")
			opts.Namespace = "chatqna"

			result, err := d.Deploy(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ValuesFile).To(Equal(userValues))
			Expect(result.NamespaceCreated).To(BeTrue())
			Expect(cluster.namespaces).To(HaveKey("chatqna"))

			flux, err := os.ReadFile(opts.FluxExportPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(flux)).To(ContainSubstring("kind: HelmRelease"))
			Expect(string(flux)).To(ContainSubstring("replicaCount: 3"))
		})

		It("rolls back labels and the created namespace when install fails", func() {
			installErr := errors.New("helm install failed")
			charts.installErr = installErr
			opts.Namespace = "chatqna"

			result, err := d.Deploy(ctx, opts)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, installErr)).To(BeTrue())
			Expect(result.NamespaceCreated).To(BeTrue())

			// node-b was already labeled, so nothing was labeled by this run
			Expect(cluster.calls).To(ContainElement("delete ns chatqna"))
			Expect(cluster.namespaces).NotTo(HaveKey("chatqna"))
		})

		It("removes labels it applied when install fails", func() {
			charts.installErr = errors.New("helm install failed")
			opts.NodeNames = []string{"node-a", "node-c"}

			_, err := d.Deploy(ctx, opts)
			Expect(err).To(HaveOccurred())
			Expect(cluster.calls).To(ContainElements("unlabel node-a", "unlabel node-c"))
			Expect(cluster.nodes[0].Labels).NotTo(HaveKey("node-type"))
			Expect(cluster.nodes[1].Labels).To(HaveKey("node-type"))
		})

		It("restores a label value it overwrote when install fails", func() {
			cluster.nodes[0].Labels = map[string]string{"node-type": "gpu-pool"}
			charts.installErr = errors.New("helm install failed")
			opts.NodeNames = []string{"node-a"}

			_, err := d.Deploy(ctx, opts)
			Expect(err).To(HaveOccurred())
			Expect(lo.Count(cluster.calls, "label node-a")).To(Equal(2))
			Expect(cluster.calls).NotTo(ContainElement("unlabel node-a"))
			Expect(cluster.nodes[0].Labels).To(HaveKeyWithValue("node-type", "gpu-pool"))
		})

		It("aggregates rollback errors with the original failure", func() {
			installErr := errors.New("helm install failed")
			charts.installErr = installErr
			cluster.failOn["unlabel node-a"] = errors.New("forbidden")
			opts.NodeNames = []string{"node-a"}

			_, err := d.Deploy(ctx, opts)
			var agg utilerrors.Aggregate
			Expect(errors.As(err, &agg)).To(BeTrue())
			Expect(agg.Errors()).To(HaveLen(2))
			Expect(errors.Is(err, installErr)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("forbidden"))
		})

		It("keeps side effects when rollback is disabled", func() {
			d.RollbackOnFailure = false
			charts.installErr = errors.New("helm install failed")
			opts.NodeNames = []string{"node-a"}

			_, err := d.Deploy(ctx, opts)
			Expect(err).To(MatchError("helm install failed"))
			Expect(cluster.calls).NotTo(ContainElement("unlabel node-a"))
			Expect(cluster.nodes[0].Labels).To(HaveKeyWithValue("node-type", "opea"))
		})
	})

	Context("Uninstall", func() {
		It("clears labels from all nodes, uninstalls and deletes the namespace", func() {
			err := d.Uninstall(ctx, UninstallOptions{ReleaseName: "chatqna", Namespace: "chatqna", Label: "node-type=opea"})
			Expect(err).NotTo(HaveOccurred())
			Expect(cluster.calls).To(Equal([]string{"list", "unlabel node-b", "delete ns chatqna"}))
			Expect(charts.uninstalls).To(Equal([]string{"chatqna/chatqna"}))
		})

		It("skips namespace deletion for default", func() {
			err := d.Uninstall(ctx, UninstallOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(charts.uninstalls).To(Equal([]string{"default/chatqna"}))
			Expect(cluster.calls).To(BeEmpty())
		})

		It("only touches the named nodes", func() {
			err := d.Uninstall(ctx, UninstallOptions{Label: "node-type", NodeNames: []string{"node-a", "node-b"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(cluster.calls).To(Equal([]string{"unlabel node-b"}))
		})

		It("stops when helm uninstall fails", func() {
			charts.uninstallErr = errors.New("release not found")
			err := d.Uninstall(ctx, UninstallOptions{Namespace: "chatqna"})
			Expect(err).To(MatchError("release not found"))
			Expect(cluster.calls).NotTo(ContainElement("delete ns chatqna"))
		})
	})
})
