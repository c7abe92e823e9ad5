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

package manifests

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	helmv2 "github.com/fluxcd/helm-controller/api/v2"
	sourcev1 "github.com/fluxcd/source-controller/api/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/generator"
	"github.com/kaito-project/examples-deployer/pkg/values"
)

// DefaultInterval is the Flux reconcile interval of exported objects.
const DefaultInterval = 10 * time.Minute

// ExportContext describes one chart release to be reconciled by Flux.
type ExportContext struct {
	Release   string
	Namespace string
	// Chart is "<repo>/<chart>" or a bare chart name served by RepoName.
	Chart    string
	RepoName string
	RepoURL  string
	Document *values.Document
	// RawValues is used when Document is nil, e.g. for a user-supplied values file.
	RawValues []byte
}

func (c *ExportContext) repoAndChart() (string, string) {
	if repo, chart, ok := strings.Cut(c.Chart, "/"); ok {
		return repo, chart
	}
	repo := c.RepoName
	if repo == "" {
		repo = consts.DefaultRepoName
	}
	return repo, c.Chart
}

// GenerateHelmRepository generates a Flux HelmRepository for the chart repository.
func GenerateHelmRepository(ctx *ExportContext) (*sourcev1.HelmRepository, error) {
	return generator.Generate(ctx,
		func(ctx *ExportContext, obj *sourcev1.HelmRepository) error {
			repo, _ := ctx.repoAndChart()
			obj.TypeMeta = metav1.TypeMeta{APIVersion: sourcev1.GroupVersion.String(), Kind: sourcev1.HelmRepositoryKind}
			obj.ObjectMeta = metav1.ObjectMeta{Name: repo, Namespace: ctx.Namespace}
			return nil
		},
		func(ctx *ExportContext, obj *sourcev1.HelmRepository) error {
			url := ctx.RepoURL
			if url == "" {
				url = consts.DefaultRepoURL
			}
			obj.Spec = sourcev1.HelmRepositorySpec{
				URL:      url,
				Type:     sourcev1.HelmRepositoryTypeDefault,
				Interval: metav1.Duration{Duration: DefaultInterval},
			}
			return nil
		},
	)
}

// GenerateHelmRelease generates a Flux HelmRelease whose values are the synthesized document.
func GenerateHelmRelease(ctx *ExportContext) (*helmv2.HelmRelease, error) {
	return generator.Generate(ctx,
		SetReleaseMeta,
		SetChartSource,
		SetReleaseValues,
	)
}

func SetReleaseMeta(ctx *ExportContext, obj *helmv2.HelmRelease) error {
	if ctx.Release == "" {
		return fmt.Errorf("release name is required")
	}
	obj.TypeMeta = metav1.TypeMeta{APIVersion: helmv2.GroupVersion.String(), Kind: helmv2.HelmReleaseKind}
	obj.ObjectMeta = metav1.ObjectMeta{Name: ctx.Release, Namespace: ctx.Namespace}
	obj.Spec.ReleaseName = ctx.Release
	obj.Spec.TargetNamespace = ctx.Namespace
	obj.Spec.Interval = metav1.Duration{Duration: DefaultInterval}
	obj.Spec.Install = &helmv2.Install{CreateNamespace: true}
	return nil
}

func SetChartSource(ctx *ExportContext, obj *helmv2.HelmRelease) error {
	repo, chart := ctx.repoAndChart()
	if chart == "" {
		return fmt.Errorf("chart name is required")
	}
	obj.Spec.Chart = &helmv2.HelmChartTemplate{
		Spec: helmv2.HelmChartTemplateSpec{
			Chart: chart,
			SourceRef: helmv2.CrossNamespaceObjectReference{
				Kind:      sourcev1.HelmRepositoryKind,
				Name:      repo,
				Namespace: ctx.Namespace,
			},
		},
	}
	return nil
}

// SetReleaseValues embeds the values document as the release's inline values.
func SetReleaseValues(ctx *ExportContext, obj *helmv2.HelmRelease) error {
	raw := ctx.RawValues
	if ctx.Document != nil {
		var err error
		if raw, err = ctx.Document.Marshal(); err != nil {
			return err
		}
	}
	if len(raw) == 0 {
		return nil
	}
	js, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return fmt.Errorf("failed to convert values to JSON: %w", err)
	}
	obj.Spec.Values = &apiextensionsv1.JSON{Raw: js}
	return nil
}

// Marshal renders the objects as a multi-document YAML stream.
func Marshal(objs ...runtime.Object) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objs {
		out, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T: %w", obj, err)
		}
		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(out)
	}
	return buf.Bytes(), nil
}

// WriteManifests writes the objects to path as a multi-document YAML stream.
func WriteManifests(path string, objs ...runtime.Object) error {
	data, err := Marshal(objs...)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifests %s: %w", path, err)
	}
	klog.InfoS("Flux manifests have been generated", "path", path, "objects", len(objs))
	return nil
}

// Export generates the HelmRepository and HelmRelease for ctx and writes them to path.
func Export(ctx *ExportContext, path string) error {
	repo, err := GenerateHelmRepository(ctx)
	if err != nil {
		return err
	}
	release, err := GenerateHelmRelease(ctx)
	if err != nil {
		return err
	}
	return WriteManifests(path, repo, release)
}
