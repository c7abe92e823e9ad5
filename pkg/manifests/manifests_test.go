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
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sourcev1 "github.com/fluxcd/source-controller/api/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/utils/ptr"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/values"
)

func sampleDocument() *values.Document {
	return &values.Document{
		Global: values.GlobalValues{HuggingFaceHubAPIToken: "tok"},
		ServiceValues: values.ServiceValues{
			ReplicaCount: ptr.To(2),
		},
		Services: map[string]*values.ServiceValues{
			"tgi": {ReplicaCount: ptr.To(7), ExtraCmdArgs: []string{"--max-batch-size", "4"}},
		},
	}
}

func TestGenerateHelmRepository(t *testing.T) {
	repo, err := GenerateHelmRepository(&ExportContext{Namespace: "opea", Chart: "opea/chatqna"})
	require.NoError(t, err)

	assert.Equal(t, sourcev1.HelmRepositoryKind, repo.Kind)
	assert.Equal(t, "opea", repo.Name)
	assert.Equal(t, "opea", repo.Namespace)
	assert.Equal(t, consts.DefaultRepoURL, repo.Spec.URL)
	assert.Equal(t, DefaultInterval, repo.Spec.Interval.Duration)
}

func TestGenerateHelmRelease(t *testing.T) {
	tests := []struct {
		name          string
		ctx           ExportContext
		expectedRepo  string
		expectedChart string
		expectedErr   string
	}{
		{
			name:          "qualified chart",
			ctx:           ExportContext{Release: "chatqna", Namespace: "default", Chart: "opea/chatqna", Document: sampleDocument()},
			expectedRepo:  "opea",
			expectedChart: "chatqna",
		},
		{
			name:          "bare chart uses repo name",
			ctx:           ExportContext{Release: "docsum", Namespace: "default", Chart: "docsum", RepoName: "mirror"},
			expectedRepo:  "mirror",
			expectedChart: "docsum",
		},
		{
			name:        "missing release",
			ctx:         ExportContext{Chart: "opea/chatqna"},
			expectedErr: "release name is required",
		},
		{
			name:        "missing chart",
			ctx:         ExportContext{Release: "chatqna", Chart: "opea/"},
			expectedErr: "chart name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release, err := GenerateHelmRelease(&tt.ctx)
			if tt.expectedErr != "" {
				assert.ErrorContains(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ctx.Release, release.Name)
			assert.Equal(t, tt.ctx.Release, release.Spec.ReleaseName)
			assert.Equal(t, tt.expectedRepo, release.Spec.Chart.Spec.SourceRef.Name)
			assert.Equal(t, sourcev1.HelmRepositoryKind, release.Spec.Chart.Spec.SourceRef.Kind)
			assert.Equal(t, tt.expectedChart, release.Spec.Chart.Spec.Chart)
			if tt.ctx.Document == nil {
				assert.Nil(t, release.Spec.Values)
			}
		})
	}
}

func TestReleaseValuesAreJSON(t *testing.T) {
	release, err := GenerateHelmRelease(&ExportContext{Release: "chatqna", Chart: "opea/chatqna", Document: sampleDocument()})
	require.NoError(t, err)
	require.NotNil(t, release.Spec.Values)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(release.Spec.Values.Raw, &got))
	assert.EqualValues(t, 2, got["replicaCount"])
	tgi := got["tgi"].(map[string]interface{})
	assert.EqualValues(t, 7, tgi["replicaCount"])
	assert.Equal(t, []interface{}{"--max-batch-size", "4"}, tgi["extraCmdArgs"])
}

func TestReleaseRawValues(t *testing.T) {
	release, err := GenerateHelmRelease(&ExportContext{Release: "chatqna", Chart: "opea/chatqna",
		RawValues: []byte("tgi:\n  image:\n    tag: \"2.4\"\n")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tgi":{"image":{"tag":"2.4"}}}`, string(release.Spec.Values.Raw))

	_, err = GenerateHelmRelease(&ExportContext{Release: "chatqna", Chart: "opea/chatqna", RawValues: []byte("a: [")})
	assert.ErrorContains(t, err, "failed to convert values to JSON")
}

func TestExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flux.yaml")
	err := Export(&ExportContext{Release: "chatqna", Namespace: "default", Chart: "opea/chatqna", Document: sampleDocument()}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	docs := strings.Split(string(data), "---\n")
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "kind: HelmRepository")
	assert.Contains(t, docs[1], "kind: HelmRelease")
	assert.Contains(t, docs[1], "HUGGINGFACEHUB_API_TOKEN: tok")
}

func TestWriteManifestsMissingDir(t *testing.T) {
	repo, err := GenerateHelmRepository(&ExportContext{Chart: "opea/chatqna"})
	require.NoError(t, err)
	err = WriteManifests(filepath.Join(t.TempDir(), "missing", "flux.yaml"), repo)
	assert.ErrorContains(t, err, "failed to write manifests")
}
