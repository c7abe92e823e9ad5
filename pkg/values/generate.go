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

package values

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/metrics"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result reports the outcome of Generate. Filepath is set on success, Message on error.
type Result struct {
	Status   Status `json:"status"`
	Filepath string `json:"filepath,omitempty"`
	Message  string `json:"message,omitempty"`

	// Err keeps the underlying error for errors.Is matching.
	Err error `json:"-"`
}

func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

func errorResult(err error) Result {
	return Result{Status: StatusError, Message: err.Error(), Err: err}
}

// Generate synthesizes the values document and writes it into chartDir.
func Generate(exampleType string, cfg *v1alpha1.DeployConfig, chartDir string, action v1alpha1.ActionType,
	nodeSelector map[string]string) Result {
	return GenerateWithOptions(exampleType, cfg, chartDir, action, nodeSelector, Options{})
}

func GenerateWithOptions(exampleType string, cfg *v1alpha1.DeployConfig, chartDir string, action v1alpha1.ActionType,
	nodeSelector map[string]string, opts Options) Result {
	path, err := generate(exampleType, cfg, chartDir, action, nodeSelector, opts)
	metrics.ObserveValuesGenerated(exampleType, err)
	if err != nil {
		klog.ErrorS(err, "Failed to generate values", "example", exampleType, "chartDir", chartDir)
		return errorResult(err)
	}
	klog.InfoS("Values file has been generated", "path", path)
	return Result{Status: StatusSuccess, Filepath: path}
}

func generate(exampleType string, cfg *v1alpha1.DeployConfig, chartDir string, action v1alpha1.ActionType,
	nodeSelector map[string]string, opts Options) (string, error) {
	if cfg == nil {
		return "", ErrMissingConfiguration
	}
	if info, err := os.Stat(chartDir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: chart directory %s does not exist", ErrOutputDirectoryNotFound, chartDir)
	}

	doc, filename, err := SynthesizeWithOptions(exampleType, cfg, nodeSelector, action, opts)
	if err != nil {
		return "", err
	}
	data, err := doc.Marshal()
	if err != nil {
		return "", err
	}

	path := filepath.Join(chartDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write values file %s: %w", path, err)
	}
	return path, nil
}
