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

package helm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/runner"
)

// PackageDeployment is the chart lifecycle surface the deploy workflows depend on.
type PackageDeployment interface {
	RepoAdd(ctx context.Context, name, url string) error
	Install(ctx context.Context, opts InstallOptions) error
	Uninstall(ctx context.Context, release, namespace string) error
}

type InstallOptions struct {
	Release   string
	Chart     string
	Namespace string
	// Sets become --set key=value pairs in key order.
	Sets map[string]string
	// ValuesFile is passed with -f only when it exists.
	ValuesFile string
}

// Client implements PackageDeployment by shelling out to helm.
type Client struct {
	runner runner.Interface
	binary string
}

var _ PackageDeployment = &Client{}

func New(r runner.Interface, binary string) *Client {
	if binary == "" {
		binary = consts.HelmBinary
	}
	return &Client{runner: r, binary: binary}
}

// RepoAdd adds the chart repository. An existing repository is not an error.
func (c *Client) RepoAdd(ctx context.Context, name, url string) error {
	_, err := c.runner.Run(ctx, c.binary, "repo", "add", name, url)
	var failure *runner.ExternalToolFailure
	if errors.As(err, &failure) && strings.Contains(failure.Stderr, "already exists") {
		klog.InfoS("Helm repository already exists", "name", name, "url", url)
		return nil
	}
	return err
}

func (c *Client) Install(ctx context.Context, opts InstallOptions) error {
	args := InstallArgs(opts)
	klog.InfoS("Installing chart", "release", opts.Release, "chart", opts.Chart, "namespace", opts.Namespace)
	if _, err := c.runner.Run(ctx, c.binary, args...); err != nil {
		return fmt.Errorf("failed to install release %s: %w", opts.Release, err)
	}
	return nil
}

// InstallArgs returns the helm arguments for opts.
func InstallArgs(opts InstallOptions) []string {
	args := []string{"install", opts.Release, opts.Chart, "--namespace", opts.Namespace}
	keys := make([]string, 0, len(opts.Sets))
	for k := range opts.Sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--set", k+"="+opts.Sets[k])
	}
	if opts.ValuesFile != "" {
		if _, err := os.Stat(opts.ValuesFile); err == nil {
			args = append(args, "-f", opts.ValuesFile)
		} else {
			klog.InfoS("Values file not found, installing with chart defaults", "path", opts.ValuesFile)
		}
	}
	return args
}

func (c *Client) Uninstall(ctx context.Context, release, namespace string) error {
	klog.InfoS("Uninstalling release", "release", release, "namespace", namespace)
	if _, err := c.runner.Run(ctx, c.binary, "uninstall", release, "--namespace", namespace); err != nil {
		return fmt.Errorf("failed to uninstall release %s: %w", release, err)
	}
	return nil
}
