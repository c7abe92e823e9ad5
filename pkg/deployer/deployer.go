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
	"fmt"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/accelerator"
	"github.com/kaito-project/examples-deployer/pkg/helm"
	"github.com/kaito-project/examples-deployer/pkg/kubectl"
	"github.com/kaito-project/examples-deployer/pkg/manifests"
	"github.com/kaito-project/examples-deployer/pkg/utils"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
	"github.com/kaito-project/examples-deployer/pkg/values"
)

var (
	ErrMissingCredentials = errors.New("--hftoken and --modeldir are required unless uninstalling")
	ErrInvalidOptions     = errors.New("invalid deploy options")
)

// Deployer runs the deploy and uninstall workflows against a cluster and a
// chart installer.
type Deployer struct {
	Cluster kubectl.ClusterControl
	Helm    helm.PackageDeployment
	// RollbackOnFailure undoes node labels and a namespace created by a failed deploy.
	RollbackOnFailure bool
}

func New(cluster kubectl.ClusterControl, h helm.PackageDeployment, rollbackOnFailure bool) *Deployer {
	return &Deployer{Cluster: cluster, Helm: h, RollbackOnFailure: rollbackOnFailure}
}

type DeployOptions struct {
	ExampleType string
	ReleaseName string
	ChartName   string
	Namespace   string
	HFToken     string
	ModelDir    string
	RepoName    string
	RepoURL     string
	// UserValues is a values file used verbatim instead of synthesizing one.
	UserValues string
	// ValuesOnly stops after the values file is written.
	ValuesOnly bool
	NumNodes   int
	NodeNames  []string
	Label      string
	WithRerank bool
	Tuned      bool
	// DeployConfig is the base description. When nil one is derived from the options.
	DeployConfig *v1alpha1.DeployConfig
	// OutputDir receives the synthesized values file.
	OutputDir string
	// FluxExportPath, when set, receives Flux manifests for the release.
	FluxExportPath string
	// Sets are extra helm --set overrides applied on top of the global ones.
	Sets map[string]string
}

func (o *DeployOptions) Default() {
	if o.ExampleType == "" {
		o.ExampleType = string(v1alpha1.ExampleChatQnA)
	}
	if o.ReleaseName == "" {
		o.ReleaseName = consts.DefaultReleaseName
	}
	if o.ChartName == "" {
		o.ChartName = consts.DefaultChartName
	}
	if o.Namespace == "" {
		o.Namespace = consts.DefaultNamespace
	}
	if o.RepoName == "" {
		o.RepoName = consts.DefaultRepoName
	}
	if o.RepoURL == "" {
		o.RepoURL = consts.DefaultRepoURL
	}
	if o.Label == "" {
		o.Label = consts.DefaultNodeLabel
	}
	if o.NumNodes == 0 && len(o.NodeNames) == 0 {
		o.NumNodes = 1
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
}

// DeployResult records what a deploy changed.
type DeployResult struct {
	ValuesFile       string
	LabeledNodes     []string
	NamespaceCreated bool
	Installed        bool
}

// changes tracks side effects a rollback must undo.
type changes struct {
	labelKey     string
	labeledNodes []string
	// overwritten maps a labeled node to the value its label key held before.
	// Nodes absent from it did not carry the key.
	overwritten      map[string]string
	namespace        string
	namespaceCreated bool
}

func (d *Deployer) Deploy(ctx context.Context, opts DeployOptions) (*DeployResult, error) {
	opts.Default()
	logger := klog.FromContext(ctx).WithValues("release", opts.ReleaseName, "namespace", opts.Namespace)

	if opts.HFToken == "" || opts.ModelDir == "" {
		return nil, ErrMissingCredentials
	}
	if opts.UserValues == "" && !plugin.IsValidExample(opts.ExampleType) {
		return nil, fmt.Errorf("%w: unknown example type %q", ErrInvalidOptions, opts.ExampleType)
	}
	if len(opts.NodeNames) == 0 && opts.NumNodes < 1 {
		return nil, fmt.Errorf("%w: number of nodes must be at least 1, got %d", ErrInvalidOptions, opts.NumNodes)
	}
	labelKey, labelValue, err := utils.ParseLabel(opts.Label)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}

	if err := d.Helm.RepoAdd(ctx, opts.RepoName, opts.RepoURL); err != nil {
		return nil, fmt.Errorf("failed to add helm repository %s: %w", opts.RepoName, err)
	}

	done := &changes{labelKey: labelKey, namespace: opts.Namespace}
	result, err := d.deploy(ctx, logger, &opts, labelKey, labelValue, done)
	if err != nil {
		return result, d.rollback(ctx, logger, done, err)
	}
	return result, nil
}

func (d *Deployer) deploy(ctx context.Context, logger logr.Logger, opts *DeployOptions,
	labelKey, labelValue string, done *changes) (*DeployResult, error) {
	result := &DeployResult{}

	nodes, err := d.labelNodes(ctx, logger, opts, labelKey, labelValue, done)
	result.LabeledNodes = done.labeledNodes
	if err != nil {
		return result, err
	}

	valuesFile, rawValues, err := d.values(ctx, logger, opts, nodes, map[string]string{labelKey: labelValue})
	if err != nil {
		return result, err
	}
	result.ValuesFile = valuesFile

	if opts.FluxExportPath != "" {
		if err := manifests.Export(&manifests.ExportContext{
			Release:   opts.ReleaseName,
			Namespace: opts.Namespace,
			Chart:     opts.ChartName,
			RepoName:  opts.RepoName,
			RepoURL:   opts.RepoURL,
			RawValues: rawValues,
		}, opts.FluxExportPath); err != nil {
			return result, err
		}
	}

	if opts.ValuesOnly {
		logger.Info("Values file created, skipping installation", "path", valuesFile)
		return result, nil
	}

	exists, err := d.Cluster.NamespaceExists(ctx, opts.Namespace)
	if err != nil {
		return result, fmt.Errorf("failed to check namespace %s: %w", opts.Namespace, err)
	}
	if !exists {
		logger.Info("Namespace does not exist, creating it")
		if err := d.Cluster.CreateNamespace(ctx, opts.Namespace); err != nil {
			return result, fmt.Errorf("failed to create namespace %s: %w", opts.Namespace, err)
		}
		done.namespaceCreated = true
		result.NamespaceCreated = true
	}

	if err := d.Helm.Install(ctx, helm.InstallOptions{
		Release:   opts.ReleaseName,
		Chart:     opts.ChartName,
		Namespace: opts.Namespace,
		Sets: utils.MergeStringMaps(map[string]string{
			"global.HUGGINGFACEHUB_API_TOKEN": opts.HFToken,
			"global.modelUseHostPath":         opts.ModelDir,
		}, opts.Sets),
		ValuesFile: valuesFile,
	}); err != nil {
		return result, err
	}
	result.Installed = true
	logger.Info("Deployment initiated successfully")
	return result, nil
}

// labelNodes labels the named nodes, or NumNodes listed nodes, and returns the
// target names. Nodes that already carry the label are left alone.
func (d *Deployer) labelNodes(ctx context.Context, logger logr.Logger, opts *DeployOptions,
	key, value string, done *changes) ([]string, error) {
	targets := opts.NodeNames
	if len(targets) == 0 {
		all, err := d.Cluster.ListNodes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list nodes: %w", err)
		}
		selected, err := utils.SelectNodes(all, utils.NodesWithLabel(all, key, value), opts.NumNodes)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		targets = utils.NodeNames(selected)
	}

	for _, name := range targets {
		current, err := d.Cluster.GetNodeLabels(ctx, name)
		if err != nil {
			return targets, fmt.Errorf("failed to get node %s: %w", name, err)
		}
		previous, had := current[key]
		if had && previous == value {
			logger.V(2).Info("Node already labeled", "node", name)
			continue
		}
		if err := d.Cluster.LabelNode(ctx, name, key, value); err != nil {
			return targets, fmt.Errorf("failed to label node %s: %w", name, err)
		}
		done.labeledNodes = append(done.labeledNodes, name)
		if had {
			logger.Info("Overwriting node label", "node", name, "previous", previous)
			if done.overwritten == nil {
				done.overwritten = map[string]string{}
			}
			done.overwritten[name] = previous
		}
	}
	return targets, nil
}

// values returns the values file to install with and its content.
func (d *Deployer) values(ctx context.Context, logger logr.Logger, opts *DeployOptions,
	nodes []string, selector map[string]string) (string, []byte, error) {
	if opts.UserValues != "" {
		data, err := os.ReadFile(opts.UserValues)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read user values %s: %w", opts.UserValues, err)
		}
		logger.Info("Using user-specified values file", "path", opts.UserValues)
		return opts.UserValues, data, nil
	}

	cfg := d.deployConfig(ctx, opts, nodes)
	result := values.GenerateWithOptions(opts.ExampleType, cfg, opts.OutputDir, v1alpha1.ActionDeploy, selector,
		values.Options{Tuned: opts.Tuned, DefaultReplicas: true})
	if !result.Succeeded() {
		return "", nil, result.Err
	}
	data, err := os.ReadFile(result.Filepath)
	if err != nil {
		return "", nil, err
	}
	return result.Filepath, data, nil
}

// deployConfig derives the description to synthesize from, without mutating
// the caller's DeployConfig.
func (d *Deployer) deployConfig(ctx context.Context, opts *DeployOptions, nodes []string) *v1alpha1.DeployConfig {
	cfg := &v1alpha1.DeployConfig{}
	if opts.DeployConfig != nil {
		cfg = opts.DeployConfig.DeepCopy()
	}
	if cfg.Services == nil {
		cfg.Services = map[string]v1alpha1.ServiceConfig{}
	}
	if cfg.Node == 0 {
		cfg.Node = len(nodes)
	}
	if cfg.HuggingFaceHubAPIToken == "" {
		cfg.HuggingFaceHubAPIToken = opts.HFToken
	}
	if cfg.ModelUseHostPath == "" {
		cfg.ModelUseHostPath = opts.ModelDir
	}
	if _, ok := cfg.Services[v1alpha1.RerankServiceName]; opts.WithRerank && !ok {
		cfg.Services[v1alpha1.RerankServiceName] = v1alpha1.ServiceConfig{}
	}
	d.inspectNodes(ctx, cfg, nodes)
	return cfg
}

// inspectNodes fills in the device from the first target node when the config
// names none, and warns about target nodes without capacity for the device.
func (d *Deployer) inspectNodes(ctx context.Context, cfg *v1alpha1.DeployConfig, names []string) {
	if len(names) == 0 || (cfg.Device != "" && !accelerator.IsAcceleratorBearing(cfg.Device)) {
		return
	}
	logger := klog.FromContext(ctx)
	all, err := d.Cluster.ListNodes(ctx)
	if err != nil {
		logger.V(2).Info("Cannot inspect target nodes", "err", err)
		return
	}
	targets := lo.Filter(all, func(n corev1.Node, _ int) bool { return utils.Contains(names, n.Name) })

	if cfg.Device == "" {
		for i := range targets {
			if targets[i].Name == names[0] {
				cfg.Device = accelerator.DetectFamily(&targets[i])
			}
		}
	}
	family := accelerator.GetFamily(cfg.Device)
	if family == nil {
		return
	}
	for i := range targets {
		if family.Capacity(&targets[i]) == 0 {
			logger.Info("Target node has no allocatable devices", "node", targets[i].Name, "resource", family.Resource)
			continue
		}
		logger.V(2).Info("Target node", "node", targets[i].Name, "product", family.Product(&targets[i]))
	}
}

func (d *Deployer) rollback(ctx context.Context, logger logr.Logger, done *changes, cause error) error {
	if !d.RollbackOnFailure || (len(done.labeledNodes) == 0 && !done.namespaceCreated) {
		return cause
	}
	logger.Info("Deploy failed, rolling back", "labeledNodes", done.labeledNodes, "namespaceCreated", done.namespaceCreated)

	errs := []error{cause}
	for _, name := range done.labeledNodes {
		if previous, ok := done.overwritten[name]; ok {
			if err := d.Cluster.LabelNode(ctx, name, done.labelKey, previous); err != nil {
				errs = append(errs, fmt.Errorf("rollback: failed to restore label on node %s: %w", name, err))
			}
			continue
		}
		if err := d.Cluster.UnlabelNode(ctx, name, done.labelKey); err != nil {
			errs = append(errs, fmt.Errorf("rollback: failed to remove label from node %s: %w", name, err))
		}
	}
	if done.namespaceCreated {
		if err := d.Cluster.DeleteNamespace(ctx, done.namespace); err != nil {
			errs = append(errs, fmt.Errorf("rollback: failed to delete namespace %s: %w", done.namespace, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

type UninstallOptions struct {
	ReleaseName string
	Namespace   string
	// Label is "key" or "key=value". Only the key is used.
	Label     string
	NodeNames []string
}

func (d *Deployer) Uninstall(ctx context.Context, opts UninstallOptions) error {
	if opts.ReleaseName == "" {
		opts.ReleaseName = consts.DefaultReleaseName
	}
	if opts.Namespace == "" {
		opts.Namespace = consts.DefaultNamespace
	}
	logger := klog.FromContext(ctx).WithValues("release", opts.ReleaseName, "namespace", opts.Namespace)

	if opts.Label != "" {
		key, _, _ := strings.Cut(opts.Label, "=")
		if err := d.clearLabels(ctx, logger, key, opts.NodeNames); err != nil {
			return err
		}
	}

	if err := d.Helm.Uninstall(ctx, opts.ReleaseName, opts.Namespace); err != nil {
		return err
	}

	if opts.Namespace == consts.DefaultNamespace {
		logger.Info("Namespace is default, skipping deletion")
		return nil
	}
	if err := d.Cluster.DeleteNamespace(ctx, opts.Namespace); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", opts.Namespace, err)
	}
	return nil
}

// clearLabels removes key from the named nodes, or from every node.
func (d *Deployer) clearLabels(ctx context.Context, logger logr.Logger, key string, nodeNames []string) error {
	targets := nodeNames
	if len(targets) == 0 {
		all, err := d.Cluster.ListNodes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}
		targets = utils.NodeNames(all)
	}

	for _, name := range targets {
		current, err := d.Cluster.GetNodeLabels(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to get node %s: %w", name, err)
		}
		if _, ok := current[key]; !ok {
			logger.Info("Label not found on node, skipping", "node", name, "key", key)
			continue
		}
		if err := d.Cluster.UnlabelNode(ctx, name, key); err != nil {
			return fmt.Errorf("failed to remove label from node %s: %w", name, err)
		}
	}
	return nil
}
