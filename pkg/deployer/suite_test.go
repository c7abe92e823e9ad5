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
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kaito-project/examples-deployer/pkg/helm"
	_ "github.com/kaito-project/examples-deployer/presets/examples/all"
)

func TestDeployer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Deployer Suite")
}

// fakeCluster is an in-memory ClusterControl.
type fakeCluster struct {
	nodes      []corev1.Node
	namespaces map[string]bool
	calls      []string
	failOn     map[string]error
}

func newFakeCluster(nodes ...corev1.Node) *fakeCluster {
	return &fakeCluster{nodes: nodes, namespaces: map[string]bool{"default": true}, failOn: map[string]error{}}
}

func (f *fakeCluster) record(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

func (f *fakeCluster) node(name string) (*corev1.Node, error) {
	for i := range f.nodes {
		if f.nodes[i].Name == name {
			return &f.nodes[i], nil
		}
	}
	return nil, fmt.Errorf("node %s not found", name)
}

func (f *fakeCluster) ListNodes(context.Context) ([]corev1.Node, error) {
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return append([]corev1.Node(nil), f.nodes...), nil
}

func (f *fakeCluster) GetNodeLabels(_ context.Context, name string) (map[string]string, error) {
	n, err := f.node(name)
	if err != nil {
		return nil, err
	}
	return n.Labels, nil
}

func (f *fakeCluster) LabelNode(_ context.Context, name, key, value string) error {
	if err := f.record("label " + name); err != nil {
		return err
	}
	n, err := f.node(name)
	if err != nil {
		return err
	}
	if n.Labels == nil {
		n.Labels = map[string]string{}
	}
	n.Labels[key] = value
	return nil
}

func (f *fakeCluster) UnlabelNode(_ context.Context, name, key string) error {
	if err := f.record("unlabel " + name); err != nil {
		return err
	}
	n, err := f.node(name)
	if err != nil {
		return err
	}
	delete(n.Labels, key)
	return nil
}

func (f *fakeCluster) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	return f.namespaces[namespace], nil
}

func (f *fakeCluster) CreateNamespace(_ context.Context, namespace string) error {
	if err := f.record("create ns " + namespace); err != nil {
		return err
	}
	f.namespaces[namespace] = true
	return nil
}

func (f *fakeCluster) DeleteNamespace(_ context.Context, namespace string) error {
	if err := f.record("delete ns " + namespace); err != nil {
		return err
	}
	delete(f.namespaces, namespace)
	return nil
}

// fakeHelm records chart operations.
type fakeHelm struct {
	repos        []string
	installs     []helm.InstallOptions
	uninstalls   []string
	repoErr      error
	installErr   error
	uninstallErr error
}

func (f *fakeHelm) RepoAdd(_ context.Context, name, url string) error {
	f.repos = append(f.repos, name+"="+url)
	return f.repoErr
}

func (f *fakeHelm) Install(_ context.Context, opts helm.InstallOptions) error {
	f.installs = append(f.installs, opts)
	return f.installErr
}

func (f *fakeHelm) Uninstall(_ context.Context, release, namespace string) error {
	f.uninstalls = append(f.uninstalls, namespace+"/"+release)
	return f.uninstallErr
}

func testNode(name string, labels map[string]string) corev1.Node {
	return corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
}
