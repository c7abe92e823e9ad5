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

package resources

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kaito-project/examples-deployer/pkg/kubectl"
)

// ClusterClient implements the deployer's cluster control over the API server.
type ClusterClient struct {
	kubeClient client.Client
}

var _ kubectl.ClusterControl = &ClusterClient{}

func NewClusterClient(kubeClient client.Client) *ClusterClient {
	return &ClusterClient{kubeClient: kubeClient}
}

// NewClusterClientFromKubeconfig builds a client from an explicit kubeconfig
// path, falling back to the default loading rules when path is empty.
func NewClusterClientFromKubeconfig(path, kubeContext string) (*ClusterClient, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = path
	cfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules,
		&clientcmd.ConfigOverrides{CurrentContext: kubeContext}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	kubeClient, err := client.New(cfg, client.Options{Scheme: clientgoscheme.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewClusterClient(kubeClient), nil
}

// GetNode get kubernetes node object with a provided name
func GetNode(ctx context.Context, nodeName string, kubeClient client.Client) (*corev1.Node, error) {
	node := &corev1.Node{}
	if err := GetResource(ctx, nodeName, "", kubeClient, node); err != nil {
		return nil, err
	}
	return node, nil
}

// ListNodes get list of kubernetes nodes
func ListNodes(ctx context.Context, kubeClient client.Client, labelSelector client.MatchingLabels) (*corev1.NodeList, error) {
	nodeList := &corev1.NodeList{}

	err := kubeClient.List(ctx, nodeList, labelSelector)
	if err != nil {
		return nil, err
	}

	return nodeList, nil
}

// UpdateNodeLabels applies mutate to a fresh copy of the node and updates it,
// retrying on conflicts. mutate returns false when no update is needed.
func UpdateNodeLabels(ctx context.Context, nodeName string, kubeClient client.Client, mutate func(labels map[string]string) (map[string]string, bool)) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		freshNode, err := GetNode(ctx, nodeName, kubeClient)
		if err != nil {
			return err
		}
		labels, changed := mutate(freshNode.Labels)
		if !changed {
			return nil
		}
		freshNode.Labels = labels
		if err := kubeClient.Update(ctx, freshNode, &client.UpdateOptions{}); err != nil {
			klog.ErrorS(err, "cannot update node labels", "node", nodeName)
			return err
		}
		return nil
	})
}

func (c *ClusterClient) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := ListNodes(ctx, c.kubeClient, client.MatchingLabels{})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *ClusterClient) GetNodeLabels(ctx context.Context, name string) (map[string]string, error) {
	node, err := GetNode(ctx, name, c.kubeClient)
	if err != nil {
		return nil, err
	}
	return node.Labels, nil
}

func (c *ClusterClient) LabelNode(ctx context.Context, name, key, value string) error {
	klog.InfoS("UpdateNodeWithLabel", "nodeName", name, "labelKey", key, "labelValue", value)
	return UpdateNodeLabels(ctx, name, c.kubeClient, func(labels map[string]string) (map[string]string, bool) {
		if v, ok := labels[key]; ok && v == value {
			return labels, false
		}
		return lo.Assign(labels, map[string]string{key: value}), true
	})
}

func (c *ClusterClient) UnlabelNode(ctx context.Context, name, key string) error {
	klog.InfoS("RemoveNodeLabel", "nodeName", name, "labelKey", key)
	return UpdateNodeLabels(ctx, name, c.kubeClient, func(labels map[string]string) (map[string]string, bool) {
		if _, ok := labels[key]; !ok {
			return labels, false
		}
		return lo.OmitByKeys(labels, []string{key}), true
	})
}

func (c *ClusterClient) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	err := GetResource(ctx, namespace, "", c.kubeClient, &corev1.Namespace{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (c *ClusterClient) CreateNamespace(ctx context.Context, namespace string) error {
	err := CreateResource(ctx, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}, c.kubeClient)
	if apierrors.IsAlreadyExists(err) {
		return nil
	}
	return err
}

func (c *ClusterClient) DeleteNamespace(ctx context.Context, namespace string) error {
	return DeleteResource(ctx, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}, c.kubeClient)
}
