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

package kubectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/runner"
)

// ClusterControl is the cluster surface the deploy workflows depend on.
type ClusterControl interface {
	ListNodes(ctx context.Context) ([]corev1.Node, error)
	GetNodeLabels(ctx context.Context, name string) (map[string]string, error)
	// LabelNode sets key=value on the node, overwriting an existing value.
	LabelNode(ctx context.Context, name, key, value string) error
	UnlabelNode(ctx context.Context, name, key string) error
	NamespaceExists(ctx context.Context, namespace string) (bool, error)
	CreateNamespace(ctx context.Context, namespace string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Client implements ClusterControl by shelling out to kubectl.
type Client struct {
	runner runner.Interface
	binary string
}

var _ ClusterControl = &Client{}

func New(r runner.Interface, binary string) *Client {
	if binary == "" {
		binary = consts.KubectlBinary
	}
	return &Client{runner: r, binary: binary}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.runner.Run(ctx, c.binary, args...)
}

func (c *Client) ListNodes(ctx context.Context) ([]corev1.Node, error) {
	out, err := c.run(ctx, "get", "nodes", "-o", "json")
	if err != nil {
		return nil, err
	}
	list := &corev1.NodeList{}
	if err := json.Unmarshal(out, list); err != nil {
		return nil, fmt.Errorf("failed to decode node list: %w", err)
	}
	return list.Items, nil
}

func (c *Client) GetNodeLabels(ctx context.Context, name string) (map[string]string, error) {
	out, err := c.run(ctx, "get", "node", name, "-o", "json")
	if err != nil {
		return nil, err
	}
	node := &corev1.Node{}
	if err := json.Unmarshal(out, node); err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", name, err)
	}
	return node.Labels, nil
}

func (c *Client) LabelNode(ctx context.Context, name, key, value string) error {
	klog.InfoS("Labeling node", "node", name, "label", key+"="+value)
	_, err := c.run(ctx, "label", "node", name, key+"="+value, "--overwrite")
	return err
}

func (c *Client) UnlabelNode(ctx context.Context, name, key string) error {
	klog.InfoS("Removing node label", "node", name, "key", key)
	_, err := c.run(ctx, "label", "node", name, key+"-")
	return err
}

func (c *Client) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := c.run(ctx, "get", "namespace", namespace)
	if err == nil {
		return true, nil
	}
	var failure *runner.ExternalToolFailure
	if errors.As(err, &failure) && strings.Contains(failure.Stderr, "NotFound") {
		return false, nil
	}
	return false, err
}

func (c *Client) CreateNamespace(ctx context.Context, namespace string) error {
	klog.InfoS("Creating namespace", "namespace", namespace)
	_, err := c.run(ctx, "create", "namespace", namespace)
	return err
}

func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	klog.InfoS("Deleting namespace", "namespace", namespace)
	_, err := c.run(ctx, "delete", "namespace", namespace)
	return err
}
