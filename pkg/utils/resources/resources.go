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

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	"k8s.io/klog/v2"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// retriable reports whether err may clear up on its own.
func retriable(err error) bool {
	return !apierrors.IsNotFound(err) && !apierrors.IsAlreadyExists(err) &&
		!apierrors.IsForbidden(err) && !apierrors.IsInvalid(err)
}

// CreateResource creates the object, retrying transient API errors.
func CreateResource(ctx context.Context, resource client.Object, kubeClient client.Client) error {
	klog.InfoS("CreateResource", "kind", kindOf(resource), "object", klog.KObj(resource))
	return retry.OnError(retry.DefaultBackoff, retriable, func() error {
		return kubeClient.Create(ctx, resource, &client.CreateOptions{})
	})
}

func GetResource(ctx context.Context, name, namespace string, kubeClient client.Client, resource client.Object) error {
	return retry.OnError(retry.DefaultBackoff, retriable, func() error {
		return kubeClient.Get(ctx, client.ObjectKey{Name: name, Namespace: namespace}, resource, &client.GetOptions{})
	})
}

// DeleteResource deletes the object in the background. An object that is
// already gone is not an error.
func DeleteResource(ctx context.Context, resource client.Object, kubeClient client.Client) error {
	klog.InfoS("DeleteResource", "kind", kindOf(resource), "object", klog.KObj(resource))
	err := retry.OnError(retry.DefaultBackoff, retriable, func() error {
		return kubeClient.Delete(ctx, resource, client.PropagationPolicy(metav1.DeletePropagationBackground))
	})
	return client.IgnoreNotFound(err)
}

func kindOf(obj client.Object) string {
	switch obj.(type) {
	case *corev1.Namespace:
		return "Namespace"
	case *corev1.Node:
		return "Node"
	default:
		return obj.GetObjectKind().GroupVersionKind().Kind
	}
}
