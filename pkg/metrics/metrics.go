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

package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"

	// UnknownExample labels generations for example types that are not registered.
	UnknownExample = "unknown"
)

var (
	// Registry holds every metric of this tool. It is flushed to a
	// node-exporter textfile rather than served.
	Registry = prometheus.NewRegistry()

	valuesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: consts.MetricsSubsys,
			Name:      "values_generated_total",
			Help:      "Number of values documents generated per example and status (success, error)",
		},
		[]string{"example", "status"},
	)

	externalToolInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: consts.MetricsSubsys,
			Name:      "external_tool_invocations_total",
			Help:      "Number of kubectl and helm invocations per tool and result (success, error)",
		},
		[]string{"tool", "result"},
	)

	externalToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: consts.MetricsSubsys,
			Name:      "external_tool_duration_seconds",
			Help:      "Wall time of kubectl and helm invocations",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"tool"},
	)
)

func init() {
	Registry.MustRegister(valuesGenerated, externalToolInvocations, externalToolDuration)
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultSuccess
}

func exampleLabel(name string) string {
	t, err := v1alpha1.ParseExampleType(name)
	if err != nil {
		return UnknownExample
	}
	return string(t)
}

// ObserveValuesGenerated counts one values generation attempt. The example is
// labeled by its canonical type so arbitrary input cannot grow the series set.
func ObserveValuesGenerated(example string, err error) {
	valuesGenerated.WithLabelValues(exampleLabel(example), resultLabel(err)).Inc()
}

// ObserveExternalTool records one external tool invocation.
func ObserveExternalTool(tool string, elapsed time.Duration, err error) {
	externalToolInvocations.WithLabelValues(tool, resultLabel(err)).Inc()
	externalToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	klog.V(2).InfoS("Wrote metrics textfile", "path", path)
	return nil
}
