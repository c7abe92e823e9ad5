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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveValuesGenerated(t *testing.T) {
	before := testutil.ToFloat64(valuesGenerated.WithLabelValues("faqgen", ResultError))

	ObserveValuesGenerated("faqgen", nil)
	ObserveValuesGenerated("faqgen", errors.New("boom"))
	ObserveValuesGenerated("faqgen", errors.New("boom"))

	assert.Equal(t, before+2, testutil.ToFloat64(valuesGenerated.WithLabelValues("faqgen", ResultError)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(valuesGenerated.WithLabelValues("faqgen", ResultSuccess)), float64(1))
}

func TestObserveValuesGeneratedLabelsCanonicalType(t *testing.T) {
	unknown := testutil.ToFloat64(valuesGenerated.WithLabelValues(UnknownExample, ResultError))
	chatqna := testutil.ToFloat64(valuesGenerated.WithLabelValues("chatqna", ResultSuccess))

	ObserveValuesGenerated(" ChatQnA ", nil)
	ObserveValuesGenerated("audioqna", errors.New("unknown example type"))
	ObserveValuesGenerated("x-1b2c3d", errors.New("unknown example type"))

	assert.Equal(t, chatqna+1, testutil.ToFloat64(valuesGenerated.WithLabelValues("chatqna", ResultSuccess)))
	assert.Equal(t, unknown+2, testutil.ToFloat64(valuesGenerated.WithLabelValues(UnknownExample, ResultError)))

	path := filepath.Join(t.TempDir(), "labels.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `example="audioqna"`)
	assert.NotContains(t, string(data), `example=" ChatQnA "`)
}

func TestObserveExternalTool(t *testing.T) {
	before := testutil.ToFloat64(externalToolInvocations.WithLabelValues("helm", ResultSuccess))
	ObserveExternalTool("helm", 250*time.Millisecond, nil)
	assert.Equal(t, before+1, testutil.ToFloat64(externalToolInvocations.WithLabelValues("helm", ResultSuccess)))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(externalToolDuration), 1)
}

func TestWriteTextfile(t *testing.T) {
	ObserveValuesGenerated("chatqna", nil)

	path := filepath.Join(t.TempDir(), "examples_deployer.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "examples_deployer_values_generated_total")
	assert.Contains(t, string(data), `example="chatqna"`)

	assert.Error(t, WriteTextfile(filepath.Join(t.TempDir(), "missing", "metrics.prom")))
}
