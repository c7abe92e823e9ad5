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
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"
	"k8s.io/klog/v2"
	"k8s.io/utils/ptr"

	"github.com/kaito-project/examples-deployer/api/v1alpha1"
	"github.com/kaito-project/examples-deployer/pkg/accelerator"
	"github.com/kaito-project/examples-deployer/pkg/model"
	"github.com/kaito-project/examples-deployer/pkg/utils/consts"
	"github.com/kaito-project/examples-deployer/pkg/utils/generator"
	"github.com/kaito-project/examples-deployer/pkg/utils/plugin"
)

var (
	ErrUnknownExampleType      = errors.New("unknown example type")
	ErrMissingConfiguration    = errors.New("deploy config is required")
	ErrOutputDirectoryNotFound = errors.New("output directory not found")
	ErrInvalidConfiguration    = errors.New("invalid deploy config")
)

// Options enrich the deploy config before synthesis. The caller's config is never mutated.
type Options struct {
	// Tuned folds the example's benchmark-tuned preset into the config.
	Tuned bool
	// DefaultReplicas fills in per-node default instance counts for every catalog service.
	DefaultReplicas bool
	// Device overrides the accelerator family declared in the config.
	Device string
}

// SynthesisContext is the read-only input shared by every synthesis stage.
type SynthesisContext struct {
	Example      model.Example
	ExampleType  v1alpha1.ExampleType
	Config       *v1alpha1.DeployConfig
	NodeSelector map[string]string
	Device       string
	Family       *accelerator.Family
	WithRerank   bool
	// Tuned is the example's tuned preset, nil unless Options.Tuned is set.
	Tuned *model.TunedParam
}

// stages run in order over the document under construction.
var stages = []generator.TypedModifier[SynthesisContext, Document]{
	SetNodeSelectors,
	SetRerank,
	SetReplicas,
	SetResources,
	SetTunedAccelerators,
	SetExtraCmdArgs,
	SetModelIDs,
	SetGlobal,
}

// Synthesize builds the values document and its file name for one example
// deployment. nodeSelector may be nil. An empty device falls back to the
// device declared in the config.
func Synthesize(exampleType string, cfg *v1alpha1.DeployConfig, nodeSelector map[string]string,
	device string, action v1alpha1.ActionType) (*Document, string, error) {
	return SynthesizeWithOptions(exampleType, cfg, nodeSelector, action, Options{Device: device})
}

func SynthesizeWithOptions(exampleType string, cfg *v1alpha1.DeployConfig, nodeSelector map[string]string,
	action v1alpha1.ActionType, opts Options) (*Document, string, error) {
	sctx, err := NewSynthesisContext(exampleType, cfg, nodeSelector, opts)
	if err != nil {
		return nil, "", err
	}

	klog.InfoS("Generating values", "example", sctx.ExampleType, "withRerank", sctx.WithRerank,
		"nodes", sctx.Config.NodeCount(), "device", sctx.Device, "nodeSelector", sctx.NodeSelector)

	doc, err := generator.Generate(sctx, stages...)
	if err != nil {
		return nil, "", err
	}
	return doc, Filename(sctx.ExampleType, sctx.Config.NodeCount(), sctx.Device, action, sctx.WithRerank), nil
}

// NewSynthesisContext resolves the example, enriches a copy of the config and
// validates it.
func NewSynthesisContext(exampleType string, cfg *v1alpha1.DeployConfig, nodeSelector map[string]string,
	opts Options) (*SynthesisContext, error) {
	t, err := v1alpha1.ParseExampleType(exampleType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownExampleType, err)
	}
	example, ok := plugin.Examples.Get(string(t))
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnknownExampleType, exampleType)
	}
	if cfg == nil {
		return nil, ErrMissingConfiguration
	}

	cfg = cfg.DeepCopy()
	if cfg.Services == nil {
		cfg.Services = map[string]v1alpha1.ServiceConfig{}
	}
	if opts.DefaultReplicas {
		cfg = withDefaultReplicas(cfg, example.GetServiceCatalog())
	}
	var tuned *model.TunedParam
	if opts.Tuned {
		tuned = example.GetTunedParameters()
		cfg = model.ApplyTuned(cfg, tuned)
	}
	if errs := cfg.Validate(context.Background()); errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, errs)
	}

	device := opts.Device
	if device == "" {
		device = cfg.DeviceOrDefault()
	}
	return &SynthesisContext{
		Example:      example,
		ExampleType:  t,
		Config:       cfg,
		NodeSelector: lo.Assign(nodeSelector),
		Device:       device,
		Family:       accelerator.GetFamily(device),
		WithRerank:   example.SupportsRerank() && cfg.RerankEnabled(),
		Tuned:        tuned,
	}, nil
}

// withDefaultReplicas declares every catalog service the config leaves out and
// fills in instance counts the config leaves unset.
func withDefaultReplicas(cfg *v1alpha1.DeployConfig, catalog *model.ServiceCatalog) *v1alpha1.DeployConfig {
	for name, def := range catalog.DefaultServices(cfg.NodeCount(), cfg.RerankEnabled()) {
		svc, ok := cfg.Services[name]
		if !ok {
			cfg.Services[name] = def
			continue
		}
		if !svc.InstanceNum.Set && !svc.IsDisabled() {
			svc.InstanceNum = def.InstanceNum
		}
		if svc.Engine == "" {
			svc.Engine = def.Engine
		}
		cfg.Services[name] = svc
	}
	return cfg
}

// Filename returns "<example>-<nodes>-<device>-<action><rerank>values.yaml".
func Filename(exampleType v1alpha1.ExampleType, nodes int, device string, action v1alpha1.ActionType, withRerank bool) string {
	rerankSuffix := ""
	if withRerank {
		rerankSuffix = "with-rerank-"
	}
	if device == "" {
		device = v1alpha1.DefaultDevice
	}
	return fmt.Sprintf("%s-%d-%s-%s%s%s", exampleType, nodes, device, action.FileSuffix(), rerankSuffix, consts.ValuesFileSuffix)
}

// forEachService visits the declared services in name order.
func forEachService(ctx *SynthesisContext, fn func(name string, svc *v1alpha1.ServiceConfig)) {
	for _, name := range ctx.Config.ServiceNames() {
		svc := ctx.Config.Services[name]
		fn(name, &svc)
	}
}

// SetNodeSelectors attaches the node selector to every declared service.
func SetNodeSelectors(ctx *SynthesisContext, doc *Document) error {
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		locate(doc, name, svc).NodeSelector = copySelector(ctx.NodeSelector)
	})
	return nil
}

func copySelector(selector map[string]string) map[string]string {
	if len(selector) == 0 {
		return nil
	}
	return lo.Assign(selector)
}

// SetRerank targets an enabled rerank service, or disables it and swaps the
// backend image for the rerank-free variant.
func SetRerank(ctx *SynthesisContext, doc *Document) error {
	rerank := doc.Entry(v1alpha1.RerankServiceName)
	if ctx.WithRerank {
		sel := Merge(FirstWriteWins,
			OptionOf(rerank.NodeSelector, rerank.NodeSelector != nil),
			Some(copySelector(ctx.NodeSelector)))
		rerank.NodeSelector = sel.Value
		return nil
	}

	enabled := Merge(FirstWriteWins, OptionOf(rerank.Enabled, rerank.Enabled != nil), Some(ptr.To(false)))
	rerank.Enabled = enabled.Value
	if image := ctx.Example.GetServiceCatalog().NoRerankImage; image != "" {
		doc.Image = &ImageValues{Repository: image}
	}
	return nil
}

// SetReplicas copies every declared positive instance count.
func SetReplicas(ctx *SynthesisContext, doc *Document) error {
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		if n, ok := svc.InstanceNum.Positive(); ok {
			locate(doc, name, svc).ReplicaCount = ptr.To(n)
		}
	})
	return nil
}

// SetResources emits limits and requests per service. A multi-card request on
// an accelerator family takes precedence over cpu and memory.
func SetResources(ctx *SynthesisContext, doc *Document) error {
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		if res := resourcesFor(ctx.Family, svc); res != nil {
			locate(doc, name, svc).Resources = res
		}
	})
	return nil
}

func resourcesFor(family *accelerator.Family, svc *v1alpha1.ServiceConfig) *ResourceValues {
	if cards, ok := svc.CardsPerInstance.Positive(); family != nil && ok && cards > 1 {
		return &ResourceValues{
			Limits:   map[string]interface{}{string(family.Resource): cards},
			Requests: map[string]interface{}{string(family.Resource): cards},
		}
	}

	limits := map[string]interface{}{}
	requests := map[string]interface{}{}
	if svc.CoresPerInstance != "" {
		limits["cpu"] = string(svc.CoresPerInstance)
		requests["cpu"] = string(svc.CoresPerInstance)
	}
	if svc.MemoryCapacity != "" {
		limits["memory"] = string(svc.MemoryCapacity)
		requests["memory"] = string(svc.MemoryCapacity)
	}
	if len(limits) == 0 {
		return nil
	}
	return &ResourceValues{Limits: limits, Requests: requests}
}

// SetTunedAccelerators gives services of the tuned preset their accelerator
// count, replacing cpu and memory. A multi-card request in the config keeps
// precedence, and disabled services are left alone.
func SetTunedAccelerators(ctx *SynthesisContext, doc *Document) error {
	if ctx.Tuned == nil || ctx.Family == nil {
		return nil
	}
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		shape, ok := ctx.Tuned.Resources[name]
		if !ok || shape.Cards < 1 || svc.IsDisabled() {
			return
		}
		if name == v1alpha1.RerankServiceName && !ctx.WithRerank {
			return
		}
		if cards, ok := svc.CardsPerInstance.Positive(); ok && cards > 1 {
			return
		}
		resource := string(ctx.Family.Resource)
		locate(doc, name, svc).Resources = &ResourceValues{
			Limits:   map[string]interface{}{resource: shape.Cards},
			Requests: map[string]interface{}{resource: shape.Cards},
		}
	})
	return nil
}

// SetExtraCmdArgs turns tuning knobs into flag/value pairs in a fixed order.
func SetExtraCmdArgs(ctx *SynthesisContext, doc *Document) error {
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		if args := extraCmdArgs(svc); len(args) > 0 {
			locate(doc, name, svc).ExtraCmdArgs = args
		}
	})
	return nil
}

func extraCmdArgs(svc *v1alpha1.ServiceConfig) []string {
	var args []string
	for _, p := range v1alpha1.TuningParameters {
		if v, ok := svc.Tuning(p).Positive(); ok {
			args = append(args, p.Flag(), strconv.Itoa(v))
		}
	}
	return args
}

// SetModelIDs wires model identifiers into the llm, embedding and rerank services.
// Other services and disabled services are skipped.
func SetModelIDs(ctx *SynthesisContext, doc *Document) error {
	forEachService(ctx, func(name string, svc *v1alpha1.ServiceConfig) {
		if svc.ModelID == "" || svc.IsDisabled() {
			return
		}
		set, ok := modelIDSetters[v1alpha1.RoleForService(name)]
		if !ok {
			klog.V(4).InfoS("Skipping model id for service without a model role", "service", name)
			return
		}
		entry := locate(doc, name, svc)
		if entry.Enabled != nil && !*entry.Enabled {
			return
		}
		set(entry, svc.ModelID)
	})
	return nil
}

// SetGlobal carries the hub token and model mount path verbatim.
func SetGlobal(ctx *SynthesisContext, doc *Document) error {
	doc.Global = GlobalValues{
		HuggingFaceHubAPIToken: ctx.Config.HuggingFaceHubAPIToken,
		ModelUseHostPath:       ctx.Config.ModelUseHostPath,
	}
	return nil
}
