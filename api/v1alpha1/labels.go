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

package v1alpha1

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultEngine is the serving engine used by the llm role when none is declared.
	DefaultEngine = "tgi"

	// DefaultDevice is the accelerator family tag used when none is declared.
	DefaultDevice = "unknown"

	// Well-known service names that carry a role.
	BackendServiceName   = "backend"
	LLMServiceName       = "llm"
	EmbeddingServiceName = "tei"
	RerankServiceName    = "teirerank"
)

// ExampleType identifies one of the supported example pipelines.
type ExampleType string

const (
	ExampleChatQnA   ExampleType = "chatqna"
	ExampleDocSum    ExampleType = "docsum"
	ExampleFaqGen    ExampleType = "faqgen"
	ExampleCodeGen   ExampleType = "codegen"
	ExampleCodeTrans ExampleType = "codetrans"
)

// ExampleTypes lists every supported example pipeline.
var ExampleTypes = []ExampleType{
	ExampleChatQnA,
	ExampleDocSum,
	ExampleFaqGen,
	ExampleCodeGen,
	ExampleCodeTrans,
}

// UnknownExampleTypeError is returned when an example identifier is not recognized.
type UnknownExampleTypeError struct {
	Name string
}

func (e *UnknownExampleTypeError) Error() string {
	return fmt.Sprintf("unknown example type %q", e.Name)
}

// ParseExampleType resolves an example identifier, case-insensitively.
func ParseExampleType(name string) (ExampleType, error) {
	normalized := ExampleType(strings.ToLower(strings.TrimSpace(name)))
	for _, t := range ExampleTypes {
		if t == normalized {
			return t, nil
		}
	}
	return "", &UnknownExampleTypeError{Name: name}
}

// ActionType only influences output file naming.
type ActionType string

const (
	ActionDeploy ActionType = "deploy"
	ActionUpdate ActionType = "update"
	ActionOther  ActionType = "other"
)

// ParseActionType accepts "deploy", "update" or the legacy integer codes 0 and 1.
// Anything else resolves to ActionOther.
func ParseActionType(s string) ActionType {
	s = strings.ToLower(strings.TrimSpace(s))
	if code, err := strconv.Atoi(s); err == nil {
		switch code {
		case 0:
			return ActionDeploy
		case 1:
			return ActionUpdate
		default:
			return ActionOther
		}
	}
	switch ActionType(s) {
	case ActionDeploy:
		return ActionDeploy
	case ActionUpdate:
		return ActionUpdate
	default:
		return ActionOther
	}
}

// FileSuffix is the file name fragment for the action.
func (a ActionType) FileSuffix() string {
	switch a {
	case ActionDeploy:
		return "deploy-"
	case ActionUpdate:
		return "update-"
	default:
		return ""
	}
}

// Role is the abstract part a service plays in a pipeline. It decides where the
// service's settings land in the values document.
type Role string

const (
	RoleBackend   Role = "backend"
	RoleLLM       Role = "llm"
	RoleEmbedding Role = "embedding"
	RoleRerank    Role = "rerank"
	RoleGeneric   Role = "generic"
)

var serviceRoles = map[string]Role{
	BackendServiceName:   RoleBackend,
	LLMServiceName:       RoleLLM,
	EmbeddingServiceName: RoleEmbedding,
	RerankServiceName:    RoleRerank,
}

// RoleForService maps a service name to its role by exact name match.
func RoleForService(name string) Role {
	if role, ok := serviceRoles[name]; ok {
		return role
	}
	return RoleGeneric
}
