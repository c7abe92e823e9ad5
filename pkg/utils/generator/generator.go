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

package generator

import (
	"fmt"
)

// TypedModifier applies one transformation stage to an object under construction.
type TypedModifier[C any, T any] func(ctx *C, obj *T) error

// Generate builds a fresh T by running the modifiers in order. The first failing
// modifier aborts generation and no partial object is returned.
func Generate[C any, T any](ctx *C, modifiers ...TypedModifier[C, T]) (*T, error) {
	var obj T
	for _, m := range modifiers {
		if err := m(ctx, &obj); err != nil {
			return nil, fmt.Errorf("failed to apply modifier: %w", err)
		}
	}
	return &obj, nil
}
