// Copyright 2024 Google LLC
//
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

package ir

import (
	"github.com/google/go-cmp/cmp"
)

// Equal reports whether two nodes are structurally equal: same shape,
// same leaf values, set types compared by identity (spec §3.1's "type
// equality is... nominal on set and element names"). It underlies the
// idempotence check of spec §8's testable property 4.
func Equal(a, b Node) bool {
	return cmp.Equal(a, b, cmp.Comparer(setTypeIdentity), cmp.Comparer(elementTypeIdentity))
}

// setTypeIdentity compares sets by pointer identity: two set types with
// the same name declared in different scopes are not the same set.
func setTypeIdentity(a, b *SetType) bool { return a == b }

func elementTypeIdentity(a, b *ElementType) bool { return a == b }
