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

import "github.com/gx-org/backend/dtype"

var (
	boolType  = &ScalarType{Component: dtype.Bool}
	int64Type = &ScalarType{Component: dtype.Int64}

	falseLit = &Literal{Typ: boolType, Value: false}
	trueLit  = &Literal{Typ: boolType, Value: true}
	zeroLit  = &Literal{Typ: int64Type, Value: int64(0)}
)

// BoolType returns the scalar Bool type.
func BoolType() *ScalarType { return boolType }

// IntType returns the scalar Int type (backed by the default 64-bit
// integer component).
func IntType() *ScalarType { return int64Type }

// FloatType returns the scalar Float type for a given floating-point
// component kind.
func FloatType(component dtype.Kind) *ScalarType { return &ScalarType{Component: component} }

// False returns the boolean literal false.
func False() *Literal { return falseLit }

// True returns the boolean literal true.
func True() *Literal { return trueLit }

// ZeroInt returns the integer literal 0, the neutral element used to seed
// a Sum accumulator (spec §4.6.5).
func ZeroInt() *Literal { return zeroLit }

// NeutralElement returns the literal neutral element for a reduction
// operator over the given component kind.
func NeutralElement(op ReduceOp, component dtype.Kind) *Literal {
	switch op {
	case Sum:
		return zeroOf(component)
	default:
		return zeroOf(component)
	}
}

func zeroOf(component dtype.Kind) *Literal {
	typ := &ScalarType{Component: component}
	switch component {
	case dtype.Float32, dtype.Float64, dtype.Bfloat16:
		return &Literal{Typ: typ, Value: float64(0)}
	case dtype.Bool:
		return &Literal{Typ: typ, Value: false}
	default:
		return &Literal{Typ: typ, Value: int64(0)}
	}
}

// IntLiteral returns an Int literal with the given value.
func IntLiteral(v int64) *Literal { return &Literal{Typ: int64Type, Value: v} }
