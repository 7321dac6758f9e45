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
	"go/token"

	"github.com/pkg/errors"
	"github.com/gx-org/backend/dtype"
)

// FoldInt folds a literal-only integer expression at compile time, the
// way build/ir/eval.go folds dimension arithmetic, but generalized over
// dtype.IntegerType instead of hard-coding int64. lower/access's
// rowMajorOffset calls this to collapse a chain of RangeDomain stride
// factors into a single literal instead of an unevaluated BinaryExpr tree
// (spec §4.7's row-major offset polynomial).
func FoldInt[T dtype.IntegerType](expr Expr) (T, error) {
	switch e := expr.(type) {
	case *Literal:
		v, ok := e.Value.(T)
		if ok {
			return v, nil
		}
		return 0, errors.Errorf("literal %v is not of the requested integer type", e.Value)
	case *UnaryExpr:
		x, err := FoldInt[T](e.X)
		if err != nil {
			return 0, err
		}
		if e.Op == token.SUB {
			return -x, nil
		}
		return 0, errors.Errorf("cannot fold unary operator %s", e.Op)
	case *BinaryExpr:
		x, err := FoldInt[T](e.X)
		if err != nil {
			return 0, err
		}
		y, err := FoldInt[T](e.Y)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case token.ADD:
			return x + y, nil
		case token.SUB:
			return x - y, nil
		case token.MUL:
			return x * y, nil
		case token.QUO:
			if y == 0 {
				return 0, errors.Errorf("division by zero while folding constant expression")
			}
			return x / y, nil
		default:
			return 0, errors.Errorf("cannot fold binary operator %s", e.Op)
		}
	default:
		return 0, errors.Errorf("cannot fold %T to a constant integer", expr)
	}
}
