// Copyright 2025 Google LLC
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

package affine

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrOverflow is returned when an affine computation leaves the int64 range.
	ErrOverflow = errors.New("affine arithmetic overflow")

	// ErrUnbounded is returned when a relation cannot be bounded
	// by a box of constant size.
	ErrUnbounded = errors.New("relation not bounded by a constant size box")
)

// Expr is an affine expression Const + sum(Coeffs[i] * var_i).
// A missing coefficient is zero.
type Expr struct {
	Coeffs []int64
	Const  int64
}

// NewExpr returns an expression over n variables.
func NewExpr(n int, cst int64, coeffs ...int64) Expr {
	e := Expr{Coeffs: make([]int64, n), Const: cst}
	copy(e.Coeffs, coeffs)
	return e
}

// Coeff returns the coefficient of the ith variable.
func (e Expr) Coeff(i int) int64 {
	if i >= len(e.Coeffs) {
		return 0
	}
	return e.Coeffs[i]
}

// Clone returns a deep copy of the expression.
func (e Expr) Clone() Expr {
	return Expr{Coeffs: slices.Clone(e.Coeffs), Const: e.Const}
}

// Equal returns true if both expressions are the same.
func (e Expr) Equal(o Expr) bool {
	if e.Const != o.Const {
		return false
	}
	n := max(len(e.Coeffs), len(o.Coeffs))
	for i := range n {
		if e.Coeff(i) != o.Coeff(i) {
			return false
		}
	}
	return true
}

// IsConst returns true if the expression does not depend on any variable.
func (e Expr) IsConst() bool {
	for _, c := range e.Coeffs {
		if c != 0 {
			return false
		}
	}
	return true
}

func (e Expr) resize(n int) Expr {
	r := Expr{Coeffs: make([]int64, n), Const: e.Const}
	copy(r.Coeffs, e.Coeffs)
	return r
}

// Add returns e+o.
func (e Expr) Add(o Expr) (Expr, error) {
	r := e.resize(max(len(e.Coeffs), len(o.Coeffs)))
	var ok bool
	for i := range r.Coeffs {
		if r.Coeffs[i], ok = addInt(r.Coeffs[i], o.Coeff(i)); !ok {
			return Expr{}, ErrOverflow
		}
	}
	if r.Const, ok = addInt(r.Const, o.Const); !ok {
		return Expr{}, ErrOverflow
	}
	return r, nil
}

// Scale returns f*e.
func (e Expr) Scale(f int64) (Expr, error) {
	r := e.resize(len(e.Coeffs))
	var ok bool
	for i, c := range r.Coeffs {
		if r.Coeffs[i], ok = mulInt(c, f); !ok {
			return Expr{}, ErrOverflow
		}
	}
	if r.Const, ok = mulInt(r.Const, f); !ok {
		return Expr{}, ErrOverflow
	}
	return r, nil
}

// String returns a representation of the expression given
// the name of its variables.
func (e Expr) String(names []string) string {
	var b strings.Builder
	for i, c := range e.Coeffs {
		if c == 0 {
			continue
		}
		name := fmt.Sprintf("v%d", i)
		if i < len(names) {
			name = names[i]
		}
		writeTerm(&b, c, name)
	}
	if e.Const != 0 || b.Len() == 0 {
		writeTerm(&b, e.Const, "")
	}
	return b.String()
}

func writeTerm(b *strings.Builder, c int64, name string) {
	neg := c < 0
	abs := c
	if neg {
		abs = -c
	}
	switch {
	case b.Len() == 0 && neg:
		b.WriteString("-")
	case b.Len() > 0 && neg:
		b.WriteString(" - ")
	case b.Len() > 0:
		b.WriteString(" + ")
	}
	switch {
	case name == "":
		fmt.Fprintf(b, "%d", abs)
	case abs == 1:
		b.WriteString(name)
	default:
		fmt.Fprintf(b, "%d%s", abs, name)
	}
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}

func subInt(a, b int64) (int64, bool) {
	if b == math.MinInt64 {
		return 0, false
	}
	return addInt(a, -b)
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// termRange returns the range of c*x for x in [lo, hi].
func termRange(c, lo, hi int64) (minV, maxV int64, ok bool) {
	a, okA := mulInt(c, lo)
	b, okB := mulInt(c, hi)
	if !okA || !okB {
		return 0, 0, false
	}
	return min(a, b), max(a, b), true
}
