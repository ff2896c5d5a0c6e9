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

// MayIntersect returns false if it can prove that, for the same values of
// the dimensions fixed by level, a and b never access a common element.
// The other variables of a and b range independently.
func MayIntersect(a, b *BasicMap, level Level) bool {
	if !a.Space.Equal(b.Space) || len(a.Out) != len(b.Out) {
		return true
	}
	for d := range a.Out {
		if disjointAlong(a, b, level, d) {
			return false
		}
	}
	return true
}

// disjointAlong returns true if a.Out[d] = b.Out[d] has no solution.
// The equation is rewritten as sum(a_i x_i) - sum(b_j y_j) = b.Const - a.Const
// and then checked with a GCD test and a bounds test.
func disjointAlong(a, b *BasicMap, level Level, d int) bool {
	ea, eb := a.Out[d], b.Out[d]
	rhs, ok := subInt(eb.Const, ea.Const)
	if !ok {
		return false
	}
	var g, lo, hi int64
	symbolic := false
	addFree := func(c int64, v Dim) bool {
		tMin, tMax, ok := termRange(c, v.Lo, v.Hi)
		if !ok {
			return false
		}
		g = gcd(g, c)
		var okLo, okHi bool
		lo, okLo = addInt(lo, tMin)
		hi, okHi = addInt(hi, tMax)
		return okLo && okHi
	}
	n := a.Space.Len()
	for i := range n {
		v := a.Space.Dim(i)
		ca, cb := ea.Coeff(i), eb.Coeff(i)
		if level.Fixes(v.Kind) {
			diff, ok := subInt(ca, cb)
			if !ok {
				return false
			}
			if diff != 0 {
				symbolic = true
				g = gcd(g, diff)
			}
			continue
		}
		if ca != 0 && !addFree(ca, v) {
			return false
		}
		if cb != 0 && !addFree(-cb, v) {
			return false
		}
	}
	for i, ex := range a.Exists {
		if c := ea.Coeff(n + i); c != 0 && !addFree(c, ex) {
			return false
		}
	}
	for i, ex := range b.Exists {
		if c := eb.Coeff(n + i); c != 0 && !addFree(-c, ex) {
			return false
		}
	}
	if g == 0 {
		return rhs != 0
	}
	if rhs%g != 0 {
		return true
	}
	if symbolic {
		return false
	}
	return rhs < lo || rhs > hi
}
