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
	"strings"
)

// Level selects the schedule dimensions kept symbolic when bounding a relation.
type Level int

const (
	// SharedLevel fixes the shared dimensions:
	// a box at this level is the footprint of one shared tile iteration.
	SharedLevel Level = iota
	// ThreadLevel fixes the shared and the thread dimensions:
	// a box at this level is the footprint of one thread.
	ThreadLevel
)

// Fixes returns true if dimensions of kind k are fixed at this level.
func (l Level) Fixes(k DimKind) bool {
	switch l {
	case SharedLevel:
		return k == Shared
	case ThreadLevel:
		return k == Shared || k == Thread
	}
	return false
}

func (l Level) String() string {
	switch l {
	case SharedLevel:
		return "shared"
	case ThreadLevel:
		return "thread"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

type (
	// Bound is the bound of a box along one array dimension.
	// The elements covered are [Offset, Offset+Size).
	// Offset only depends on the dimensions fixed by the level of the box.
	Bound struct {
		Offset Expr
		Size   int64
	}

	// Box is a rectangular over-approximation of the elements
	// accessed by a relation for fixed values of some of its dimensions.
	Box struct {
		Space  *Space
		Level  Level
		Bounds []Bound
		volume int64
	}
)

// interval returns the bounds of an expression of a basic map
// when the dimensions fixed by level are kept symbolic.
func (bm *BasicMap) interval(level Level, out Expr) (fixed Expr, lo, hi int64, err error) {
	n := bm.Space.Len()
	fixed = Expr{Coeffs: make([]int64, n)}
	lo, hi = out.Const, out.Const
	for i := range bm.NumVars() {
		c := out.Coeff(i)
		if c == 0 {
			continue
		}
		v := bm.Var(i)
		if i < n && level.Fixes(v.Kind) {
			fixed.Coeffs[i] = c
			continue
		}
		tMin, tMax, ok := termRange(c, v.Lo, v.Hi)
		if !ok {
			return Expr{}, 0, 0, ErrOverflow
		}
		var okLo, okHi bool
		lo, okLo = addInt(lo, tMin)
		hi, okHi = addInt(hi, tMax)
		if !okLo || !okHi {
			return Expr{}, 0, 0, ErrOverflow
		}
	}
	return fixed, lo, hi, nil
}

func sameCoeffs(a, b Expr) bool {
	n := max(len(a.Coeffs), len(b.Coeffs))
	for i := range n {
		if a.Coeff(i) != b.Coeff(i) {
			return false
		}
	}
	return true
}

// Box computes the smallest box containing the elements accessed by
// the map for fixed values of the dimensions selected by level.
// ErrUnbounded is returned if the map is empty or if the position of
// the accessed elements relative to each other depends on a fixed
// dimension, in which case no box of constant size exists.
func (m *Map) Box(level Level) (*Box, error) {
	if len(m.parts) == 0 {
		return nil, ErrUnbounded
	}
	box := &Box{Space: m.space, Level: level, Bounds: make([]Bound, m.outDim), volume: 1}
	for d := range m.outDim {
		var offset Expr
		var lo, hi int64
		for i, bm := range m.parts {
			fixed, bmLo, bmHi, err := bm.interval(level, bm.Out[d])
			if err != nil {
				return nil, err
			}
			if i == 0 {
				offset, lo, hi = fixed, bmLo, bmHi
				continue
			}
			if !sameCoeffs(offset, fixed) {
				return nil, ErrUnbounded
			}
			lo, hi = min(lo, bmLo), max(hi, bmHi)
		}
		size, ok := subInt(hi, lo)
		if ok {
			size, ok = addInt(size, 1)
		}
		if !ok {
			return nil, ErrOverflow
		}
		offset.Const = lo
		box.Bounds[d] = Bound{Offset: offset, Size: size}
		if box.volume, ok = mulInt(box.volume, size); !ok {
			return nil, ErrOverflow
		}
	}
	return box, nil
}

// Volume returns the number of elements in the box.
func (b *Box) Volume() int64 {
	return b.volume
}

// Rank returns the number of dimensions of the box.
func (b *Box) Rank() int {
	return len(b.Bounds)
}

// DependsOn returns true if the offset of the box changes with
// the ith schedule dimension.
func (b *Box) DependsOn(i int) bool {
	for _, bound := range b.Bounds {
		if bound.Offset.Coeff(i) != 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the box.
func (b *Box) Clone() *Box {
	c := &Box{Space: b.Space, Level: b.Level, Bounds: make([]Bound, len(b.Bounds)), volume: b.volume}
	for i, bound := range b.Bounds {
		c.Bounds[i] = Bound{Offset: bound.Offset.Clone(), Size: bound.Size}
	}
	return c
}

// Equal returns true if both boxes have the same bounds.
func (b *Box) Equal(o *Box) bool {
	if b.Level != o.Level || len(b.Bounds) != len(o.Bounds) {
		return false
	}
	for i, bound := range b.Bounds {
		if bound.Size != o.Bounds[i].Size || !bound.Offset.Equal(o.Bounds[i].Offset) {
			return false
		}
	}
	return true
}

func (b *Box) String() string {
	names := b.Space.Names()
	bounds := make([]string, len(b.Bounds))
	for i, bound := range b.Bounds {
		bounds[i] = fmt.Sprintf("[%s; %d]", bound.Offset.String(names), bound.Size)
	}
	return strings.Join(bounds, "")
}
