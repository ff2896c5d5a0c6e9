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

	"github.com/pkg/errors"
)

type (
	// BasicMap is an affine function from a schedule space to array elements.
	// Exists are bounded local variables: a basic map with existential
	// variables may access more than one element per point of its space.
	BasicMap struct {
		Space  *Space
		Exists []Dim
		// Out has one expression per output dimension.
		// Coefficients index the space dimensions followed by Exists.
		Out []Expr
	}

	// Map is a finite union of basic maps sharing the same space
	// and the same number of output dimensions.
	Map struct {
		space  *Space
		outDim int
		parts  []*BasicMap
	}
)

// NumVars returns the number of variables an output expression can refer to.
func (bm *BasicMap) NumVars() int {
	return bm.Space.Len() + len(bm.Exists)
}

// Var returns the ith variable of the basic map.
func (bm *BasicMap) Var(i int) Dim {
	if i < bm.Space.Len() {
		return bm.Space.Dim(i)
	}
	return bm.Exists[i-bm.Space.Len()]
}

func (bm *BasicMap) names() []string {
	names := bm.Space.Names()
	for _, ex := range bm.Exists {
		names = append(names, ex.Name)
	}
	return names
}

// Validate checks that the basic map is consistent with a space and a number
// of output dimensions.
func (bm *BasicMap) Validate(space *Space, outDim int) error {
	if !bm.Space.Equal(space) {
		return errors.Errorf("access domain %s does not match schedule space %s", bm.Space, space)
	}
	if len(bm.Out) != outDim {
		return errors.Errorf("access has %d output dimension(s) but %d are required", len(bm.Out), outDim)
	}
	for _, ex := range bm.Exists {
		if ex.Lo > ex.Hi {
			return errors.Errorf("empty existential variable %s: [%d, %d]", ex.Name, ex.Lo, ex.Hi)
		}
	}
	numVars := bm.NumVars()
	for i, out := range bm.Out {
		if len(out.Coeffs) > numVars {
			return errors.Errorf("output dimension %d refers to %d variable(s) but only %d are defined", i, len(out.Coeffs), numVars)
		}
	}
	return nil
}

// Clone returns a deep copy of the basic map. The space is shared.
func (bm *BasicMap) Clone() *BasicMap {
	c := &BasicMap{
		Space:  bm.Space,
		Exists: append([]Dim{}, bm.Exists...),
		Out:    make([]Expr, len(bm.Out)),
	}
	for i, out := range bm.Out {
		c.Out[i] = out.Clone()
	}
	return c
}

// Equal returns true if two basic maps are syntactically the same.
func (bm *BasicMap) Equal(o *BasicMap) bool {
	if !bm.Space.Equal(o.Space) || len(bm.Exists) != len(o.Exists) || len(bm.Out) != len(o.Out) {
		return false
	}
	for i, ex := range bm.Exists {
		if ex.Lo != o.Exists[i].Lo || ex.Hi != o.Exists[i].Hi {
			return false
		}
	}
	for i, out := range bm.Out {
		if !out.Equal(o.Out[i]) {
			return false
		}
	}
	return true
}

// Range returns the string of the output dimensions.
func (bm *BasicMap) Range() string {
	names := bm.names()
	outs := make([]string, len(bm.Out))
	for i, out := range bm.Out {
		outs[i] = out.String(names)
	}
	return "[" + strings.Join(outs, ", ") + "]"
}

func (bm *BasicMap) String() string {
	s := "[" + strings.Join(bm.Space.Names(), ", ") + "] -> " + bm.Range()
	if len(bm.Exists) == 0 {
		return s
	}
	exs := make([]string, len(bm.Exists))
	for i, ex := range bm.Exists {
		exs[i] = fmt.Sprintf("%d <= %s <= %d", ex.Lo, ex.Name, ex.Hi)
	}
	return s + " : " + strings.Join(exs, " and ")
}

// NewMap returns an empty map.
func NewMap(space *Space, outDim int) *Map {
	return &Map{space: space, outDim: outDim}
}

// FromBasicMap returns a map with a single disjunct.
func FromBasicMap(bm *BasicMap) *Map {
	return &Map{
		space:  bm.Space,
		outDim: len(bm.Out),
		parts:  []*BasicMap{bm.Clone()},
	}
}

// Space returns the domain of the map.
func (m *Map) Space() *Space {
	return m.space
}

// OutDim returns the number of output dimensions.
func (m *Map) OutDim() int {
	return m.outDim
}

// NumDisjuncts returns the number of basic maps in the union.
func (m *Map) NumDisjuncts() int {
	return len(m.parts)
}

// IsEmpty returns true if the map has no disjunct.
func (m *Map) IsEmpty() bool {
	return len(m.parts) == 0
}

// Disjuncts returns an iterator over the basic maps of the union.
func (m *Map) Disjuncts() func(func(*BasicMap) bool) {
	return func(yield func(*BasicMap) bool) {
		for _, bm := range m.parts {
			if !yield(bm) {
				return
			}
		}
	}
}

func (m *Map) contains(bm *BasicMap) bool {
	for _, part := range m.parts {
		if part.Equal(bm) {
			return true
		}
	}
	return false
}

// AddBasicMap adds a disjunct to the map.
// Nothing is added if the map already has the same disjunct.
func (m *Map) AddBasicMap(bm *BasicMap) error {
	if err := bm.Validate(m.space, m.outDim); err != nil {
		return err
	}
	if m.contains(bm) {
		return nil
	}
	m.parts = append(m.parts, bm.Clone())
	return nil
}

// Union returns a new map containing the disjuncts of both maps.
func (m *Map) Union(o *Map) (*Map, error) {
	if !m.space.Equal(o.space) || m.outDim != o.outDim {
		return nil, errors.Errorf("cannot compute the union of maps with different spaces: %s and %s", m, o)
	}
	r := m.Copy()
	for _, bm := range o.parts {
		if err := r.AddBasicMap(bm); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Copy returns a deep copy of the map.
func (m *Map) Copy() *Map {
	c := NewMap(m.space, m.outDim)
	for _, bm := range m.parts {
		c.parts = append(c.parts, bm.Clone())
	}
	return c
}

// Equal returns true if both maps have the same disjuncts, in any order.
func (m *Map) Equal(o *Map) bool {
	if !m.space.Equal(o.space) || m.outDim != o.outDim || len(m.parts) != len(o.parts) {
		return false
	}
	for _, bm := range m.parts {
		if !o.contains(bm) {
			return false
		}
	}
	return true
}

func (m *Map) String() string {
	if len(m.parts) == 0 {
		return "{ }"
	}
	parts := make([]string, len(m.parts))
	for i, bm := range m.parts {
		parts[i] = bm.String()
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}
