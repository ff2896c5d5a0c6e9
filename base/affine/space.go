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

// Package affine implements the small subset of integer affine relations
// needed to group array references and compute tiles.
//
// A relation maps the points of a schedule space to array elements.
// Every output dimension is an affine expression of the schedule
// dimensions and of a few bounded existential variables. Shared
// dimensions are kept symbolic: they are the outer loops over tiles.
// Thread and inner dimensions are bounded by constants.
package affine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DimKind is the role of a schedule dimension.
type DimKind int

const (
	// Shared is a dimension at the shared memory tiling level.
	Shared DimKind = iota
	// Thread is a dimension mapped to a thread identifier.
	Thread
	// Inner is a sequential loop executed by a single thread.
	Inner
)

func (k DimKind) String() string {
	switch k {
	case Shared:
		return "shared"
	case Thread:
		return "thread"
	case Inner:
		return "inner"
	}
	return fmt.Sprintf("DimKind(%d)", int(k))
}

// ParseDimKind returns the kind given its name.
func ParseDimKind(s string) (DimKind, error) {
	for _, k := range []DimKind{Shared, Thread, Inner} {
		if k.String() == s {
			return k, nil
		}
	}
	return Shared, errors.Errorf("unknown dimension kind %q", s)
}

type (
	// Dim is a dimension of a schedule space.
	Dim struct {
		Name string
		Kind DimKind
		// Lo and Hi are inclusive bounds.
		// They are ignored for shared dimensions.
		Lo, Hi int64
	}

	// Space is the schedule space of a kernel.
	// Shared dimensions always come first.
	Space struct {
		dims      []Dim
		sharedLen int
	}
)

// Size returns the number of values the dimension can take.
func (d Dim) Size() int64 {
	return d.Hi - d.Lo + 1
}

func (d Dim) String() string {
	if d.Kind == Shared {
		return d.Name
	}
	return fmt.Sprintf("%d <= %s <= %d", d.Lo, d.Name, d.Hi)
}

// NewSpace returns a new schedule space.
func NewSpace(dims ...Dim) (*Space, error) {
	s := &Space{dims: append([]Dim{}, dims...)}
	names := make(map[string]bool)
	for i, dim := range s.dims {
		if dim.Name == "" {
			return nil, errors.Errorf("dimension %d has no name", i)
		}
		if names[dim.Name] {
			return nil, errors.Errorf("dimension %s declared more than once", dim.Name)
		}
		names[dim.Name] = true
		if dim.Kind == Shared {
			if i != s.sharedLen {
				return nil, errors.Errorf("shared dimension %s declared after a non-shared dimension", dim.Name)
			}
			s.sharedLen++
			continue
		}
		if dim.Lo > dim.Hi {
			return nil, errors.Errorf("empty %s dimension %s: [%d, %d]", dim.Kind, dim.Name, dim.Lo, dim.Hi)
		}
	}
	return s, nil
}

// Len returns the number of dimensions in the space.
func (s *Space) Len() int {
	return len(s.dims)
}

// SharedLen returns the number of shared dimensions.
func (s *Space) SharedLen() int {
	return s.sharedLen
}

// Dim returns the ith dimension.
func (s *Space) Dim(i int) Dim {
	return s.dims[i]
}

// Dims returns a copy of all the dimensions.
func (s *Space) Dims() []Dim {
	return append([]Dim{}, s.dims...)
}

// Names returns the name of all the dimensions.
func (s *Space) Names() []string {
	names := make([]string, len(s.dims))
	for i, dim := range s.dims {
		names[i] = dim.Name
	}
	return names
}

// Index returns the index of a dimension given its name or -1.
func (s *Space) Index(name string) int {
	for i, dim := range s.dims {
		if dim.Name == name {
			return i
		}
	}
	return -1
}

// Innermost returns the index of the deepest inner dimension or -1
// if the space has no inner dimension.
func (s *Space) Innermost() int {
	for i := len(s.dims) - 1; i >= 0; i-- {
		if s.dims[i].Kind == Inner {
			return i
		}
	}
	return -1
}

// Equal returns true if both spaces have the same dimensions.
func (s *Space) Equal(o *Space) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || len(s.dims) != len(o.dims) {
		return false
	}
	for i, dim := range s.dims {
		if dim != o.dims[i] {
			return false
		}
	}
	return true
}

func (s *Space) String() string {
	var bounds []string
	for _, dim := range s.dims {
		if dim.Kind == Shared {
			continue
		}
		bounds = append(bounds, dim.String())
	}
	str := "[" + strings.Join(s.Names(), ", ") + "]"
	if len(bounds) > 0 {
		str += " : " + strings.Join(bounds, " and ")
	}
	return str
}
