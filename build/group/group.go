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

// Package group groups the array references of a kernel and decides,
// for each group, if its accesses go through private registers,
// shared memory or global memory.
//
// If the private tile of a group is not nil, the group is mapped to
// registers. Otherwise, if its shared tile is not nil, it is mapped to
// shared memory. Otherwise, it is accessed from global memory.
package group

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/kernel"
)

// ErrResourceExhausted is returned when the affine relations of a kernel
// cannot be represented. Only the analysis of that kernel fails.
var ErrResourceExhausted = errors.New("affine relation resources exhausted")

// Placement is the memory in which the accesses of a group are performed.
type Placement int

const (
	// Global memory.
	Global Placement = iota
	// Shared memory.
	Shared
	// Private memory, that is registers.
	Private
)

func (p Placement) String() string {
	switch p {
	case Global:
		return "global"
	case Shared:
		return "shared"
	case Private:
		return "private"
	}
	return fmt.Sprintf("Placement(%d)", int(p))
}

// Tile is a box of array elements copied into a faster memory.
type Tile struct {
	// Box of the tile. Offsets of a shared tile depend on shared dimensions only.
	// Offsets of a private tile may also depend on thread dimensions.
	Box *affine.Box
	// ElemSize is the size of an element in bytes.
	ElemSize int64
}

// Volume returns the number of elements in the tile.
func (t *Tile) Volume() int64 {
	return t.Box.Volume()
}

// Bytes returns the size of the tile in bytes.
func (t *Tile) Bytes() int64 {
	return t.Box.Volume() * t.ElemSize
}

// Bounds returns the bounds of the tile along each array dimension.
func (t *Tile) Bounds() []affine.Bound {
	return t.Box.Bounds
}

func (t *Tile) String() string {
	return t.Box.String()
}

// ReferenceGroup is a group of array references in a kernel that
// are handled together.
type ReferenceGroup struct {
	// Array accessed by the references of the group.
	Array kernel.ArrayID
	// Nr is the position of the group in the groups of its local array.
	Nr int

	// Access is the combined access relation relative to the shared
	// memory tiling: the shared dimensions of its space are the first
	// dimensions of the schedule of the kernel.
	Access *affine.Map
	// Write is set if any access in the group is a write.
	Write bool
	// ExactWrite is set if the group writes and all its writes are exact.
	ExactWrite bool
	// Slice is set if the group may access more than one element
	// for a given iteration of the shared dimensions.
	Slice bool
	// Global is set if the group could not be analysed.
	// Its accesses always go to global memory.
	Global bool

	// Refs are the accesses of the group in the access arena of the kernel.
	Refs []kernel.AccessID

	// SharedTile is the shared memory tile, nil if none.
	SharedTile *Tile
	// PrivateTile is the private memory tile, nil if none.
	PrivateTile *Tile
	// NeedsInit is set if the private tile has to be initialized from global memory.
	NeedsInit bool

	// LastShared is the last shared dimension that affects the tile of the group
	// or -1 if the tile does not depend on any shared dimension.
	LastShared int

	key string
}

// Placement returns the memory in which the accesses of the group are performed.
func (g *ReferenceGroup) Placement() Placement {
	switch {
	case g.PrivateTile != nil:
		return Private
	case g.SharedTile != nil:
		return Shared
	}
	return Global
}

// Tile returns the tile of the group or nil if the group is in global memory.
func (g *ReferenceGroup) Tile() *Tile {
	if g.PrivateTile != nil {
		return g.PrivateTile
	}
	return g.SharedTile
}

// Reads returns true if at least one access of the group reads.
func (g *ReferenceGroup) Reads(kern *kernel.Kernel) bool {
	for _, ref := range g.Refs {
		if kern.Access(ref).Read {
			return true
		}
	}
	return false
}

// AccessRelation returns the union of the access relations of the references
// of the group that read (if read is set) or write (if write is set).
// The returned map is a new value owned by the caller.
// An error is returned if an access has been modified and is no longer
// consistent with the kernel.
func (g *ReferenceGroup) AccessRelation(kern *kernel.Kernel, read, write bool) (*affine.Map, error) {
	array := kern.Arrays.Array(g.Array)
	m := affine.NewMap(kern.Space, array.Rank())
	for _, ref := range g.Refs {
		acc := kern.Access(ref)
		if !(read && acc.Read) && !(write && acc.Write) {
			continue
		}
		if err := m.AddBasicMap(acc.Map); err != nil {
			return nil, fmterr.Array(kern.Name, array.Name, errors.Wrapf(kernel.ErrInvalidAccess, "%s: %v", kern.Key(ref), err))
		}
	}
	return m, nil
}

// Free releases the tiles and the references of the group.
// The accesses and the array of the group are not owned by the group.
// Always returns nil.
func (g *ReferenceGroup) Free() *ReferenceGroup {
	if g == nil {
		return nil
	}
	g.Access = nil
	g.Refs = nil
	g.SharedTile = nil
	g.PrivateTile = nil
	return nil
}

func (g *ReferenceGroup) String() string {
	var flags []string
	if g.Write {
		flags = append(flags, "write")
	}
	if g.ExactWrite {
		flags = append(flags, "exact")
	}
	if g.Slice {
		flags = append(flags, "slice")
	}
	s := fmt.Sprintf("group %d [%s] %s", g.Nr, strings.Join(flags, ","), g.Placement())
	if tile := g.Tile(); tile != nil {
		s += " " + tile.String()
	}
	return s
}
