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

package group

import (
	"github.com/sirupsen/logrus"
	"github.com/gx-org/gpugroup/api/options"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/kernel"
)

// ComputeTiling decides where the accesses of the group are performed
// and computes the corresponding tile.
// A private tile is preferred over a shared tile, which is preferred over
// global memory. Any existing tile is discarded first: calling the function
// again on the same group computes the same tile.
func (g *ReferenceGroup) ComputeTiling(kern *kernel.Kernel, opts *options.Options) {
	g.PrivateTile, g.SharedTile = nil, nil
	g.NeedsInit = false
	g.LastShared = -1
	array := kern.Arrays.Array(g.Array)
	log := opts.Log().WithFields(logrus.Fields{
		"kernel": kern.Name,
		"array":  array.Name,
		"group":  g.Nr,
	})
	if g.Global || g.Access == nil || g.Access.IsEmpty() {
		log.WithField("placement", Global).Debug("group not tiled")
		return
	}
	if box, reason := g.privateBox(kern, opts); box != nil {
		g.PrivateTile = &Tile{Box: box, ElemSize: array.ElemSize()}
		g.NeedsInit = g.needsInit(kern)
	} else {
		log = log.WithField("private", reason)
		if box, reason := g.sharedBox(array, opts); box != nil {
			g.SharedTile = &Tile{Box: box, ElemSize: array.ElemSize()}
		} else {
			log = log.WithField("shared", reason)
		}
	}
	if tile := g.Tile(); tile != nil {
		g.LastShared = lastShared(kern.Space, tile.Box)
		log = log.WithFields(logrus.Fields{"tile": tile.String(), "lastShared": g.LastShared})
	}
	log.WithField("placement", g.Placement()).Debug("group tiled")
}

// lastShared returns the deepest shared dimension on which the offset of
// a box depends or -1 if the box does not depend on any shared dimension.
func lastShared(space *affine.Space, box *affine.Box) int {
	for i := space.SharedLen() - 1; i >= 0; i-- {
		if box.DependsOn(i) {
			return i
		}
	}
	return -1
}

// privateBox returns the footprint of one thread if the group can be
// mapped to registers. Otherwise, it returns the reason why it cannot.
func (g *ReferenceGroup) privateBox(kern *kernel.Kernel, opts *options.Options) (*affine.Box, string) {
	box, err := g.Access.Box(affine.ThreadLevel)
	if err != nil {
		return nil, err.Error()
	}
	if box.Volume() > opts.MaxPrivateElements {
		return nil, "tile too large"
	}
	if !threadsAccessDisjointBoxes(kern.Space, box) {
		return nil, "elements shared between threads"
	}
	if g.Slice && !g.invariantInInnermost(kern.Space) {
		return nil, "elements depend on the innermost loop"
	}
	return box, ""
}

// threadsAccessDisjointBoxes returns true if it can prove that two different
// threads always access different elements. This is the case if, for each
// thread dimension, there is an array dimension in which the offset of the box
// depends on that thread dimension only (among all thread dimensions) with a
// coefficient larger than the size of the box.
func threadsAccessDisjointBoxes(space *affine.Space, box *affine.Box) bool {
	for i := range space.Len() {
		dim := space.Dim(i)
		if dim.Kind != affine.Thread || dim.Size() <= 1 {
			continue
		}
		if !separates(space, box, i) {
			return false
		}
	}
	return true
}

func separates(space *affine.Space, box *affine.Box, thread int) bool {
	for _, bound := range box.Bounds {
		c := bound.Offset.Coeff(thread)
		if c == 0 {
			continue
		}
		if c < 0 {
			c = -c
		}
		if c < bound.Size {
			continue
		}
		only := true
		for j := range space.Len() {
			if j != thread && space.Dim(j).Kind == affine.Thread && bound.Offset.Coeff(j) != 0 {
				only = false
				break
			}
		}
		if only {
			return true
		}
	}
	return false
}

// invariantInInnermost returns true if no access of the group depends on the
// innermost inner dimension of the schedule.
func (g *ReferenceGroup) invariantInInnermost(space *affine.Space) bool {
	inner := space.Innermost()
	if inner < 0 {
		return true
	}
	for bm := range g.Access.Disjuncts() {
		for _, out := range bm.Out {
			if out.Coeff(inner) != 0 {
				return false
			}
		}
	}
	return true
}

// needsInit returns true if a private tile needs to be read from global
// memory before being used. This is not the case if all the writes of the group
// are exact and every element read has been written before by the same thread,
// that is each read follows, in an earlier statement, an exact write with
// the same access relation.
func (g *ReferenceGroup) needsInit(kern *kernel.Kernel) bool {
	if !g.ExactWrite {
		return true
	}
	if !g.Reads(kern) {
		return false
	}
	for _, ref := range g.Refs {
		read := kern.Access(ref)
		if !read.Read {
			continue
		}
		if !g.writtenBefore(kern, read) {
			return true
		}
	}
	return false
}

func (g *ReferenceGroup) writtenBefore(kern *kernel.Kernel, read *kernel.Access) bool {
	for _, ref := range g.Refs {
		write := kern.Access(ref)
		if write.Write && write.ExactWrite && write.Stmt < read.Stmt && write.Map.Equal(read.Map) {
			return true
		}
	}
	return false
}

// sharedBox returns the footprint of an iteration of the shared dimensions
// if it fits in shared memory. Otherwise, it returns the reason why it does not.
func (g *ReferenceGroup) sharedBox(array *kernel.ArrayInfo, opts *options.Options) (*affine.Box, string) {
	box, err := g.Access.Box(affine.SharedLevel)
	if err != nil {
		return nil, err.Error()
	}
	if box.Volume() > opts.MaxSharedElements {
		return nil, "tile has too many elements"
	}
	if elemSize := array.ElemSize(); elemSize > 0 && box.Volume() > opts.SharedMemoryBytes/elemSize {
		return nil, "tile too large"
	}
	return box, ""
}
