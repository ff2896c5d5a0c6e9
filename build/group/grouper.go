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
	"cmp"
	"slices"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/gx-org/gpugroup/api/options"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/kernel"
)

// candidate is a group being built with its shared memory footprint.
type candidate struct {
	*ReferenceGroup
	// box is nil if the footprint cannot be bounded.
	box *affine.Box
	// private is set if the group can be mapped to registers on its own.
	private bool
}

type grouper struct {
	kern  *kernel.Kernel
	array *kernel.ArrayInfo
	opts  *options.Options
	log   logrus.FieldLogger
	keys  map[kernel.AccessID]string
}

// groupAccesses partitions the accesses to an array.
// The partition does not depend on the order of the accesses:
// accesses are first sorted by a key independent of that order.
func groupAccesses(kern *kernel.Kernel, array *kernel.ArrayInfo, refs []kernel.AccessID, opts *options.Options) ([]*ReferenceGroup, error) {
	gr := &grouper{
		kern:  kern,
		array: array,
		opts:  opts,
		log:   opts.Log().WithFields(logrus.Fields{"kernel": kern.Name, "array": array.Name}),
		keys:  make(map[kernel.AccessID]string, len(refs)),
	}
	for _, ref := range refs {
		gr.keys[ref] = kern.OrderKey(ref)
	}
	refs = slices.Clone(refs)
	slices.SortFunc(refs, func(a, b kernel.AccessID) int {
		if c := cmp.Compare(gr.keys[a], gr.keys[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	cands := make([]*candidate, len(refs))
	for i, ref := range refs {
		var err error
		if cands[i], err = gr.singleton(ref); err != nil {
			return nil, err
		}
	}
	cands, err := gr.mergeOverlappingWrites(cands)
	if err != nil {
		return nil, err
	}
	if cands, err = gr.mergeSharedTiles(cands); err != nil {
		return nil, err
	}
	groups := make([]*ReferenceGroup, len(cands))
	for i, cand := range cands {
		groups[i] = cand.ReferenceGroup
	}
	return groups, nil
}

func (gr *grouper) singleton(ref kernel.AccessID) (*candidate, error) {
	acc := gr.kern.Access(ref)
	g := &ReferenceGroup{
		Array:      acc.Array,
		Access:     affine.FromBasicMap(acc.Map),
		Refs:       []kernel.AccessID{ref},
		LastShared: -1,
		key:        gr.keys[ref],
	}
	return gr.newCandidate(g)
}

// newCandidate computes the footprint and the flags of a group.
func (gr *grouper) newCandidate(g *ReferenceGroup) (*candidate, error) {
	g.Write, g.ExactWrite = false, true
	for _, ref := range g.Refs {
		acc := gr.kern.Access(ref)
		if !acc.Write {
			continue
		}
		g.Write = true
		g.ExactWrite = g.ExactWrite && acc.ExactWrite
	}
	g.ExactWrite = g.ExactWrite && g.Write
	cand := &candidate{ReferenceGroup: g}
	box, err := g.Access.Box(affine.SharedLevel)
	switch {
	case errors.Is(err, affine.ErrOverflow):
		return nil, errors.Wrap(ErrResourceExhausted, err.Error())
	case err != nil:
		g.Slice = true
	default:
		cand.box = box
		g.Slice = box.Volume() > 1
	}
	privateBox, _ := g.privateBox(gr.kern, gr.opts)
	cand.private = privateBox != nil
	return cand, nil
}

func (gr *grouper) union(cands []*candidate) (*ReferenceGroup, error) {
	g := &ReferenceGroup{
		Array:      cands[0].Array,
		Access:     cands[0].Access.Copy(),
		LastShared: -1,
		key:        cands[0].key,
	}
	for _, cand := range cands {
		var err error
		if g.Access, err = g.Access.Union(cand.Access); err != nil {
			return nil, fmterr.Internal(err)
		}
		g.Refs = append(g.Refs, cand.Refs...)
		g.key = min(g.key, cand.key)
	}
	slices.Sort(g.Refs)
	return g, nil
}

func mayIntersect(a, b *candidate) bool {
	for bmA := range a.Access.Disjuncts() {
		for bmB := range b.Access.Disjuncts() {
			if affine.MayIntersect(bmA, bmB, affine.SharedLevel) {
				return true
			}
		}
	}
	return false
}

// mergeOverlappingWrites merges groups that may access a common element
// within an iteration of the shared dimensions if one of them writes.
// Such groups need to be handled together for the result to be correct.
// The merge is transitive.
// A merged group with too many disjuncts is not built: its accesses are
// left in their own group and placed in global memory instead.
func (gr *grouper) mergeOverlappingWrites(cands []*candidate) ([]*candidate, error) {
	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			if !cands[i].Write && !cands[j].Write {
				continue
			}
			if !mayIntersect(cands[i], cands[j]) {
				continue
			}
			ri, rj := find(i), find(j)
			if ri == rj {
				continue
			}
			parent[max(ri, rj)] = min(ri, rj)
		}
	}
	components := make(map[int][]*candidate)
	var roots []int
	for i, cand := range cands {
		root := find(i)
		if _, ok := components[root]; !ok {
			roots = append(roots, root)
		}
		components[root] = append(components[root], cand)
	}
	var merged []*candidate
	for _, root := range roots {
		members := components[root]
		if len(members) == 1 {
			merged = append(merged, members[0])
			continue
		}
		g, err := gr.union(members)
		if err != nil {
			return nil, err
		}
		if g.Access.NumDisjuncts() > gr.opts.MaxDisjuncts {
			gr.log.WithField("disjuncts", g.Access.NumDisjuncts()).Info("overlapping references too complex to be grouped: using global memory")
			for _, member := range members {
				member.Global = true
				member.box = nil
			}
			merged = append(merged, members...)
			continue
		}
		cand, err := gr.newCandidate(g)
		if err != nil {
			return nil, err
		}
		merged = append(merged, cand)
	}
	slices.SortFunc(merged, func(a, b *candidate) int {
		return cmp.Compare(a.key, b.key)
	})
	return merged, nil
}

// fitsShared returns true if a box fits in shared memory.
func (gr *grouper) fitsShared(box *affine.Box) bool {
	if box.Volume() > gr.opts.MaxSharedElements {
		return false
	}
	elemSize := gr.array.ElemSize()
	return elemSize <= 0 || box.Volume() <= gr.opts.SharedMemoryBytes/elemSize
}

// mergeSharedTiles repeatedly merges the two groups whose combined shared
// memory tile saves the most elements compared to two separate tiles.
// Groups are merged only if the combined tile is smaller than the sum
// of the separate tiles and fits in the shared memory budget.
// Two groups that can both be mapped to registers are not merged
// unless they may access a common element.
// Ties are broken using the keys of the groups.
func (gr *grouper) mergeSharedTiles(cands []*candidate) ([]*candidate, error) {
	for {
		bestI, bestJ := -1, -1
		var best *candidate
		var bestGain int64
		for i, a := range cands {
			if a.Global || a.box == nil {
				continue
			}
			for j := i + 1; j < len(cands); j++ {
				b := cands[j]
				if b.Global || b.box == nil {
					continue
				}
				if a.private && b.private && !mayIntersect(a, b) {
					continue
				}
				cand, gain, err := gr.tryMerge(a, b)
				if err != nil {
					return nil, err
				}
				if cand == nil || gain <= bestGain {
					continue
				}
				bestI, bestJ, best, bestGain = i, j, cand, gain
			}
		}
		if best == nil {
			return cands, nil
		}
		gr.log.WithField("saving", bestGain).Debugf("merging references %v and %v", cands[bestI].Refs, cands[bestJ].Refs)
		cands[bestI] = best
		cands = slices.Delete(cands, bestJ, bestJ+1)
	}
}

// tryMerge returns the merge of two groups or nil if the merged group
// does not have a shared tile better than the two separate groups.
func (gr *grouper) tryMerge(a, b *candidate) (*candidate, int64, error) {
	g, err := gr.union([]*candidate{a, b})
	if err != nil {
		return nil, 0, err
	}
	if g.Access.NumDisjuncts() > gr.opts.MaxDisjuncts {
		return nil, 0, nil
	}
	cand, err := gr.newCandidate(g)
	if err != nil {
		return nil, 0, err
	}
	if cand.box == nil || !gr.fitsShared(cand.box) {
		return nil, 0, nil
	}
	separate := a.box.Volume() + b.box.Volume()
	if separate < a.box.Volume() || cand.box.Volume() > separate {
		return nil, 0, nil
	}
	return cand, separate - cand.box.Volume(), nil
}
