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
	"slices"

	"golang.org/x/exp/maps"
	"github.com/gx-org/gpugroup/api/options"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/kernel"
)

// LocalArrayInfo is the view of an array from a kernel.
// It owns the reference groups of the array.
type LocalArrayInfo struct {
	Array  kernel.ArrayID
	Groups []*ReferenceGroup

	nextNr int
}

// NumAssigned returns the number of positions assigned so far,
// including the positions of discarded groups.
func (l *LocalArrayInfo) NumAssigned() int {
	return l.nextNr
}

// Registry owns the local arrays of a kernel and their groups.
type Registry struct {
	locals   map[kernel.ArrayID]*LocalArrayInfo
	byAccess map[kernel.AccessID]*ReferenceGroup
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		locals:   make(map[kernel.ArrayID]*LocalArrayInfo),
		byAccess: make(map[kernel.AccessID]*ReferenceGroup),
	}
}

// Local returns the local array of an array, creating it if necessary.
func (r *Registry) Local(id kernel.ArrayID) *LocalArrayInfo {
	local, ok := r.locals[id]
	if !ok {
		local = &LocalArrayInfo{Array: id}
		r.locals[id] = local
	}
	return local
}

// Lookup returns the local array of an array if it has one.
func (r *Registry) Lookup(id kernel.ArrayID) (*LocalArrayInfo, bool) {
	local, ok := r.locals[id]
	return local, ok
}

// LocalByName returns the local array of an array given its name.
func (r *Registry) LocalByName(kern *kernel.Kernel, name string) (*LocalArrayInfo, bool) {
	array, ok := kern.Arrays.Lookup(name)
	if !ok {
		return nil, false
	}
	return r.Lookup(array.ID)
}

// Arrays returns the arrays with a local array, sorted by identifier.
func (r *Registry) Arrays() []kernel.ArrayID {
	ids := maps.Keys(r.locals)
	slices.Sort(ids)
	return ids
}

// Add appends a group to the groups of its array and assigns its position.
// Positions are assigned in insertion order and never reused.
func (r *Registry) Add(g *ReferenceGroup) {
	local := r.Local(g.Array)
	g.Nr = local.nextNr
	local.nextNr++
	local.Groups = append(local.Groups, g)
	for _, ref := range g.Refs {
		r.byAccess[ref] = g
	}
}

// Discard removes a group from its array and releases it.
// The positions of the other groups are left unchanged.
func (r *Registry) Discard(g *ReferenceGroup) bool {
	local, ok := r.locals[g.Array]
	if !ok {
		return false
	}
	i := slices.Index(local.Groups, g)
	if i < 0 {
		return false
	}
	local.Groups = slices.Delete(local.Groups, i, i+1)
	for _, ref := range g.Refs {
		if r.byAccess[ref] == g {
			delete(r.byAccess, ref)
		}
	}
	g.Free()
	return true
}

// GroupOf returns the group of an access.
func (r *Registry) GroupOf(ref kernel.AccessID) (*ReferenceGroup, bool) {
	g, ok := r.byAccess[ref]
	return g, ok
}

// Groups returns an iterator over all the groups, array by array.
func (r *Registry) Groups() func(func(*ReferenceGroup) bool) {
	return func(yield func(*ReferenceGroup) bool) {
		for _, id := range r.Arrays() {
			for _, g := range r.locals[id].Groups {
				if !yield(g) {
					return
				}
			}
		}
	}
}

// Free releases all the groups of the registry.
// Arrays and accesses are owned by the kernel and are left untouched.
func (r *Registry) Free() {
	for _, local := range r.locals {
		for _, g := range local.Groups {
			g.Free()
		}
		local.Groups = nil
	}
	clear(r.locals)
	clear(r.byAccess)
}

// GroupReferences groups the references of every array accessed by a kernel
// and computes the tile of each group.
// An error is returned if an access of the kernel is invalid, if the name
// of an array is reserved, or if the relations of the kernel cannot be
// represented.
func GroupReferences(kern *kernel.Kernel, opts *options.Options) (*Registry, error) {
	if opts == nil {
		opts = options.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := kern.Validate(); err != nil {
		return nil, err
	}
	var errs fmterr.Errors
	for _, array := range kern.ReferencedArrays() {
		if err := checkArrayName(array.Name); err != nil {
			errs.Append(fmterr.Array(kern.Name, array.Name, err))
		}
	}
	if !errs.Empty() {
		return nil, errs.ToError()
	}
	reg := NewRegistry()
	for _, array := range kern.ReferencedArrays() {
		groups, err := groupAccesses(kern, array, kern.ArrayAccesses(array.ID), opts)
		if err != nil {
			return nil, fmterr.Array(kern.Name, array.Name, err)
		}
		for _, g := range groups {
			reg.Add(g)
			g.ComputeTiling(kern, opts)
		}
	}
	return reg, nil
}
