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

// Package kernel provides the representation of a GPU kernel
// consumed by the memory placement analysis: the arrays it refers to,
// its statements and the array accesses they perform, all relative to
// the schedule computed for the kernel.
package kernel

import (
	"fmt"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/fmterr"
)

// ErrInvalidAccess is returned when an access relation is inconsistent
// with the schedule of its kernel or with the array it accesses.
var ErrInvalidAccess = errors.New("invalid access relation")

type (
	// ArrayID identifies an array in an array table.
	ArrayID int

	// StmtID identifies a statement in a kernel.
	StmtID int

	// AccessID identifies an access in the access arena of a kernel.
	AccessID int
)

type (
	// ArrayInfo describes an array: its element type and its bounds.
	ArrayInfo struct {
		ID    ArrayID
		Name  string
		Shape *shape.Shape
	}

	// ArrayTable owns the arrays of a program.
	// Arrays are immutable once they have been added.
	ArrayTable struct {
		arrays []*ArrayInfo
		byName map[string]ArrayID
	}
)

// Rank returns the number of dimensions of the array.
func (a *ArrayInfo) Rank() int {
	return len(a.Shape.AxisLengths)
}

// ElemSize returns the size of an element in bytes.
func (a *ArrayInfo) ElemSize() int64 {
	return int64(dtype.Sizeof(a.Shape.DType))
}

func (a *ArrayInfo) String() string {
	return fmt.Sprintf("%s %s", a.Name, a.Shape.String())
}

// NewArrayTable returns an empty array table.
func NewArrayTable() *ArrayTable {
	return &ArrayTable{byName: make(map[string]ArrayID)}
}

// Add an array to the table.
func (t *ArrayTable) Add(name string, sh *shape.Shape) (ArrayID, error) {
	if name == "" {
		return 0, errors.Errorf("array has no name")
	}
	if _, exist := t.byName[name]; exist {
		return 0, errors.Errorf("array %s declared more than once", name)
	}
	if sh == nil {
		return 0, errors.Errorf("array %s has no shape", name)
	}
	for i, l := range sh.AxisLengths {
		if l <= 0 {
			return 0, errors.Errorf("array %s: invalid length %d for axis %d", name, l, i)
		}
	}
	id := ArrayID(len(t.arrays))
	t.arrays = append(t.arrays, &ArrayInfo{ID: id, Name: name, Shape: sh})
	t.byName[name] = id
	return id, nil
}

// Lookup returns an array given its name.
func (t *ArrayTable) Lookup(name string) (*ArrayInfo, bool) {
	id, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.arrays[id], true
}

// Array returns an array given its identifier.
func (t *ArrayTable) Array(id ArrayID) *ArrayInfo {
	return t.arrays[id]
}

// Len returns the number of arrays in the table.
func (t *ArrayTable) Len() int {
	return len(t.arrays)
}

// Arrays returns an iterator over the arrays in declaration order.
func (t *ArrayTable) Arrays() func(func(*ArrayInfo) bool) {
	return func(yield func(*ArrayInfo) bool) {
		for _, a := range t.arrays {
			if !yield(a) {
				return
			}
		}
	}
}

type (
	// Access is an access to an array performed by a statement.
	// Accesses are owned by the kernel: other structures refer to
	// them using their AccessID.
	Access struct {
		ID    AccessID
		Stmt  StmtID
		Array ArrayID
		// Pos is the position of the access in its statement.
		Pos   int
		Read  bool
		Write bool
		// ExactWrite is set if the write is unconditional and
		// writes all the elements described by Map.
		ExactWrite bool
		// Map is the access relation from the schedule space to
		// the elements of the array.
		Map *affine.BasicMap
	}

	// Statement is a statement of a kernel.
	Statement struct {
		ID       StmtID
		Name     string
		Accesses []AccessID
	}

	// Kernel is the context of the analysis of a kernel.
	// Statements are stored in program order.
	Kernel struct {
		Name   string
		Arrays *ArrayTable
		Space  *affine.Space

		stmts    []*Statement
		accesses []*Access
	}
)

// Kind returns a string describing the kind of access.
func (a *Access) Kind() string {
	switch {
	case a.Read && a.Write:
		return "readwrite"
	case a.Write && a.ExactWrite:
		return "mustwrite"
	case a.Write:
		return "maywrite"
	case a.Read:
		return "read"
	}
	return "none"
}

// New returns a new kernel given a schedule space and a table of arrays.
func New(name string, arrays *ArrayTable, space *affine.Space) *Kernel {
	return &Kernel{Name: name, Arrays: arrays, Space: space}
}

// AddStatement appends a statement to the kernel.
func (k *Kernel) AddStatement(name string) StmtID {
	id := StmtID(len(k.stmts))
	k.stmts = append(k.stmts, &Statement{ID: id, Name: name})
	return id
}

// AddAccess appends an access to a statement.
// The access relation is only checked by Validate.
func (k *Kernel) AddAccess(stmt StmtID, acc Access) (AccessID, error) {
	if int(stmt) < 0 || int(stmt) >= len(k.stmts) {
		return 0, errors.Errorf("statement %d not defined in kernel %s", stmt, k.Name)
	}
	if int(acc.Array) < 0 || int(acc.Array) >= k.Arrays.Len() {
		return 0, errors.Errorf("array %d not defined in kernel %s", acc.Array, k.Name)
	}
	st := k.stmts[stmt]
	acc.ID = AccessID(len(k.accesses))
	acc.Stmt = stmt
	acc.Pos = len(st.Accesses)
	k.accesses = append(k.accesses, &acc)
	st.Accesses = append(st.Accesses, acc.ID)
	return acc.ID, nil
}

// Access returns an access given its identifier.
func (k *Kernel) Access(id AccessID) *Access {
	return k.accesses[id]
}

// Statement returns a statement given its identifier.
func (k *Kernel) Statement(id StmtID) *Statement {
	return k.stmts[id]
}

// Statements returns an iterator over the statements in program order.
func (k *Kernel) Statements() func(func(*Statement) bool) {
	return func(yield func(*Statement) bool) {
		for _, st := range k.stmts {
			if !yield(st) {
				return
			}
		}
	}
}

// NumAccesses returns the number of accesses in the kernel.
func (k *Kernel) NumAccesses() int {
	return len(k.accesses)
}

// ArrayAccesses returns the accesses to an array in program order.
func (k *Kernel) ArrayAccesses(id ArrayID) []AccessID {
	var ids []AccessID
	for _, st := range k.stmts {
		for _, accID := range st.Accesses {
			if k.accesses[accID].Array == id {
				ids = append(ids, accID)
			}
		}
	}
	return ids
}

// ReferencedArrays returns the arrays accessed by the kernel
// in the order of the array table.
func (k *Kernel) ReferencedArrays() []*ArrayInfo {
	used := make([]bool, k.Arrays.Len())
	for _, acc := range k.accesses {
		used[acc.Array] = true
	}
	var arrays []*ArrayInfo
	for array := range k.Arrays.Arrays() {
		if used[array.ID] {
			arrays = append(arrays, array)
		}
	}
	return arrays
}

// Key returns a string identifying an access that does not depend
// on the order in which accesses have been added to the kernel.
func (k *Kernel) Key(id AccessID) string {
	acc := k.accesses[id]
	return fmt.Sprintf("%s/%d:%s:%s", k.stmts[acc.Stmt].Name, acc.Pos, acc.Kind(), acc.Map.String())
}

// OrderKey returns a key to sort accesses independently of the order in which
// they have been added. The relation and the kind of the access come first:
// the position of the access in its statement only separates identical accesses.
func (k *Kernel) OrderKey(id AccessID) string {
	acc := k.accesses[id]
	return fmt.Sprintf("%s:%s:%s/%d", acc.Map.String(), acc.Kind(), k.stmts[acc.Stmt].Name, acc.Pos)
}

func (k *Kernel) validateAccess(acc *Access) error {
	array := k.Arrays.Array(acc.Array)
	if acc.Map == nil {
		return errors.Wrapf(ErrInvalidAccess, "statement %s: access %d has no relation", k.stmts[acc.Stmt].Name, acc.Pos)
	}
	if !acc.Read && !acc.Write {
		return errors.Wrapf(ErrInvalidAccess, "statement %s: access %d neither reads nor writes", k.stmts[acc.Stmt].Name, acc.Pos)
	}
	if acc.ExactWrite && !acc.Write {
		return errors.Wrapf(ErrInvalidAccess, "statement %s: access %d is an exact write but does not write", k.stmts[acc.Stmt].Name, acc.Pos)
	}
	if err := acc.Map.Validate(k.Space, array.Rank()); err != nil {
		return errors.Wrapf(ErrInvalidAccess, "statement %s: access %d: %v", k.stmts[acc.Stmt].Name, acc.Pos, err)
	}
	return nil
}

// Validate checks that all accesses of the kernel are consistent with its
// schedule space and with the arrays they access.
// All invalid accesses are reported, each error naming its array.
func (k *Kernel) Validate() error {
	if k.Space == nil {
		return errors.Errorf("kernel %s has no schedule space", k.Name)
	}
	var errs fmterr.Errors
	for _, acc := range k.accesses {
		if err := k.validateAccess(acc); err != nil {
			errs.Append(fmterr.Array(k.Name, k.Arrays.Array(acc.Array).Name, err))
		}
	}
	return errs.ToError()
}
