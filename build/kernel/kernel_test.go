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

package kernel_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/kernel"
)

func newSpace(t *testing.T) *affine.Space {
	space, err := affine.NewSpace(
		affine.Dim{Name: "t", Kind: affine.Shared},
		affine.Dim{Name: "tid", Kind: affine.Thread, Lo: 0, Hi: 31},
	)
	if err != nil {
		t.Fatal(err)
	}
	return space
}

func newTable(t *testing.T) *kernel.ArrayTable {
	table := kernel.NewArrayTable()
	for _, name := range []string{"A", "B", "C"} {
		if _, err := table.Add(name, &shape.Shape{DType: dtype.Float32, AxisLengths: []int{1024}}); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func access(space *affine.Space, array kernel.ArrayID, read bool, outs ...affine.Expr) kernel.Access {
	return kernel.Access{
		Array: array,
		Read:  read,
		Write: !read,
		Map:   &affine.BasicMap{Space: space, Out: outs},
	}
}

func TestArrayTable(t *testing.T) {
	table := newTable(t)
	if _, err := table.Add("A", &shape.Shape{DType: dtype.Float32, AxisLengths: []int{2}}); err == nil {
		t.Errorf("expected an error when declaring A twice")
	}
	if _, err := table.Add("D", &shape.Shape{DType: dtype.Float32, AxisLengths: []int{0}}); err == nil {
		t.Errorf("expected an error for an empty axis")
	}
	b, ok := table.Lookup("B")
	if !ok {
		t.Fatalf("array B not found")
	}
	if got, want := b.ID, kernel.ArrayID(1); got != want {
		t.Errorf("got identifier %d but want %d", got, want)
	}
	if got, want := b.Rank(), 1; got != want {
		t.Errorf("got rank %d but want %d", got, want)
	}
	if got, want := b.ElemSize(), int64(4); got != want {
		t.Errorf("got element size %d but want %d", got, want)
	}
}

func TestKernelAccesses(t *testing.T) {
	space := newSpace(t)
	kern := kernel.New("k", newTable(t), space)
	s0 := kern.AddStatement("S0")
	s1 := kern.AddStatement("S1")
	i := affine.NewExpr(2, 0, 32, 1)
	var ids []kernel.AccessID
	for _, add := range []struct {
		stmt kernel.StmtID
		acc  kernel.Access
	}{
		{stmt: s1, acc: access(space, 2, true, i)},
		{stmt: s0, acc: access(space, 0, true, i)},
		{stmt: s0, acc: access(space, 2, false, i)},
	} {
		id, err := kern.AddAccess(add.stmt, add.acc)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if err := kern.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]kernel.AccessID{ids[2], ids[0]}, kern.ArrayAccesses(2)); diff != "" {
		t.Errorf("unexpected accesses to C in program order (-want +got):\n%s", diff)
	}
	var names []string
	for _, array := range kern.ReferencedArrays() {
		names = append(names, array.Name)
	}
	if diff := cmp.Diff([]string{"A", "C"}, names); diff != "" {
		t.Errorf("unexpected referenced arrays (-want +got):\n%s", diff)
	}
	if got, want := kern.Key(ids[2]), "S0/1:maywrite:[t, tid] -> [32t + tid]"; got != want {
		t.Errorf("got key %q but want %q", got, want)
	}
	if got, want := kern.OrderKey(ids[2]), "[t, tid] -> [32t + tid]:maywrite:S0/1"; got != want {
		t.Errorf("got order key %q but want %q", got, want)
	}
	if _, err := kern.AddAccess(7, access(space, 0, true, i)); err == nil {
		t.Errorf("expected an error for an undefined statement")
	}
	if _, err := kern.AddAccess(s0, access(space, 9, true, i)); err == nil {
		t.Errorf("expected an error for an undefined array")
	}
}

func TestValidate(t *testing.T) {
	space := newSpace(t)
	other, err := affine.NewSpace(affine.Dim{Name: "i", Kind: affine.Shared})
	if err != nil {
		t.Fatal(err)
	}
	kern := kernel.New("k", newTable(t), space)
	s0 := kern.AddStatement("S0")
	i := affine.NewExpr(2, 0, 32, 1)
	bad := []kernel.Access{
		// Too many output dimensions for A.
		access(space, 0, true, i, i),
		// Domain different from the schedule of the kernel.
		{Array: 1, Read: true, Map: &affine.BasicMap{Space: other, Out: []affine.Expr{affine.NewExpr(1, 0, 1)}}},
		// Exact write that does not write.
		{Array: 2, Read: true, ExactWrite: true, Map: &affine.BasicMap{Space: space, Out: []affine.Expr{i}}},
	}
	for _, acc := range bad {
		if _, err := kern.AddAccess(s0, acc); err != nil {
			t.Fatal(err)
		}
	}
	err = kern.Validate()
	if !errors.Is(err, kernel.ErrInvalidAccess) {
		t.Fatalf("got error %v but want %v", err, kernel.ErrInvalidAccess)
	}
	var errs fmterr.Errors
	errs.Append(err)
	var got []string
	for _, err := range errs.Errors() {
		var withArray fmterr.ErrorWithArray
		if !errors.As(err, &withArray) {
			t.Fatalf("error %v does not name its array", err)
		}
		got = append(got, withArray.Array())
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, got); diff != "" {
		t.Errorf("unexpected arrays in errors (-want +got):\n%s", diff)
	}
}
