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

// Package kerneldesc builds kernels from a YAML description.
//
// A description declares a table of arrays shared by a list of kernels.
// Each kernel declares its schedule and its statements. Index expressions
// are affine expressions written with the Go syntax:
//
//	arrays:
//	  - {name: A, dtype: float32, dims: [1024]}
//	kernels:
//	  - name: stencil
//	    schedule:
//	      - {name: t, kind: shared}
//	      - {name: tid, kind: thread, lo: 0, hi: 31}
//	    statements:
//	      - name: S0
//	        accesses:
//	          - {array: A, kind: read, index: ["32*t + tid"]}
package kerneldesc

import (
	"os"
	"slices"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v2"
	"github.com/gx-org/gpugroup/base/affine"
	"github.com/gx-org/gpugroup/build/fmterr"
	"github.com/gx-org/gpugroup/build/kernel"
)

type (
	// File is the content of a description file.
	File struct {
		Arrays  []Array  `yaml:"arrays"`
		Kernels []Kernel `yaml:"kernels"`
	}

	// Array declares an array.
	Array struct {
		Name  string `yaml:"name"`
		DType string `yaml:"dtype"`
		Dims  []int  `yaml:"dims"`
	}

	// Dim declares a schedule dimension or an existential variable.
	Dim struct {
		Name string `yaml:"name"`
		Kind string `yaml:"kind"`
		Lo   int64  `yaml:"lo"`
		Hi   int64  `yaml:"hi"`
	}

	// Kernel declares a kernel.
	Kernel struct {
		Name       string      `yaml:"name"`
		Schedule   []Dim       `yaml:"schedule"`
		Statements []Statement `yaml:"statements"`
	}

	// Statement declares a statement and its accesses.
	Statement struct {
		Name     string   `yaml:"name"`
		Accesses []Access `yaml:"accesses"`
	}

	// Access declares an access to an array.
	Access struct {
		Array string `yaml:"array"`
		// Kind is one of read, write or readwrite.
		Kind string `yaml:"kind"`
		// Exact is set for unconditional writes.
		Exact  bool     `yaml:"exact"`
		Index  []string `yaml:"index"`
		Exists []Dim    `yaml:"exists"`
	}
)

var dataTypes = map[string]dtype.DataType{
	"bool":    dtype.Bool,
	"float32": dtype.Float32,
	"float64": dtype.Float64,
	"int32":   dtype.Int32,
	"int64":   dtype.Int64,
	"uint32":  dtype.Uint32,
	"uint64":  dtype.Uint64,
}

// Load reads a description file and builds its kernels.
func Load(path string) (*kernel.ArrayTable, []*kernel.Kernel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "cannot read kernel description")
	}
	table, kernels, err := Parse(data)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", path)
	}
	return table, kernels, nil
}

// Parse decodes a YAML description and builds its kernels.
func Parse(data []byte) (*kernel.ArrayTable, []*kernel.Kernel, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, nil, errors.Wrapf(err, "cannot decode kernel description")
	}
	return f.Build()
}

// Build the array table and the kernels of a description.
func (f *File) Build() (*kernel.ArrayTable, []*kernel.Kernel, error) {
	table := kernel.NewArrayTable()
	for _, array := range f.Arrays {
		dt, ok := dataTypes[array.DType]
		if !ok {
			names := maps.Keys(dataTypes)
			slices.Sort(names)
			return nil, nil, errors.Errorf("array %s: unknown data type %q: available types are %v", array.Name, array.DType, names)
		}
		if _, err := table.Add(array.Name, &shape.Shape{DType: dt, AxisLengths: array.Dims}); err != nil {
			return nil, nil, err
		}
	}
	var kernels []*kernel.Kernel
	var errs fmterr.Errors
	for _, desc := range f.Kernels {
		kern, err := desc.build(table)
		if err != nil {
			errs.Append(fmterr.PrefixWith("kernel %s: ", desc.Name)(err))
			continue
		}
		kernels = append(kernels, kern)
	}
	if !errs.Empty() {
		return nil, nil, errs.ToError()
	}
	return table, kernels, nil
}

func (d Dim) toDim() (affine.Dim, error) {
	kind, err := affine.ParseDimKind(d.Kind)
	if err != nil {
		return affine.Dim{}, errors.Wrapf(err, "dimension %s", d.Name)
	}
	return affine.Dim{Name: d.Name, Kind: kind, Lo: d.Lo, Hi: d.Hi}, nil
}

func (k *Kernel) build(table *kernel.ArrayTable) (*kernel.Kernel, error) {
	dims := make([]affine.Dim, len(k.Schedule))
	for i, d := range k.Schedule {
		var err error
		if dims[i], err = d.toDim(); err != nil {
			return nil, err
		}
	}
	space, err := affine.NewSpace(dims...)
	if err != nil {
		return nil, err
	}
	kern := kernel.New(k.Name, table, space)
	for _, st := range k.Statements {
		stmt := kern.AddStatement(st.Name)
		for i, acc := range st.Accesses {
			if err := acc.add(kern, stmt); err != nil {
				return nil, fmterr.PrefixWith("statement %s: access %d: ", st.Name, i)(err)
			}
		}
	}
	return kern, nil
}

func (a *Access) add(kern *kernel.Kernel, stmt kernel.StmtID) error {
	array, ok := kern.Arrays.Lookup(a.Array)
	if !ok {
		return errors.Errorf("undefined array %s", a.Array)
	}
	acc := kernel.Access{Array: array.ID, ExactWrite: a.Exact}
	switch a.Kind {
	case "read":
		acc.Read = true
	case "write":
		acc.Write = true
	case "readwrite":
		acc.Read, acc.Write = true, true
	default:
		return errors.Errorf("unknown access kind %q", a.Kind)
	}
	bm := &affine.BasicMap{Space: kern.Space}
	names := kern.Space.Names()
	for _, ex := range a.Exists {
		bm.Exists = append(bm.Exists, affine.Dim{Name: ex.Name, Kind: affine.Inner, Lo: ex.Lo, Hi: ex.Hi})
		names = append(names, ex.Name)
	}
	for _, src := range a.Index {
		e, err := affine.ParseExpr(names, src)
		if err != nil {
			return err
		}
		bm.Out = append(bm.Out, e)
	}
	acc.Map = bm
	_, err := kern.AddAccess(stmt, acc)
	return err
}
