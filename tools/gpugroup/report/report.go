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

// Package report formats the groups of kernels as text.
package report

import (
	"io"
	"slices"
	"strings"
	"text/template"

	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/build/group"
	"github.com/gx-org/gpugroup/build/kernel"
)

const reportSource = `{{range $kernel := .}}kernel {{$kernel.Name}}
{{- if $kernel.Err}}
  error: {{$kernel.Err}}
{{- end}}
{{- range $group := $kernel.Groups}}
  {{$group.Name}} {{placement $group.Placement}}{{if $group.Flags}} [{{$group.Flags}}]{{end}}
{{- if $group.Tile}}
    tile: {{$group.Tile}} ({{$group.Bytes}} bytes)
    last shared dimension: {{$group.LastShared}}
{{- end}}
{{- if $group.NeedsInit}}
    needs initialization
{{- end}}
{{- range $ref := $group.Refs}}
    {{$ref}}
{{- end}}
{{- end}}
{{end}}`

var reportTemplate = template.Must(template.New("report").Funcs(placementFuncs(false)).Parse(reportSource))

func placementFuncs(color bool) template.FuncMap {
	au := aurora.NewAurora(color)
	return template.FuncMap{
		"placement": func(p group.Placement) string {
			switch p {
			case group.Private:
				return au.Green(p).String()
			case group.Shared:
				return au.Cyan(p).String()
			}
			return au.Yellow(p).String()
		},
	}
}

type (
	// Group is the report of a reference group.
	Group struct {
		Name       string
		Placement  group.Placement
		Flags      string
		Tile       string
		Bytes      int64
		LastShared int
		NeedsInit  bool
		// Refs are the keys of the accesses of the group.
		Refs []string
	}

	// Kernel is the report of a kernel.
	Kernel struct {
		Name   string
		Err    error
		Groups []Group
	}
)

// Failed returns the report of a kernel that could not be analysed.
func Failed(kern *kernel.Kernel, err error) Kernel {
	return Kernel{Name: kern.Name, Err: err}
}

// Build the report of the groups of a kernel.
// If arrays is not empty, only the groups of these arrays are reported.
func Build(kern *kernel.Kernel, reg *group.Registry, arrays []string) Kernel {
	rep := Kernel{Name: kern.Name}
	for g := range reg.Groups() {
		array := kern.Arrays.Array(g.Array)
		if len(arrays) > 0 && !slices.Contains(arrays, array.Name) {
			continue
		}
		rep.Groups = append(rep.Groups, buildGroup(kern, g))
	}
	return rep
}

func buildGroup(kern *kernel.Kernel, g *group.ReferenceGroup) Group {
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
	if g.Global {
		flags = append(flags, "unanalysed")
	}
	rep := Group{
		Name:       g.Name(kern),
		Placement:  g.Placement(),
		Flags:      strings.Join(flags, ","),
		LastShared: g.LastShared,
		NeedsInit:  g.NeedsInit,
	}
	if tile := g.Tile(); tile != nil {
		rep.Tile = tile.String()
		rep.Bytes = tile.Bytes()
	}
	for _, ref := range g.Refs {
		rep.Refs = append(rep.Refs, kern.Key(ref))
	}
	return rep
}

// Write the report of a list of kernels.
func Write(w io.Writer, kernels []Kernel) error {
	return WriteColor(w, kernels, false)
}

// WriteColor writes the report of a list of kernels, highlighting placements
// with terminal colors if color is set.
func WriteColor(w io.Writer, kernels []Kernel, color bool) error {
	tpl, err := reportTemplate.Clone()
	if err != nil {
		return errors.Wrapf(err, "cannot write report")
	}
	if err := tpl.Funcs(placementFuncs(color)).Execute(w, kernels); err != nil {
		return errors.Wrapf(err, "cannot write report")
	}
	return nil
}
