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
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/build/kernel"
)

// ErrReservedName is returned when the name of an array could be confused
// with the storage name of a group of another array.
var ErrReservedName = errors.New("reserved array name")

func (p Placement) prefix() string {
	switch p {
	case Private:
		return "private_"
	case Shared:
		return "shared_"
	}
	return ""
}

// checkArrayName returns an error if an array name starts with a placement
// prefix. The name of a global group of such an array could otherwise be the
// same as the name of a tiled group of another array.
func checkArrayName(name string) error {
	for _, p := range []Placement{Private, Shared} {
		if strings.HasPrefix(name, p.prefix()) {
			return errors.Wrapf(ErrReservedName, "array names cannot start with %q", p.prefix())
		}
	}
	return nil
}

// PrintName writes the name of the storage of a group:
// the placement of the group, the name of its array and its position.
func PrintName(w io.Writer, kern *kernel.Kernel, g *ReferenceGroup) error {
	_, err := fmt.Fprintf(w, "%s%s_%d", g.Placement().prefix(), kern.Arrays.Array(g.Array).Name, g.Nr)
	return err
}

// Name returns the name of the storage of the group.
func (g *ReferenceGroup) Name(kern *kernel.Kernel) string {
	var s strings.Builder
	// Writing to a strings.Builder never fails.
	_ = PrintName(&s, kern, g)
	return s.String()
}
