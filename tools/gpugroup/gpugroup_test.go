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

package main

import (
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	*kernelsPath = "testdata/stencil.yaml"
	*optionsPath = "testdata/options.yaml"
	defer func() {
		*kernelsPath, *optionsPath = "", ""
	}()
	var out strings.Builder
	if err := run(&out); err != nil {
		t.Fatalf("%+v", err)
	}
	for _, want := range []string{
		"kernel stencil\n",
		"  shared_A_0 shared [slice]\n",
		"  private_B_0 private [write,exact,slice]\n",
		"kernel rows\n",
		"  shared_M_0 shared [slice]\n",
		"  private_A_0 private [write,slice]\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("report does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestRunWithoutKernels(t *testing.T) {
	if err := run(&strings.Builder{}); err == nil {
		t.Errorf("expected an error when no kernel description is given")
	}
}
