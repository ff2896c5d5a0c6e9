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

package gpuflag_test

import (
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/gx-org/gpugroup/tools/gpuflag"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestStringList(t *testing.T) {
	fs := newFlagSet()
	list := gpuflag.StringListVar(fs, "arrays", "arrays to report")
	if err := fs.Parse([]string{"-arrays", "A, B,,", "-arrays=C"}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C"}, *list); diff != "" {
		t.Errorf("unexpected list (-want +got):\n%s", diff)
	}
	if got, want := fs.Lookup("arrays").Value.String(), "A,B,C"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestLogLevel(t *testing.T) {
	fs := newFlagSet()
	level := gpuflag.LogLevelVar(fs, "log", logrus.WarnLevel, "log level")
	if got, want := *level, logrus.WarnLevel; got != want {
		t.Errorf("got default level %v but want %v", got, want)
	}
	if err := fs.Parse([]string{"-log", "debug"}); err != nil {
		t.Fatal(err)
	}
	if got, want := *level, logrus.DebugLevel; got != want {
		t.Errorf("got level %v but want %v", got, want)
	}
	fs = newFlagSet()
	gpuflag.LogLevelVar(fs, "log", logrus.WarnLevel, "log level")
	if err := fs.Parse([]string{"-log", "loud"}); err == nil {
		t.Errorf("expected an error for an unknown level")
	}
}
