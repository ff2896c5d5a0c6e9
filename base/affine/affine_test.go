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

package affine_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/gx-org/gpugroup/base/affine"
)

// tiledSpace returns the space [t, tid, k] with 0 <= tid <= 31 and 0 <= k <= 3.
func tiledSpace(t *testing.T) *affine.Space {
	space, err := affine.NewSpace(
		affine.Dim{Name: "t", Kind: affine.Shared},
		affine.Dim{Name: "tid", Kind: affine.Thread, Lo: 0, Hi: 31},
		affine.Dim{Name: "k", Kind: affine.Inner, Lo: 0, Hi: 3},
	)
	if err != nil {
		t.Fatal(err)
	}
	return space
}

func basicMap(t *testing.T, space *affine.Space, exists []affine.Dim, outs ...string) *affine.BasicMap {
	names := space.Names()
	for _, ex := range exists {
		names = append(names, ex.Name)
	}
	bm := &affine.BasicMap{Space: space, Exists: exists}
	for _, out := range outs {
		e, err := affine.ParseExpr(names, out)
		if err != nil {
			t.Fatal(err)
		}
		bm.Out = append(bm.Out, e)
	}
	return bm
}

func TestNewSpaceErrors(t *testing.T) {
	tests := [][]affine.Dim{
		{{Name: "tid", Kind: affine.Thread, Hi: 3}, {Name: "t", Kind: affine.Shared}},
		{{Name: "t", Kind: affine.Shared}, {Name: "t", Kind: affine.Inner}},
		{{Name: "k", Kind: affine.Inner, Lo: 3, Hi: 2}},
		{{Kind: affine.Shared}},
	}
	for i, dims := range tests {
		if _, err := affine.NewSpace(dims...); err == nil {
			t.Errorf("test %d: expected an error for dimensions %v", i, dims)
		}
	}
}

func TestSpace(t *testing.T) {
	space := tiledSpace(t)
	if got, want := space.SharedLen(), 1; got != want {
		t.Errorf("got shared length %d but want %d", got, want)
	}
	if got, want := space.Innermost(), 2; got != want {
		t.Errorf("got innermost dimension %d but want %d", got, want)
	}
	if got, want := space.String(), "[t, tid, k] : 0 <= tid <= 31 and 0 <= k <= 3"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestParseExpr(t *testing.T) {
	names := []string{"t", "tid", "k"}
	tests := []struct {
		src  string
		want affine.Expr
	}{
		{src: "32*t + tid", want: affine.NewExpr(3, 0, 32, 1)},
		{src: "-(tid - 1)", want: affine.NewExpr(3, 1, 0, -1)},
		{src: "2*(k+1)*3", want: affine.NewExpr(3, 6, 0, 0, 6)},
		{src: "7", want: affine.NewExpr(3, 7)},
		{src: "t - t", want: affine.NewExpr(3, 0)},
	}
	for _, test := range tests {
		got, err := affine.ParseExpr(names, test.src)
		if err != nil {
			t.Errorf("%q: %v", test.src, err)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%q: unexpected expression (-want +got):\n%s", test.src, diff)
		}
	}
	for _, src := range []string{"t*tid", "x + 1", "t / 2", "1.5", "t +"} {
		if _, err := affine.ParseExpr(names, src); err == nil {
			t.Errorf("%q: expected an error", src)
		}
	}
}

func TestExprString(t *testing.T) {
	names := []string{"t", "tid"}
	tests := []struct {
		e    affine.Expr
		want string
	}{
		{e: affine.NewExpr(2, 0, 32, 1), want: "32t + tid"},
		{e: affine.NewExpr(2, -1, 0, -1), want: "-tid - 1"},
		{e: affine.NewExpr(2, 0), want: "0"},
		{e: affine.NewExpr(2, 5, -2), want: "-2t + 5"},
	}
	for _, test := range tests {
		if got := test.e.String(names); got != test.want {
			t.Errorf("got %q but want %q", got, test.want)
		}
	}
}

func TestExprOverflow(t *testing.T) {
	e := affine.NewExpr(1, math.MaxInt64, 1)
	if _, err := e.Add(affine.NewExpr(1, 1)); !errors.Is(err, affine.ErrOverflow) {
		t.Errorf("got error %v but want %v", err, affine.ErrOverflow)
	}
	if _, err := e.Scale(2); !errors.Is(err, affine.ErrOverflow) {
		t.Errorf("got error %v but want %v", err, affine.ErrOverflow)
	}
}

func TestMapUnion(t *testing.T) {
	space := tiledSpace(t)
	a := affine.FromBasicMap(basicMap(t, space, nil, "32*t + tid"))
	b := affine.FromBasicMap(basicMap(t, space, nil, "32*t + tid + 1"))
	u, err := a.Union(b)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := u.NumDisjuncts(), 2; got != want {
		t.Errorf("got %d disjuncts but want %d", got, want)
	}
	u2, err := u.Union(a)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Equal(u2) {
		t.Errorf("union with an existing disjunct changed the map: %s != %s", u, u2)
	}
	if a.NumDisjuncts() != 1 {
		t.Errorf("union modified its receiver: %s", a)
	}
	other := affine.FromBasicMap(basicMap(t, space, nil, "t", "tid"))
	if _, err := a.Union(other); err == nil {
		t.Errorf("expected an error when computing the union of maps with different ranks")
	}
	if got, want := u.String(), "{ [t, tid, k] -> [32t + tid]; [t, tid, k] -> [32t + tid + 1] }"; got != want {
		t.Errorf("got %q but want %q", got, want)
	}
}

func TestBox(t *testing.T) {
	space := tiledSpace(t)
	slice := []affine.Dim{{Name: "j", Lo: 0, Hi: 9}}
	tests := []struct {
		desc   string
		maps   []*affine.BasicMap
		level  affine.Level
		volume int64
		want   string
		err    error
	}{
		{
			desc:   "one element per thread",
			maps:   []*affine.BasicMap{basicMap(t, space, nil, "32*t + tid")},
			level:  affine.ThreadLevel,
			volume: 1,
			want:   "[32t + tid; 1]",
		},
		{
			desc:   "one element per thread, shared footprint",
			maps:   []*affine.BasicMap{basicMap(t, space, nil, "32*t + tid")},
			level:  affine.SharedLevel,
			volume: 32,
			want:   "[32t; 32]",
		},
		{
			desc: "neighbours",
			maps: []*affine.BasicMap{
				basicMap(t, space, nil, "32*t + tid"),
				basicMap(t, space, nil, "32*t + tid + 1"),
			},
			level:  affine.SharedLevel,
			volume: 33,
			want:   "[32t; 33]",
		},
		{
			desc:   "negative stride",
			maps:   []*affine.BasicMap{basicMap(t, space, nil, "100 - tid", "4*t + k")},
			level:  affine.SharedLevel,
			volume: 32 * 4,
			want:   "[69; 32][4t; 4]",
		},
		{
			desc:   "slice access",
			maps:   []*affine.BasicMap{basicMap(t, space, slice, "t", "j")},
			level:  affine.ThreadLevel,
			volume: 10,
			want:   "[t; 1][0; 10]",
		},
		{
			desc: "transposed accesses",
			maps: []*affine.BasicMap{
				basicMap(t, space, nil, "t"),
				basicMap(t, space, nil, "2*t"),
			},
			level: affine.SharedLevel,
			err:   affine.ErrUnbounded,
		},
	}
	for _, test := range tests {
		m := affine.NewMap(space, len(test.maps[0].Out))
		for _, bm := range test.maps {
			if err := m.AddBasicMap(bm); err != nil {
				t.Fatal(err)
			}
		}
		box, err := m.Box(test.level)
		if test.err != nil {
			if !errors.Is(err, test.err) {
				t.Errorf("%s: got error %v but want %v", test.desc, err, test.err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", test.desc, err)
			continue
		}
		if got := box.Volume(); got != test.volume {
			t.Errorf("%s: got volume %d but want %d", test.desc, got, test.volume)
		}
		if got := box.String(); got != test.want {
			t.Errorf("%s: got box %s but want %s", test.desc, got, test.want)
		}
	}
}

func TestBoxEmpty(t *testing.T) {
	m := affine.NewMap(tiledSpace(t), 1)
	if _, err := m.Box(affine.SharedLevel); !errors.Is(err, affine.ErrUnbounded) {
		t.Errorf("got error %v but want %v", err, affine.ErrUnbounded)
	}
}

// TestBoxOverApproximates enumerates the elements accessed by small maps and
// checks that all of them are in the box computed for the same map.
func TestBoxOverApproximates(t *testing.T) {
	space, err := affine.NewSpace(
		affine.Dim{Name: "t", Kind: affine.Shared},
		affine.Dim{Name: "x", Kind: affine.Thread, Lo: 0, Hi: 3},
		affine.Dim{Name: "y", Kind: affine.Inner, Lo: -2, Hi: 2},
	)
	if err != nil {
		t.Fatal(err)
	}
	srcs := [][]string{
		{"t + 2*x - y"},
		{"3*x + y", "x"},
		{"-x + 5*y + 7*t"},
	}
	for _, src := range srcs {
		bm := basicMap(t, space, nil, src...)
		box, err := affine.FromBasicMap(bm).Box(affine.SharedLevel)
		if err != nil {
			t.Fatalf("%v: %v", src, err)
		}
		const tVal = 3
		distinct := make(map[[2]int64]bool)
		for x := int64(0); x <= 3; x++ {
			for y := int64(-2); y <= 2; y++ {
				var elem [2]int64
				for d, out := range bm.Out {
					val := out.Const + out.Coeff(0)*tVal + out.Coeff(1)*x + out.Coeff(2)*y
					bound := box.Bounds[d]
					offset := bound.Offset.Const + bound.Offset.Coeff(0)*tVal
					if val < offset || val >= offset+bound.Size {
						t.Errorf("%v: element %d at x=%d,y=%d outside of box %s", src, val, x, y, box)
					}
					elem[d] = val
				}
				distinct[elem] = true
			}
		}
		if box.Volume() < int64(len(distinct)) {
			t.Errorf("%v: box volume %d smaller than %d distinct elements", src, box.Volume(), len(distinct))
		}
	}
}

func TestMayIntersect(t *testing.T) {
	space := tiledSpace(t)
	tests := []struct {
		desc  string
		a, b  *affine.BasicMap
		level affine.Level
		want  bool
	}{
		{
			desc:  "same element",
			a:     basicMap(t, space, nil, "32*t + tid"),
			b:     basicMap(t, space, nil, "32*t + tid"),
			level: affine.SharedLevel,
			want:  true,
		},
		{
			desc:  "neighbour accessed by another thread",
			a:     basicMap(t, space, nil, "32*t + tid"),
			b:     basicMap(t, space, nil, "32*t + tid + 1"),
			level: affine.SharedLevel,
			want:  true,
		},
		{
			desc:  "neighbour within the same thread",
			a:     basicMap(t, space, nil, "32*t + tid"),
			b:     basicMap(t, space, nil, "32*t + tid + 1"),
			level: affine.ThreadLevel,
			want:  false,
		},
		{
			desc:  "even and odd elements",
			a:     basicMap(t, space, nil, "64*t + 2*tid"),
			b:     basicMap(t, space, nil, "64*t + 2*tid + 1"),
			level: affine.SharedLevel,
			want:  false,
		},
		{
			desc:  "far apart",
			a:     basicMap(t, space, nil, "32*t + tid"),
			b:     basicMap(t, space, nil, "32*t + tid + 64"),
			level: affine.SharedLevel,
			want:  false,
		},
		{
			desc:  "different shared coefficients",
			a:     basicMap(t, space, nil, "32*t + tid"),
			b:     basicMap(t, space, nil, "tid + 64"),
			level: affine.SharedLevel,
			want:  true,
		},
		{
			desc:  "disjoint along the second dimension",
			a:     basicMap(t, space, nil, "tid", "0"),
			b:     basicMap(t, space, nil, "tid", "1"),
			level: affine.SharedLevel,
			want:  false,
		},
	}
	for _, test := range tests {
		if got := affine.MayIntersect(test.a, test.b, test.level); got != test.want {
			t.Errorf("%s: got %v but want %v", test.desc, got, test.want)
		}
		if got := affine.MayIntersect(test.b, test.a, test.level); got != test.want {
			t.Errorf("%s (swapped): got %v but want %v", test.desc, got, test.want)
		}
	}
}

func TestValidate(t *testing.T) {
	space := tiledSpace(t)
	other, err := affine.NewSpace(affine.Dim{Name: "i", Kind: affine.Shared})
	if err != nil {
		t.Fatal(err)
	}
	bm := basicMap(t, space, nil, "t", "tid")
	if err := bm.Validate(space, 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := bm.Validate(space, 1); err == nil {
		t.Errorf("expected an error for a rank mismatch")
	}
	if err := bm.Validate(other, 2); err == nil {
		t.Errorf("expected an error for a space mismatch")
	}
}
