// Copyright 2024 The jflow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ifds

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAccessPathWithSelector(t *testing.T) {
	root := NewRoot(RootLocal, "x", 0)
	p := root.WithSelector("a", 0).WithSelector("b", 0)

	if got, want := p.Depth(), 2; got != want {
		t.Errorf("Depth() = %d, want %d", got, want)
	}
	if got, want := p.String(), "local:x.a.b"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestAccessPathWithSelectorTruncates(t *testing.T) {
	p := NewRoot(RootLocal, "x", 0)
	for i := 0; i < 10; i++ {
		p = p.WithSelector("f", 3)
	}
	if got, want := p.Depth(), 3; got != want {
		t.Errorf("Depth() after truncation = %d, want %d", got, want)
	}
}

func TestAccessPathDropSelector(t *testing.T) {
	p := NewRoot(RootLocal, "x", 0).WithSelector("a", 0).WithSelector("b", 0)

	next, ok := p.DropSelector()
	if !ok {
		t.Fatal("DropSelector() returned ok = false on a non-bare path")
	}
	if got, want := next.Selectors(), []string{"b"}; !cmp.Equal(got, want) {
		t.Errorf("Selectors() after drop = %v, want %v", got, want)
	}

	bare := NewRoot(RootLocal, "x", 0)
	if _, ok := bare.DropSelector(); ok {
		t.Error("DropSelector() on a bare path returned ok = true")
	}
}

func TestAccessPathStartsWith(t *testing.T) {
	root := NewRoot(RootLocal, "x", 0)
	a := root.WithSelector("f", 0)
	b := root.WithSelector("f", 0).WithSelector("g", 0)
	other := NewRoot(RootLocal, "y", 0).WithSelector("f", 0)

	if !b.StartsWith(a) {
		t.Error("b.StartsWith(a) = false, want true (b extends a)")
	}
	if !a.StartsWith(a) {
		t.Error("a.StartsWith(a) = false, want true (reflexive)")
	}
	if a.StartsWith(b) {
		t.Error("a.StartsWith(b) = true, want false (a is shorter than b)")
	}
	if other.StartsWith(a) {
		t.Error("other.StartsWith(a) = true, want false (different roots)")
	}
	if !a.StartsWith(root) {
		t.Error("a.StartsWith(root) = false, want true (bare prefix matches anything sharing its root)")
	}
}

func TestAccessPathRetarget(t *testing.T) {
	p := NewRoot(RootLocal, "x", 0).WithSelector("f", 0)
	formal := NewRoot(RootParam, "", 2)

	got := p.Retarget(formal)
	if got.RootKind != RootParam || got.ParamIndex != 2 {
		t.Errorf("Retarget() root = %+v, want RootParam idx 2", got)
	}
	if got, want := got.Selectors(), []string{"f"}; !cmp.Equal(got, want) {
		t.Errorf("Retarget() kept selectors = %v, want %v", got, want)
	}
}

func TestAccessPathEqual(t *testing.T) {
	a := NewRoot(RootLocal, "x", 0).WithSelector("f", 0)
	b := NewRoot(RootLocal, "x", 0).WithSelector("f", 0)
	c := NewRoot(RootLocal, "x", 0).WithSelector("g", 0)

	if !a.Equal(b) {
		t.Error("a.Equal(b) = false, want true")
	}
	if a.Equal(c) {
		t.Error("a.Equal(c) = true, want false")
	}
	if a != b {
		t.Error("a != b for structurally identical AccessPaths; AccessPath must stay a plain comparable struct")
	}
}
