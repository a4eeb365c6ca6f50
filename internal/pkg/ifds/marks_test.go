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

import "testing"

func TestMarksHasAndAny(t *testing.T) {
	m := MarkTaint.Union(MarkNullness)

	if !m.Has(MarkTaint) {
		t.Error("m.Has(MarkTaint) = false, want true")
	}
	if m.Has(MarkTaint.Union(MarkUnused)) {
		t.Error("m.Has(TAINT|UNUSED) = true, want false: m lacks UNUSED")
	}
	if !m.Any(MarkUnused.Union(MarkNullness)) {
		t.Error("m.Any(UNUSED|NULLNESS) = false, want true: m has NULLNESS")
	}
}

func TestMarksUnionAndWithout(t *testing.T) {
	m := MarkTaint.Union(MarkNullness).Without(MarkTaint)
	if m.Has(MarkTaint) {
		t.Error("MarkTaint still set after Without(MarkTaint)")
	}
	if !m.Has(MarkNullness) {
		t.Error("MarkNullness cleared by Without(MarkTaint); only the named bit should be removed")
	}
}

func TestMarksString(t *testing.T) {
	tests := []struct {
		m    Marks
		want string
	}{
		{0, "-"},
		{MarkTaint, "TAINT"},
		{MarkTaint.Union(MarkNullness), "TAINT|NULLNESS"},
		{1 << 9, "MARK(9)"},
	}
	for _, tt := range tests {
		if got := tt.m.String(); got != tt.want {
			t.Errorf("Marks(%d).String() = %q, want %q", tt.m, got, tt.want)
		}
	}
}

func TestMarkedFactSanitized(t *testing.T) {
	f := MarkedFact{AP: NewRoot(RootLocal, "x", 0), Marks: MarkTaint.Union(MarkNullness)}

	clean, changed := f.Sanitized(MarkTaint)
	if !changed {
		t.Fatal("Sanitized(MarkTaint) reported no change, want true")
	}
	if clean.Marks.Has(MarkTaint) {
		t.Error("clean.Marks still has MarkTaint after Sanitized(MarkTaint)")
	}
	if !clean.Marks.Has(MarkNullness) {
		t.Error("clean.Marks lost MarkNullness, Sanitized should only remove the requested bits")
	}

	_, changed = f.Sanitized(MarkUnused)
	if changed {
		t.Error("Sanitized(MarkUnused) reported a change when f carries no such mark")
	}
}

func TestMarkedFactWithMarks(t *testing.T) {
	f := MarkedFact{AP: NewRoot(RootLocal, "x", 0), Marks: MarkTaint}
	got := f.WithMarks(MarkNullness)
	if !got.Marks.Has(MarkTaint) || !got.Marks.Has(MarkNullness) {
		t.Errorf("WithMarks union = %s, want both TAINT and NULLNESS set", got.Marks)
	}
}
