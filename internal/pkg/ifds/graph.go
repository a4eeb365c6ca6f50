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

// Package ifds implements an interprocedural, finite, distributive-subset
// (IFDS) dataflow solver in the style of Reps-Horwitz-Sagiv, extended per
// Naeem-Lhoták-Rodriguez for supergraphs that are only discovered as the
// analysis runs (virtual dispatch, reflection-free dynamic call resolution).
//
// The solver is agnostic to the language being analyzed: it is driven
// entirely through the Graph, FlowFunctions and Analyzer interfaces in this
// package. A concrete Graph adapter (for example internal/pkg/ssagraph, over
// golang.org/x/tools/go/ssa) supplies the application graph; a concrete
// Analyzer (for example internal/pkg/taint) supplies the flow functions and
// vulnerability detection.
package ifds

// Statement is an opaque handle to a single instruction. Equality is
// structural: two Statement values that refer to the same instruction must
// compare equal with ==, so Statement implementations must be comparable
// (pointers, or small value types).
type Statement interface {
	// ID is a stable identifier, unique within the enclosing Method, used
	// for deterministic reporting.
	ID() string
	// Method returns the enclosing Method.
	Method() Method
	// String returns a human-readable rendering for diagnostics and traces.
	String() string
}

// Method is an opaque handle to a procedure. Equality is identity-based
// (implementations should be comparable, e.g. a pointer or an interned ID).
type Method interface {
	// ID is a stable identifier used for map keys and deterministic sorting.
	ID() string
	// String returns a human-readable name, e.g. "pkg.Type.Method".
	String() string
}

// Less imposes the total order over methods required by §3 for
// deterministic iteration and reporting. Implementations that do not
// implement Ordered are ordered by ID() instead.
type Ordered interface {
	Less(other Method) bool
}

// Graph is the application-graph interface the solver is driven by (C1).
// A Graph never mutates visible state; implementations may build the
// underlying representation lazily, but every method must be safe to call
// concurrently from multiple goroutines since several unit runners may
// query the same Graph at once.
type Graph interface {
	// EntryPoints returns the statements at which control may enter m.
	EntryPoints(m Method) []Statement
	// ExitPoints returns the statements that have no successor in the
	// natural direction of this graph (returns, and — in the reversed view —
	// the statements symmetric to entries).
	ExitPoints(m Method) []Statement
	// Successors returns every statement that may execute immediately after
	// stmt along some path.
	Successors(stmt Statement) []Statement
	// Callees returns the methods stmt may invoke. A non-empty result marks
	// stmt as a call site; Naeem-Lhoták-Rodriguez on-the-fly supergraph
	// discovery means this set may grow as more of the program is explored,
	// so callers must not cache it across solver iterations.
	Callees(stmt Statement) []Method
	// MethodOf returns the method that contains stmt.
	MethodOf(stmt Statement) Method
	// Reversed returns a Graph presenting the same instructions with
	// predecessor/successor (and therefore entry/exit) roles swapped, for
	// use by the backward half of a bidirectional runner (C7).
	Reversed() Graph
}

// IsCall reports whether stmt is a call site: one whose Callees list is
// non-empty.
func IsCall(g Graph, stmt Statement) bool {
	return len(g.Callees(stmt)) > 0
}

// IsExit reports whether stmt is an exit statement of its enclosing method:
// membership in ExitPoints, not merely "has no successors" (an exit
// statement may still have exceptional successors, per §4.4).
func IsExit(g Graph, stmt Statement) bool {
	for _, e := range g.ExitPoints(stmt.Method()) {
		if e.ID() == stmt.ID() {
			return true
		}
	}
	return false
}

// MethodLess orders two methods using Ordered when available, falling back
// to a lexical comparison of their IDs so that reporting is always
// deterministic (§4.4 "Ordering and tie-breaks").
func MethodLess(a, b Method) bool {
	if oa, ok := a.(Ordered); ok {
		return oa.Less(b)
	}
	return a.ID() < b.ID()
}
