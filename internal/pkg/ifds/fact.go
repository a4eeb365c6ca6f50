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

// Fact is a single element of an Analyzer's abstract domain (C2). Every
// concrete Fact type must be comparable so that Vertex, and therefore Edge,
// can be used as plain map keys: the domain model deliberately avoids
// slices or maps inside a Fact (see AccessPath, which flattens its selector
// chain into a string for exactly this reason).
type Fact interface {
	// IsZero reports whether this is the distinguished tautological fact
	// that always holds. Every flow-function family must map Zero to a set
	// containing Zero (§4.3).
	IsZero() bool
}

// ZeroFact is the distinguished Zero fact required by IFDS: the tautology
// that seeds every method entry and is never removed (Invariant 4, §3).
type ZeroFact struct{}

// IsZero always reports true for ZeroFact.
func (ZeroFact) IsZero() bool { return true }

func (ZeroFact) String() string { return "Zero" }

// Zero is the single shared Zero value. Analyzers should return this value
// rather than constructing a new ZeroFact, so that equality comparisons
// against ifds.Zero work without a type assertion.
var Zero Fact = ZeroFact{}

// Vertex is a (Statement, Fact) pair (§3). Vertex values are used as map
// keys throughout the solver, so both fields must hold comparable dynamic
// types.
type Vertex struct {
	Stmt Statement
	Fact Fact
}

func (v Vertex) String() string {
	return v.Stmt.String() + " :: " + factString(v.Fact)
}

func factString(f Fact) string {
	if s, ok := f.(interface{ String() string }); ok {
		return s.String()
	}
	return "<fact>"
}
