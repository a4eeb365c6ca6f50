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

// Package unused instantiates the IFDS engine as a forward-only,
// intraprocedural-by-construction analysis that flags a local assigned a
// value that is never subsequently read before the enclosing method
// returns. Unlike taint and nullness, its Fact is a bare access-path
// membership set with no Marks bitset at all, demonstrating that the
// engine's domain model is not taint-specific (§4.2).
package unused

import (
	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"golang.org/x/tools/go/ssa"
)

func instrOf(stmt ifds.Statement) ssa.Instruction { return stmt.(ssagraph.Statement).Instr }

func localRoot(v ssa.Value) ifds.AccessPath { return ifds.NewRoot(ifds.RootLocal, v.Name(), 0) }

func rootMatches(v ssa.Value, ap ifds.AccessPath) bool {
	return ap.RootKind == ifds.RootLocal && ap.RootName == v.Name()
}

// AssignedFact holds the access path of a local that has been assigned but
// not yet read. There is no Marks field: "assigned" is a plain boolean
// membership condition, not a bitset of independent properties.
type AssignedFact struct {
	AP ifds.AccessPath
}

// IsZero is always false: ZeroFact is the only zero fact.
func (AssignedFact) IsZero() bool { return false }

func (f AssignedFact) String() string { return "unread(" + f.AP.String() + ")" }

// Analyzer is the unused-variable ifds.Analyzer. It holds the Graph it
// runs over so SummaryFacts can recognize an exit statement (§4.4 step 4
// only fires a finding once a fact survives to a method exit unread).
type Analyzer struct {
	graph ifds.Graph
}

// New builds an unused-variable Analyzer over graph.
func New(graph ifds.Graph) *Analyzer { return &Analyzer{graph: graph} }

func (a *Analyzer) FlowFunctions() ifds.FlowFunctions { return a }

// SaveSummaryAndCrossUnit is false: an unread local never crosses a call
// boundary (CallToStart always kills it), so no other unit's call site
// could ever consume its summary.
func (a *Analyzer) SaveSummaryAndCrossUnit() bool { return false }

func assignedFactAt(stmt ifds.Statement) (AssignedFact, bool) {
	store, ok := instrOf(stmt).(*ssa.Store)
	if !ok {
		return AssignedFact{}, false
	}
	if _, isAlloc := store.Addr.(*ssa.Alloc); !isAlloc {
		return AssignedFact{}, false
	}
	v, ok := store.Addr.(ssa.Value)
	if !ok {
		return AssignedFact{}, false
	}
	return AssignedFact{AP: localRoot(v)}, true
}

// reads reports whether instr uses ap's local as an operand for anything
// other than redefining it (a Store targeting the same address is a write,
// not a read, of the value currently held there).
func reads(instr ssa.Instruction, ap ifds.AccessPath) bool {
	for _, op := range instr.Operands(nil) {
		if op == nil || *op == nil {
			continue
		}
		if !rootMatches(*op, ap) {
			continue
		}
		if store, ok := instr.(*ssa.Store); ok && store.Addr == *op {
			continue
		}
		return true
	}
	return false
}

// Start returns Zero plus an assigned-fact when the entry statement itself
// is a qualifying store.
func (a *Analyzer) Start(stmt ifds.Statement) []ifds.Fact {
	out := []ifds.Fact{ifds.Zero}
	if af, ok := assignedFactAt(stmt); ok {
		out = append(out, af)
	}
	return out
}

// Sequent kills an assigned-fact the first time curr reads it, and
// otherwise carries it forward, also generating a fresh fact if curr is
// itself a qualifying assignment.
func (a *Analyzer) Sequent(curr, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		out := []ifds.Fact{ifds.Zero}
		if af, ok := assignedFactAt(curr); ok {
			out = append(out, af)
		}
		return out
	}
	af := fact.(AssignedFact)
	if reads(instrOf(curr), af.AP) {
		return nil
	}
	out := []ifds.Fact{af}
	if af2, ok := assignedFactAt(curr); ok {
		out = append(out, af2)
	}
	return out
}

// CallToStart kills every non-zero fact: an unread-local finding is
// intraprocedural by construction, so nothing needs translating into a
// callee's formal parameters.
func (a *Analyzer) CallToStart(_ ifds.Statement, _ ifds.Method, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		return []ifds.Fact{ifds.Zero}
	}
	return nil
}

// CallToReturn passes every fact through unchanged: a call the analysis
// never translates into a callee cannot itself read a caller-side local.
func (a *Analyzer) CallToReturn(_, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	return []ifds.Fact{fact}
}

// ExitToReturn never introduces a fact: nothing was sent into the callee
// via CallToStart, so nothing returns from it either.
func (a *Analyzer) ExitToReturn(_, _, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		return []ifds.Fact{ifds.Zero}
	}
	return nil
}

// SummaryFacts reports a Vulnerability when an assigned-fact survives all
// the way to a method exit statement without being read.
func (a *Analyzer) SummaryFacts(edge ifds.Edge) []ifds.SummaryFact {
	af, ok := edge.To.Fact.(AssignedFact)
	if !ok {
		return nil
	}
	if !ifds.IsExit(a.graph, edge.To.Stmt) {
		return nil
	}
	v := ifds.Vulnerability{Method: edge.To.Stmt.Method(), Sink: edge.To, Rule: "unused"}
	return []ifds.SummaryFact{{Vulnerability: &v}}
}

// SummaryFactsPost performs no post-hoc detection: every finding is
// detectable edge-by-edge in SummaryFacts.
func (a *Analyzer) SummaryFactsPost(ifds.Aggregate) []ifds.SummaryFact { return nil }
