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

// Package npe instantiates the IFDS engine (internal/pkg/ifds) as a
// bidirectional nullness analysis (§4.7, C7): a forward pass tracks values
// that may be nil, a backward pass over the reversed graph tracks locals
// dereferenced later, and the two are coupled by a BidirectionalRunner so a
// dereference discovered walking backward seeds an explicit nullness fact
// at the local's declaration site, widening what the forward pass treats
// as worth tracking beyond its own explicit nil-store sources.
package npe

import (
	"go/token"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"golang.org/x/tools/go/ssa"
)

func instrOf(stmt ifds.Statement) ssa.Instruction { return stmt.(ssagraph.Statement).Instr }

func localRoot(v ssa.Value) ifds.AccessPath { return ifds.NewRoot(ifds.RootLocal, v.Name(), 0) }

func rootMatches(v ssa.Value, ap ifds.AccessPath) bool {
	return ap.RootKind == ifds.RootLocal && ap.RootName == v.Name()
}

func isNilConst(v ssa.Value) bool {
	c, ok := v.(*ssa.Const)
	return ok && c.IsNil()
}

// isDereference reports whether instr dereferences the value bound by ap.
func isDereference(instr ssa.Instruction, ap ifds.AccessPath) bool {
	switch t := instr.(type) {
	case *ssa.UnOp:
		return t.Op == token.MUL && rootMatches(t.X, ap)
	case *ssa.FieldAddr:
		return rootMatches(t.X, ap)
	case *ssa.Field:
		return rootMatches(t.X, ap)
	case *ssa.IndexAddr:
		return rootMatches(t.X, ap)
	case ssa.CallInstruction:
		if t.Common().IsInvoke() {
			return rootMatches(t.Common().Value, ap)
		}
	}
	return false
}

// dereferencedOperand returns the access path of the value instr
// dereferences, if any — the root a backward fact should be seeded with.
func dereferencedOperand(instr ssa.Instruction) (ifds.AccessPath, bool) {
	switch t := instr.(type) {
	case *ssa.UnOp:
		if t.Op == token.MUL {
			return localRoot(t.X), true
		}
	case *ssa.FieldAddr:
		return localRoot(t.X), true
	case *ssa.Field:
		return localRoot(t.X), true
	case *ssa.IndexAddr:
		return localRoot(t.X), true
	case ssa.CallInstruction:
		if t.Common().IsInvoke() {
			return localRoot(t.Common().Value), true
		}
	}
	return ifds.AccessPath{}, false
}

// ForwardAnalyzer tracks values that may be nil, flagging a dereference of
// such a value as a vulnerability. It also doubles as its own
// FlowFunctions, as flow functions here are stateless.
type ForwardAnalyzer struct{}

// NewForward builds the forward half of the nullness pair.
func NewForward() *ForwardAnalyzer { return &ForwardAnalyzer{} }

func (a *ForwardAnalyzer) FlowFunctions() ifds.FlowFunctions { return a }

// SaveSummaryAndCrossUnit is true: a nullable value's summary must be
// visible to other units' call sites, same as taint.
func (a *ForwardAnalyzer) SaveSummaryAndCrossUnit() bool { return true }

func nilFactAt(stmt ifds.Statement) (ifds.MarkedFact, bool) {
	store, ok := instrOf(stmt).(*ssa.Store)
	if !ok || !isNilConst(store.Val) {
		return ifds.MarkedFact{}, false
	}
	v, ok := store.Addr.(ssa.Value)
	if !ok {
		return ifds.MarkedFact{}, false
	}
	return ifds.MarkedFact{AP: localRoot(v), Marks: ifds.MarkNullness}, true
}

// Start returns Zero plus a nullness fact when the entry statement itself
// stores a literal nil.
func (a *ForwardAnalyzer) Start(stmt ifds.Statement) []ifds.Fact {
	out := []ifds.Fact{ifds.Zero}
	if mf, ok := nilFactAt(stmt); ok {
		out = append(out, mf)
	}
	return out
}

// Sequent transfers a nullness fact across one intraprocedural edge.
func (a *ForwardAnalyzer) Sequent(curr, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		out := []ifds.Fact{ifds.Zero}
		if mf, ok := nilFactAt(curr); ok {
			out = append(out, mf)
		}
		return out
	}
	mf := fact.(ifds.MarkedFact)
	out := []ifds.Fact{mf}
	out = append(out, a.transfer(curr, mf)...)
	return out
}

func (a *ForwardAnalyzer) transfer(curr ifds.Statement, mf ifds.MarkedFact) []ifds.Fact {
	switch instr := instrOf(curr).(type) {
	case *ssa.Store:
		if v, ok := instr.Addr.(ssa.Value); ok && rootMatches(instr.Val, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(v)), Marks: mf.Marks}}
		}
	case *ssa.MakeInterface:
		if rootMatches(instr.X, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(instr)), Marks: mf.Marks}}
		}
	}
	return nil
}

// CallToStart substitutes an actual argument's access path for the
// corresponding formal parameter when entering callee.
func (a *ForwardAnalyzer) CallToStart(call ifds.Statement, _ ifds.Method, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		return []ifds.Fact{ifds.Zero}
	}
	mf := fact.(ifds.MarkedFact)
	callInstr, ok := instrOf(call).(ssa.CallInstruction)
	if !ok {
		return nil
	}
	for i, arg := range callInstr.Common().Args {
		if rootMatches(arg, mf.AP) {
			formal := ifds.NewRoot(ifds.RootParam, "", i)
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(formal), Marks: mf.Marks}}
		}
	}
	return nil
}

// CallToReturn passes every fact through; ExitToReturn reintroduces
// whatever the callee's summary actually affects.
func (a *ForwardAnalyzer) CallToReturn(_, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	return []ifds.Fact{fact}
}

// ExitToReturn translates a callee-exit nullness fact back into the
// caller's return-site vertex.
func (a *ForwardAnalyzer) ExitToReturn(call, _, exit ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		return []ifds.Fact{ifds.Zero}
	}
	mf := fact.(ifds.MarkedFact)
	callInstr, ok := instrOf(call).(ssa.CallInstruction)
	if !ok {
		return nil
	}

	if mf.AP.RootKind == ifds.RootParam {
		args := callInstr.Common().Args
		if mf.AP.ParamIndex < 0 || mf.AP.ParamIndex >= len(args) {
			return nil
		}
		return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(args[mf.AP.ParamIndex])), Marks: mf.Marks}}
	}

	if ret, ok := instrOf(exit).(*ssa.Return); ok {
		for _, res := range ret.Results {
			if rootMatches(res, mf.AP) {
				if v, ok := callInstr.(ssa.Value); ok {
					return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(v)), Marks: mf.Marks}}
				}
			}
		}
	}
	return nil
}

// SummaryFacts reports a Vulnerability whenever a newly added edge lands a
// nullness fact on the operand of a dereferencing instruction.
func (a *ForwardAnalyzer) SummaryFacts(edge ifds.Edge) []ifds.SummaryFact {
	mf, ok := edge.To.Fact.(ifds.MarkedFact)
	if !ok || !mf.Marks.Has(ifds.MarkNullness) {
		return nil
	}
	if !isDereference(instrOf(edge.To.Stmt), mf.AP) {
		return nil
	}
	v := ifds.Vulnerability{Method: edge.To.Stmt.Method(), Sink: edge.To, Rule: "npe"}
	return []ifds.SummaryFact{{Vulnerability: &v}}
}

// SummaryFactsPost performs no post-hoc detection: every finding is
// detectable edge-by-edge in SummaryFacts.
func (a *ForwardAnalyzer) SummaryFactsPost(ifds.Aggregate) []ifds.SummaryFact { return nil }

// BackwardAnalyzer runs over the reversed graph, seeding a fact at every
// dereferencing instruction and carrying it, unmodified, back toward the
// local's declaration. It never reports a Vulnerability itself — its
// findings only feed the paired ForwardAnalyzer through the
// BidirectionalRunner's bridge (ForwardFromBackward below).
type BackwardAnalyzer struct{}

// NewBackward builds the backward half of the nullness pair.
func NewBackward() *BackwardAnalyzer { return &BackwardAnalyzer{} }

func (a *BackwardAnalyzer) FlowFunctions() ifds.FlowFunctions { return a }

// SaveSummaryAndCrossUnit is false: the backward pass's summaries are
// consumed only by its paired forward runner, never other units (§4.7).
func (a *BackwardAnalyzer) SaveSummaryAndCrossUnit() bool { return false }

func derefFactAt(stmt ifds.Statement) (ifds.MarkedFact, bool) {
	ap, ok := dereferencedOperand(instrOf(stmt))
	if !ok {
		return ifds.MarkedFact{}, false
	}
	return ifds.MarkedFact{AP: ap, Marks: ifds.MarkNullness}, true
}

// Start seeds a fact when the reversed graph's entry statement (the
// original method's exit) is itself a dereference.
func (a *BackwardAnalyzer) Start(stmt ifds.Statement) []ifds.Fact {
	out := []ifds.Fact{ifds.Zero}
	if mf, ok := derefFactAt(stmt); ok {
		out = append(out, mf)
	}
	return out
}

// Sequent carries a dereferenced-later fact unchanged across one
// intraprocedural (reversed) edge, generating a fresh one at curr if curr
// is itself a dereference.
func (a *BackwardAnalyzer) Sequent(curr, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		out := []ifds.Fact{ifds.Zero}
		if mf, ok := derefFactAt(curr); ok {
			out = append(out, mf)
		}
		return out
	}
	return []ifds.Fact{fact}
}

// CallToStart is unreachable: ssagraph's reversed Graph.Callees always
// returns nil, so the backward pass never encounters a call site — it is
// intraprocedural only by design (§4.7).
func (a *BackwardAnalyzer) CallToStart(ifds.Statement, ifds.Method, ifds.Fact) []ifds.Fact { return nil }

func (a *BackwardAnalyzer) CallToReturn(_, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	return []ifds.Fact{fact}
}

func (a *BackwardAnalyzer) ExitToReturn(_, _, _ ifds.Statement, _ ifds.Fact) []ifds.Fact { return nil }

// SummaryFacts and SummaryFactsPost never report: the backward pass only
// discovers facts, it does not itself flag vulnerabilities.
func (a *BackwardAnalyzer) SummaryFacts(ifds.Edge) []ifds.SummaryFact          { return nil }
func (a *BackwardAnalyzer) SummaryFactsPost(ifds.Aggregate) []ifds.SummaryFact { return nil }

// ForwardFromBackward builds the bridge function (§4.7) that translates a
// newly completed backward edge into forward seed edges: when the backward
// pass's dereferenced-later fact reaches a local's own Alloc instruction
// (the local's declaration site), it injects that fact as a forward
// nullness seed there, widening the forward pass's tracking beyond its own
// explicit nil-store sources.
func ForwardFromBackward(graph ifds.Graph) func(ifds.Edge) []ifds.Edge {
	return func(edge ifds.Edge) []ifds.Edge {
		mf, ok := edge.To.Fact.(ifds.MarkedFact)
		if !ok || !mf.Marks.Has(ifds.MarkNullness) {
			return nil
		}
		alloc, ok := instrOf(edge.To.Stmt).(*ssa.Alloc)
		if !ok || !rootMatches(alloc, mf.AP) {
			return nil
		}
		method := edge.To.Stmt.Method()
		var out []ifds.Edge
		for _, entry := range graph.EntryPoints(method) {
			out = append(out, ifds.Edge{
				From: ifds.Vertex{Stmt: entry, Fact: ifds.Zero},
				To:   ifds.Vertex{Stmt: edge.To.Stmt, Fact: mf},
			})
		}
		return out
	}
}

// Use with ifds.NewBidirectionalRunnerFactory to build the constructor
// ifds.NewManager expects, e.g.:
//
//	ifds.NewBidirectionalRunnerFactory(npe.NewForward(), npe.NewBackward(), npe.ForwardFromBackward(graph), nil)
