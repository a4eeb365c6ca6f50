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

// Package taint instantiates the IFDS engine (internal/pkg/ifds) as a
// taint-style analysis: a value reaching a configured sink after passing
// through a configured source, by way of field-sensitive access paths
// (§4.2) translated across calls by the flow functions in this package.
package taint

import (
	"go/token"
	"go/types"

	"github.com/jflow-dev/jflow/internal/pkg/fieldtags"
	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ruleconfig"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"github.com/jflow-dev/jflow/internal/pkg/utils"
	"golang.org/x/tools/go/ssa"
)

// markRegistry assigns a stable bit to every mark name a configuration
// mentions, starting above the built-in marks (§4.2's Marks bitset is
// deliberately small and fixed; user-named marks get the remaining bits).
type markRegistry struct {
	byName map[string]ifds.Marks
	next   ifds.Marks
}

func newMarkRegistry() *markRegistry {
	return &markRegistry{
		byName: map[string]ifds.Marks{"TAINT": ifds.MarkTaint, "NULLNESS": ifds.MarkNullness},
		next:   1 << 8,
	}
}

func (r *markRegistry) bit(name string) ifds.Marks {
	if b, ok := r.byName[name]; ok {
		return b
	}
	b := r.next
	r.next <<= 1
	r.byName[name] = b
	return b
}

// Analyzer is the taint ifds.Analyzer. It is also its own FlowFunctions
// implementation, since flow functions here are stateless given the
// resolved configuration.
type Analyzer struct {
	cfg    *ruleconfig.Config
	marks  *markRegistry
	fields fieldtags.TaggedFields
}

// New builds a taint Analyzer from a resolved configuration (defaults
// merged with any user-supplied rules — see ruleconfig.Merge).
func New(cfg *ruleconfig.Config) *Analyzer {
	return &Analyzer{cfg: cfg, marks: newMarkRegistry()}
}

// WithFieldTags enables the field-tag source specifier (§5 "Supplemented
// Features"): a struct field identified by fields as jflow:"source"-tagged
// is a taint source independent of cfg's method-based SourceRules. Fields
// may be nil, in which case no field is ever treated as a source this way.
func (a *Analyzer) WithFieldTags(fields fieldtags.TaggedFields) *Analyzer {
	a.fields = fields
	return a
}

func (a *Analyzer) FlowFunctions() ifds.FlowFunctions { return a }

// SaveSummaryAndCrossUnit is true: taint is a forward-only analysis whose
// summaries must be visible to other units (§6).
func (a *Analyzer) SaveSummaryAndCrossUnit() bool { return true }

func instrOf(stmt ifds.Statement) ssa.Instruction { return stmt.(ssagraph.Statement).Instr }

func localRoot(v ssa.Value) ifds.AccessPath {
	return ifds.NewRoot(ifds.RootLocal, v.Name(), 0)
}

// sourceFactAt reports the tainted fact introduced when stmt is a call
// matching a configured SourceRule at the "return" position, minting a fresh
// access path for the call's own result. SourceRules at any other position
// (this, argN) are skipped here and are not applied anywhere else in this
// package, so they never introduce a fact.
func (a *Analyzer) sourceFactAt(stmt ifds.Statement) (ifds.MarkedFact, bool) {
	call, ok := instrOf(stmt).(ssa.Value)
	if !ok {
		return ifds.MarkedFact{}, false
	}
	callInstr, ok := instrOf(stmt).(ssa.CallInstruction)
	if !ok {
		return ifds.MarkedFact{}, false
	}
	path, recv, name := decomposeCallee(callInstr)
	for _, rule := range a.cfg.Sources {
		pos, err := ruleconfig.ParsePosition(rule.Position)
		if err != nil || pos.Kind != ruleconfig.PositionReturn {
			continue
		}
		if rule.MethodMatcher.Match(path, recv, name) {
			return ifds.MarkedFact{AP: localRoot(call), Marks: a.marks.bit(rule.Mark)}, true
		}
	}
	return ifds.MarkedFact{}, false
}

// fieldSourceFactAt reports the tainted fact introduced when stmt reads a
// struct field tagged jflow:"source" (§5 "Supplemented Features"): the
// field's address computation (the FieldAddr itself, not some value already
// reaching it) mints the fresh fact, the same way a source call's return
// value does in sourceFactAt.
func (a *Analyzer) fieldSourceFactAt(stmt ifds.Statement) (ifds.MarkedFact, bool) {
	if a.fields == nil {
		return ifds.MarkedFact{}, false
	}
	fa, ok := instrOf(stmt).(*ssa.FieldAddr)
	if !ok || !a.fields.IsSource(fa) {
		return ifds.MarkedFact{}, false
	}
	return ifds.MarkedFact{AP: localRoot(fa), Marks: ifds.MarkTaint}, true
}

func decomposeCallee(call ssa.CallInstruction) (path, recv, name string) {
	callee := call.Common().StaticCallee()
	if callee == nil {
		// Dynamic dispatch: fall back to the declared signature's package-less
		// name so built-in matchers (e.g. an interface method name) can still
		// match on method name alone.
		return "", "", call.Common().Method.Name()
	}
	return utils.DecomposeFunction(callee)
}

// Start returns Zero plus any fact introduced by a source call sitting
// directly at the method's entry statement (§4.3).
func (a *Analyzer) Start(stmt ifds.Statement) []ifds.Fact {
	out := []ifds.Fact{ifds.Zero}
	if mf, ok := a.sourceFactAt(stmt); ok {
		out = append(out, mf)
	}
	if mf, ok := a.fieldSourceFactAt(stmt); ok {
		out = append(out, mf)
	}
	return out
}

// Sequent transfers a fact across one intraprocedural CFG edge.
func (a *Analyzer) Sequent(curr, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	if fact.IsZero() {
		out := []ifds.Fact{ifds.Zero}
		if mf, ok := a.sourceFactAt(curr); ok {
			out = append(out, mf)
		}
		if mf, ok := a.fieldSourceFactAt(curr); ok {
			out = append(out, mf)
		}
		return out
	}
	mf := fact.(ifds.MarkedFact)
	out := []ifds.Fact{mf}
	out = append(out, a.transferThroughInstruction(curr, mf)...)
	return out
}

// transferThroughInstruction derives any additional fact curr generates
// from an existing tainted fact mf: field selection (FieldAddr/Field),
// pointer stores, and call pass-through/sanitizer rules. The original mf
// always continues to hold too (Sequent appends this separately) since SSA
// registers are never overwritten in place.
func (a *Analyzer) transferThroughInstruction(curr ifds.Statement, mf ifds.MarkedFact) []ifds.Fact {
	switch instr := instrOf(curr).(type) {
	case *ssa.FieldAddr:
		if rootMatches(instr.X, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.WithSelector(fieldName(instr), 0).Retarget(localRoot(instr)), Marks: mf.Marks}}
		}
	case *ssa.Field:
		if rootMatches(instr.X, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.WithSelector(fieldName(instr), 0).Retarget(localRoot(instr)), Marks: mf.Marks}}
		}
	case *ssa.Store:
		if v, ok := instr.Addr.(ssa.Value); ok && rootMatches(instr.Val, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(v)), Marks: mf.Marks}}
		}
	case *ssa.Phi:
		// A value sanitized on only one incoming edge (e.g. "x = sanitize(x)"
		// inside an if-branch, left alone on the else-branch) is a distinct SSA
		// register from the unsanitized one; the two merge back into a single
		// value at the Phi. Matching any edge, rather than requiring all edges
		// to carry the fact, is deliberately conservative (§4 "flow functions
		// are not required to be distributive, only sound"): this is what
		// makes sanitization effective only along the branch that actually
		// calls the sanitizer, without needing a separate dominance check over
		// the control-flow graph — the SSA form already encodes it.
		for _, edge := range instr.Edges {
			if rootMatches(edge, mf.AP) {
				return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(instr)), Marks: mf.Marks}}
			}
		}
	case *ssa.MakeInterface:
		if rootMatches(instr.X, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(instr)), Marks: mf.Marks}}
		}
	case *ssa.UnOp:
		if instr.Op == token.MUL && rootMatches(instr.X, mf.AP) {
			return []ifds.Fact{ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(instr)), Marks: mf.Marks}}
		}
	case ssa.CallInstruction:
		return a.transferThroughCall(instr, mf)
	}
	return nil
}

func rootMatches(v ssa.Value, ap ifds.AccessPath) bool {
	return ap.RootKind == ifds.RootLocal && ap.RootName == v.Name()
}

func fieldName(instr ssa.Instruction) string {
	switch t := instr.(type) {
	case *ssa.FieldAddr:
		st, ok := derefStruct(t.X.Type())
		if ok && t.Field < st.NumFields() {
			return st.Field(t.Field).Name()
		}
	case *ssa.Field:
		st, ok := derefStruct(t.X.Type())
		if ok && t.Field < st.NumFields() {
			return st.Field(t.Field).Name()
		}
	}
	return "?"
}

func derefStruct(t types.Type) (*types.Struct, bool) {
	st, ok := utils.Dereference(t).Underlying().(*types.Struct)
	return st, ok
}

// transferThroughCall resolves Sanitizer and PassThrough rules against a
// call site. A matching Sanitizer takes precedence and suppresses any
// PassThrough that would otherwise fire for the same (position, mark) —
// this is what lets an interprocedural wrapper like "id(p) { return
// sanitize(p) }" drop taint on the return path (end-to-end scenario 4):
// sanitize's own result register never receives a MarkedFact, so nothing
// downstream observes it as tainted.
func (a *Analyzer) transferThroughCall(call ssa.CallInstruction, mf ifds.MarkedFact) []ifds.Fact {
	path, recv, name := decomposeCallee(call)
	args := call.Common().Args

	matchesPosition := func(pos ruleconfig.Position) bool {
		switch pos.Kind {
		case ruleconfig.PositionArg:
			return pos.ArgIndex < len(args) && rootMatches(args[pos.ArgIndex], mf.AP)
		case ruleconfig.PositionThis:
			return len(args) > 0 && rootMatches(args[0], mf.AP)
		}
		return false
	}

	for _, rule := range a.cfg.Sanitizers {
		if !rule.MethodMatcher.Match(path, recv, name) {
			continue
		}
		pos, err := ruleconfig.ParsePosition(rule.Position)
		if err != nil || !matchesPosition(pos) {
			continue
		}
		if mf.Marks.Has(a.marks.bit(rule.Mark)) {
			return nil
		}
	}

	for _, rule := range a.cfg.PassThrough {
		if !rule.MethodMatcher.Match(path, recv, name) {
			continue
		}
		from, err := ruleconfig.ParsePosition(rule.From)
		if err != nil || !matchesPosition(from) {
			continue
		}
		to, err := ruleconfig.ParsePosition(rule.To)
		if err != nil {
			continue
		}
		target := targetAccessPath(call, to, mf.AP)
		if target == nil {
			continue
		}
		return []ifds.Fact{ifds.MarkedFact{AP: *target, Marks: mf.Marks.Union(a.marks.bit(rule.Mark))}}
	}

	for i, arg := range args {
		if rootMatches(arg, mf.AP) {
			if out := stdlibPassThrough(call, i, mf); out != nil {
				return out
			}
			break
		}
	}
	return nil
}

func targetAccessPath(call ssa.CallInstruction, to ruleconfig.Position, ap ifds.AccessPath) *ifds.AccessPath {
	switch to.Kind {
	case ruleconfig.PositionReturn:
		if v, ok := call.(ssa.Value); ok {
			retargeted := ap.Retarget(localRoot(v))
			return &retargeted
		}
	case ruleconfig.PositionArg:
		args := call.Common().Args
		if to.ArgIndex < len(args) {
			retargeted := ap.Retarget(localRoot(args[to.ArgIndex]))
			return &retargeted
		}
	}
	return nil
}

// CallToStart substitutes an actual argument's access path for the
// corresponding formal parameter when entering callee.
func (a *Analyzer) CallToStart(call ifds.Statement, callee ifds.Method, fact ifds.Fact) []ifds.Fact {
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

// CallToReturn passes every fact through unchanged: anything the call
// actually affects is additionally reintroduced at the return site by
// ExitToReturn once (or if) a summary edge for the callee exists.
func (a *Analyzer) CallToReturn(_, _ ifds.Statement, fact ifds.Fact) []ifds.Fact {
	return []ifds.Fact{fact}
}

// ExitToReturn translates a callee-exit fact back into the caller's
// return-site vertex: a tainted formal parameter maps back to the
// corresponding actual argument; a tainted value at the exit statement's
// own instruction (the thing being returned) maps to the call's result.
func (a *Analyzer) ExitToReturn(call, _, exit ifds.Statement, fact ifds.Fact) []ifds.Fact {
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
// tainted fact on a sink-matching argument position of a call (§4.4
// "Propagate", step 4).
func (a *Analyzer) SummaryFacts(edge ifds.Edge) []ifds.SummaryFact {
	mf, ok := edge.To.Fact.(ifds.MarkedFact)
	if !ok {
		return nil
	}
	call, ok := instrOf(edge.To.Stmt).(ssa.CallInstruction)
	if !ok {
		return nil
	}
	path, recv, name := decomposeCallee(call)
	args := call.Common().Args

	var out []ifds.SummaryFact
	for _, rule := range a.cfg.Sinks {
		if !rule.MethodMatcher.Match(path, recv, name) {
			continue
		}
		pos, err := ruleconfig.ParsePosition(rule.Position)
		if err != nil {
			continue
		}
		var hit bool
		switch pos.Kind {
		case ruleconfig.PositionArg:
			hit = pos.ArgIndex < len(args) && rootMatches(args[pos.ArgIndex], mf.AP)
		case ruleconfig.PositionThis:
			hit = len(args) > 0 && rootMatches(args[0], mf.AP)
		}
		if !hit || !mf.Marks.Has(a.marks.bit(rule.Mark)) {
			continue
		}
		v := ifds.Vulnerability{
			Method: edge.To.Stmt.Method(),
			Sink:   edge.To,
			Rule:   "taint",
			CWE:    rule.CWE,
		}
		out = append(out, ifds.SummaryFact{Vulnerability: &v})
	}
	return out
}

// SummaryFactsPost performs no post-hoc detection for the taint analysis:
// every finding is detectable edge-by-edge in SummaryFacts.
func (a *Analyzer) SummaryFactsPost(ifds.Aggregate) []ifds.SummaryFact { return nil }
