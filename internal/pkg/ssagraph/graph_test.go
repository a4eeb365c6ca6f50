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

package ssagraph

import (
	"reflect"
	"testing"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/analysistest"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
)

type analyzerResult struct {
	funcs map[string]*ssa.Function
}

var testAnalyzer = &analysis.Analyzer{
	Name:       "graphtest",
	Doc:        "test harness exposing built SSA functions to TestGraph",
	Run:        runTest,
	Requires:   []*analysis.Analyzer{buildssa.Analyzer},
	ResultType: reflect.TypeOf(analyzerResult{}),
}

func runTest(pass *analysis.Pass) (interface{}, error) {
	in := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	result := analyzerResult{funcs: make(map[string]*ssa.Function)}
	for _, fn := range in.SrcFuncs {
		result.funcs[fn.Name()] = fn
	}
	return result, nil
}

func TestGraph(t *testing.T) {
	dir := analysistest.TestData()
	rs := analysistest.Run(t, dir, testAnalyzer, "graphtest")
	if len(rs) != 1 {
		t.Fatalf("got %d results, want 1", len(rs))
	}
	funcs := rs[0].Result.(analyzerResult).funcs

	caller, ok := funcs["caller"]
	if !ok {
		t.Fatal("graphtest.caller not found in built SSA")
	}
	callee, ok := funcs["callee"]
	if !ok {
		t.Fatal("graphtest.callee not found in built SSA")
	}
	branchy, ok := funcs["branchy"]
	if !ok {
		t.Fatal("graphtest.branchy not found in built SSA")
	}

	g := New()
	callerMethod := Method{Fn: caller}

	entries := g.EntryPoints(callerMethod)
	if len(entries) != 1 {
		t.Fatalf("len(EntryPoints(caller)) = %d, want 1", len(entries))
	}
	if entries[0].(Statement).Instr != caller.Blocks[0].Instrs[0] {
		t.Error("EntryPoints(caller) did not return the first instruction of the entry block")
	}

	exits := g.ExitPoints(callerMethod)
	if len(exits) == 0 {
		t.Fatal("ExitPoints(caller) returned nothing")
	}
	for _, e := range exits {
		if len(e.(Statement).Instr.Block().Succs) != 0 {
			t.Errorf("ExitPoints(caller) returned a statement whose block has successors: %s", e)
		}
	}

	// branchy has two return paths; assert that it reports at least one
	// exit.
	branchyExits := g.ExitPoints(Method{Fn: branchy})
	if len(branchyExits) == 0 {
		t.Fatal("ExitPoints(branchy) returned nothing")
	}

	// Find the call instruction in caller and check Callees resolves it to
	// callee via StaticCallee.
	var callStmt ifds.Statement
	for _, b := range caller.Blocks {
		for _, instr := range b.Instrs {
			if ci, ok := instr.(ssa.CallInstruction); ok && ci.Common().StaticCallee() == callee {
				callStmt = Statement{Instr: instr}
			}
		}
	}
	if callStmt == nil {
		t.Fatal("did not find a call instruction in caller resolving to callee")
	}
	callees := g.Callees(callStmt)
	if len(callees) != 1 || callees[0].(Method).Fn != callee {
		t.Fatalf("Callees(call to callee) = %v, want [callee]", callees)
	}
	if !ifds.IsCall(g, callStmt) {
		t.Error("IsCall(call to callee) = false, want true")
	}

	// A non-call instruction must report no callees.
	if g.Callees(exits[0]) != nil {
		t.Error("Callees(exit of caller) != nil, want nil for a non-call instruction")
	}

	if g.MethodOf(callStmt).ID() != callerMethod.ID() {
		t.Errorf("MethodOf(call site) = %s, want %s", g.MethodOf(callStmt).ID(), callerMethod.ID())
	}

	// Under Reversed, entry points are the original exits and no callees
	// are reported.
	rg := g.Reversed()
	if rgEntries := rg.EntryPoints(callerMethod); len(rgEntries) == 0 {
		t.Error("Reversed().EntryPoints(caller) returned nothing; want the original exit statements")
	}
	if rg.Callees(callStmt) != nil {
		t.Error("Reversed().Callees(call site) != nil, want nil: reversed graphs never report callees")
	}
}
