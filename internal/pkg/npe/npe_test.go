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

package npe

import (
	"context"
	"reflect"
	"testing"
	"time"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/analysistest"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
)

type analyzerResult struct {
	funcs map[string]*ssa.Function
}

var testAnalyzer = &analysis.Analyzer{
	Name:       "npetest",
	Doc:        "test harness exposing built SSA functions to TestBidirectional",
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

// TestBidirectional exercises the forward/backward nullness pair against
// real SSA: derefNil stores a literal nil into a local and then dereferences
// it through a FieldAddr, which the forward pass alone already catches;
// derefOK never stores nil into the local it dereferences, so it must report
// nothing.
func TestBidirectional(t *testing.T) {
	dir := analysistest.TestData()
	rs := analysistest.Run(t, dir, testAnalyzer, "npetest")
	if len(rs) != 1 {
		t.Fatalf("got %d results, want 1", len(rs))
	}
	funcs := rs[0].Result.(analyzerResult).funcs

	derefNil, ok := funcs["derefNil"]
	if !ok {
		t.Fatal("npetest.derefNil not found in built SSA")
	}
	derefOK, ok := funcs["derefOK"]
	if !ok {
		t.Fatal("npetest.derefOK not found in built SSA")
	}

	graph := ssagraph.New()
	store := ifds.NewSummaryStore(ifds.DefaultReplayCap)
	newRunner := ifds.NewBidirectionalRunnerFactory(NewForward(), NewBackward(), ForwardFromBackward(graph), nil)
	manager := ifds.NewManager(graph, ifds.SingletonResolver(), store, 5*time.Second, newRunner)

	starts := []ifds.Method{ssagraph.Method{Fn: derefNil}, ssagraph.Method{Fn: derefOK}}
	res := manager.Run(context.Background(), starts)

	if res.Partial {
		t.Fatal("Run() reported Partial = true; expected quiescence well before the 5s deadline")
	}

	var sawDerefNil, sawDerefOK bool
	for _, v := range res.Vulnerabilities {
		if v.Rule != "npe" {
			t.Errorf("Vulnerabilities contains rule %q, want only %q", v.Rule, "npe")
		}
		switch v.Method.(ssagraph.Method).Fn {
		case derefNil:
			sawDerefNil = true
		case derefOK:
			sawDerefOK = true
		}
	}
	if !sawDerefNil {
		t.Error("no nullness finding reported for derefNil, which dereferences a nil-stored local")
	}
	if sawDerefOK {
		t.Error("a nullness finding was reported for derefOK, which never dereferences a nil value")
	}
}

// TestForwardFromBackwardIgnoresUnrelatedFacts exercises the bridge function
// directly: an edge whose fact is the Zero fact rather than a nullness
// MarkedFact must translate to no injected edges.
func TestForwardFromBackwardIgnoresUnrelatedFacts(t *testing.T) {
	bridge := ForwardFromBackward(ssagraph.New())
	if got := bridge(ifds.Edge{To: ifds.Vertex{Fact: ifds.Zero}}); got != nil {
		t.Errorf("bridge(Zero fact) = %v, want nil", got)
	}
}
