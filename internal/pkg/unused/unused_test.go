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

package unused

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
	Name:       "unusedtest",
	Doc:        "test harness exposing built SSA functions to TestUnreadLocal",
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

// TestUnreadLocal exercises the whole engine against real SSA:
// computeOrFallback assigns x and reads it on only one of its two return
// paths, so the assigned-fact must survive unread to the other exit;
// alwaysRead reads its local on its only path, so no fact survives.
func TestUnreadLocal(t *testing.T) {
	dir := analysistest.TestData()
	rs := analysistest.Run(t, dir, testAnalyzer, "unusedtest")
	if len(rs) != 1 {
		t.Fatalf("got %d results, want 1", len(rs))
	}
	funcs := rs[0].Result.(analyzerResult).funcs

	fallback, ok := funcs["computeOrFallback"]
	if !ok {
		t.Fatal("unusedtest.computeOrFallback not found in built SSA")
	}
	alwaysRead, ok := funcs["alwaysRead"]
	if !ok {
		t.Fatal("unusedtest.alwaysRead not found in built SSA")
	}

	graph := ssagraph.New()
	store := ifds.NewSummaryStore(ifds.DefaultReplayCap)
	manager := ifds.NewManager(graph, ifds.SingletonResolver(), store, 5*time.Second, ifds.NewSimpleRunnerFactory(New(graph)))

	starts := []ifds.Method{ssagraph.Method{Fn: fallback}, ssagraph.Method{Fn: alwaysRead}}
	res := manager.Run(context.Background(), starts)

	if res.Partial {
		t.Fatal("Run() reported Partial = true; expected quiescence well before the 5s deadline")
	}

	var sawFallback, sawAlwaysRead bool
	for _, v := range res.Vulnerabilities {
		if v.Rule != "unused" {
			t.Errorf("Vulnerabilities contains rule %q, want only %q", v.Rule, "unused")
		}
		switch v.Method.(ssagraph.Method).Fn {
		case fallback:
			sawFallback = true
		case alwaysRead:
			sawAlwaysRead = true
		}
	}
	if !sawFallback {
		t.Error("no unused-local finding reported for computeOrFallback, which leaves x unread on its fallback path")
	}
	if sawAlwaysRead {
		t.Error("an unused-local finding was reported for alwaysRead, which reads x on its only path")
	}
}
