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

// Package jflowcheck wraps the taint Analyzer as a plain go vet-style
// analysis.Analyzer: one *analysis.Pass is one Go package, so the dataflow
// run it drives is necessarily single-package (any cross-package call is a
// call_to_return edge only, never a call_to_start into a callee this pass
// can see).
package jflowcheck

import (
	"context"
	"sort"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"

	"github.com/jflow-dev/jflow/internal/pkg/fieldtags"
	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ruleconfig"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"github.com/jflow-dev/jflow/internal/pkg/suppression"
	"github.com/jflow-dev/jflow/internal/pkg/taint"
)

// Analyzer reports taint-style findings (a configured source reaching a
// configured sink) within one package's SSA.
var Analyzer = &analysis.Analyzer{
	Name:     "jflow",
	Doc:      "reports dataflow from a configured source to a configured sink",
	Run:      run,
	Requires: []*analysis.Analyzer{buildssa.Analyzer, fieldtags.Analyzer, suppression.Analyzer},
}

var configFile string

func init() {
	Analyzer.Flags.StringVar(&configFile, "config", "", "path to a YAML/JSON rule configuration, merged over the bundled default; unset uses the bundled default alone")
}

func loadConfig() (*ruleconfig.Config, error) {
	base, err := ruleconfig.Default()
	if err != nil {
		return nil, ifds.NewError(ifds.ErrConfiguration, "load default config", err)
	}
	if configFile == "" {
		return base, nil
	}
	extra, err := ruleconfig.Load(configFile)
	if err != nil {
		return nil, ifds.NewError(ifds.ErrConfiguration, "load "+configFile, err)
	}
	return ruleconfig.Merge(base, extra), nil
}

func run(pass *analysis.Pass) (interface{}, error) {
	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	taggedFields := pass.ResultOf[fieldtags.Analyzer].(fieldtags.ResultType)
	suppressed := pass.ResultOf[suppression.Analyzer].(suppression.ResultType)

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var starts []ifds.Method
	for _, fn := range ssaInput.SrcFuncs {
		if len(fn.Blocks) == 0 {
			continue
		}
		starts = append(starts, ssagraph.Method{Fn: fn})
	}
	if len(starts) == 0 {
		return nil, nil
	}

	graph := ssagraph.New()
	store := ifds.NewSummaryStore(ifds.DefaultReplayCap)
	analyzer := taint.New(cfg).WithFieldTags(taggedFields)
	manager := ifds.NewManager(graph, ifds.PerPackageResolver(), store, ifds.DefaultDeadline, ifds.NewSimpleRunnerFactory(analyzer))

	res := manager.Run(context.Background(), starts)
	sort.Slice(res.Vulnerabilities, func(i, j int) bool {
		return res.Vulnerabilities[i].SortKey() < res.Vulnerabilities[j].SortKey()
	})
	for _, v := range res.Vulnerabilities {
		stmt := v.Sink.Stmt.(ssagraph.Statement)
		if suppressed.Suppressed(pass.Fset, stmt.Instr.Pos()) {
			continue
		}
		pass.Reportf(stmt.Instr.Pos(), "%s: tainted value reaches %s", v.Rule, stmt.String())
	}
	return nil, nil
}
