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

package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/analysistest"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/report"
)

type analyzerResult struct {
	prog *ssa.Program
}

var testAnalyzer = &analysis.Analyzer{
	Name:       "clitest",
	Doc:        "test harness exposing a built *ssa.Program to TestStartMethods",
	Run:        runTest,
	Requires:   []*analysis.Analyzer{buildssa.Analyzer},
	ResultType: reflect.TypeOf(analyzerResult{}),
}

func runTest(pass *analysis.Pass) (interface{}, error) {
	in := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	return analyzerResult{prog: in.Pkg.Prog}, nil
}

func TestStartMethods(t *testing.T) {
	dir := analysistest.TestData()
	rs := analysistest.Run(t, dir, testAnalyzer, "clitest")
	if len(rs) != 1 {
		t.Fatalf("got %d results, want 1", len(rs))
	}
	prog := rs[0].Result.(analyzerResult).prog

	got := startMethods(prog, []string{"clitest.Handle"})
	if len(got) != 2 {
		t.Fatalf("startMethods(%q) returned %d methods, want 2 (got %v)", "clitest.Handle", len(got), got)
	}
	for _, m := range got {
		if !strings.HasPrefix(m.ID(), "clitest.Handle") {
			t.Errorf("startMethods matched %q, which doesn't share the requested prefix", m.ID())
		}
	}

	if got := startMethods(prog, []string{"clitest.NoSuchPrefix"}); len(got) != 0 {
		t.Errorf("startMethods(%q) = %v, want none", "clitest.NoSuchPrefix", got)
	}

	// An empty prefix must never match everything (empty strings are
	// explicitly skipped), unlike strings.HasPrefix(s, "") which is always
	// true.
	if got := startMethods(prog, []string{""}); len(got) != 0 {
		t.Errorf("startMethods(%q) = %v, want none for an empty prefix", "", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extra.yaml")
	extra := `
sinks:
  - methodMatcher:
      package: "^example.com/custom$"
      method: "^Sink$"
    positionMatcher: arg0
    mark: TAINT
    cwe: CWE-1
`
	if err := os.WriteFile(path, []byte(extra), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Error("loadConfig result has no sources; the bundled default should still be present")
	}

	found := false
	for _, s := range cfg.Sinks {
		if s.CWE == "CWE-1" {
			found = true
		}
	}
	if !found {
		t.Error("loadConfig result is missing the sink rule loaded from the extra config file")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Error("loadConfig(nonexistent path) returned nil error, want one")
	}
}

func TestWriteReportChoosesFormatByExtension(t *testing.T) {
	doc := report.Build(ifds.Result{}, nil)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	if err := writeReport(jsonPath, doc); err != nil {
		t.Fatalf("writeReport(.json): %v", err)
	}
	jsonBytes, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(jsonBytes), `"status"`) {
		t.Errorf("writeReport(.json) output doesn't look like the JSON report format: %s", jsonBytes)
	}

	sarifPath := filepath.Join(dir, "out.sarif")
	if err := writeReport(sarifPath, doc); err != nil {
		t.Fatalf("writeReport(.sarif): %v", err)
	}
	sarifBytes, err := os.ReadFile(sarifPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(sarifBytes), "2.1.0") {
		t.Errorf("writeReport(.sarif) output doesn't look like a SARIF document: %s", sarifBytes)
	}
}
