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

package suppression

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestSuppressionAnalysis(t *testing.T) {
	dir := analysistest.TestData()
	results := analysistest.Run(t, dir, Analyzer, "tests")
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	rt := results[0].Result.(ResultType)
	var sawSuppressed bool
	for k := range rt {
		if k != "" {
			sawSuppressed = true
		}
	}
	if !sawSuppressed {
		t.Fatal("ResultType is empty, want at least one suppressed line")
	}
}
