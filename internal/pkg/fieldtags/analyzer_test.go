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

package fieldtags

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestFieldTagsAnalysis(t *testing.T) {
	dir := analysistest.TestData()
	results := analysistest.Run(t, dir, Analyzer, "tests")
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}

	tagged := results[0].Result.(ResultType)
	if !tagged["tests.Person.password"] {
		t.Error(`tagged["tests.Person.password"] = false, want true`)
	}
	if !tagged["tests.Person.secret"] {
		t.Error(`tagged["tests.Person.secret"] = false, want true`)
	}
	if tagged["tests.Person.name"] {
		t.Error(`tagged["tests.Person.name"] = true, want false: not jflow-tagged`)
	}
	if tagged["tests.Person.age"] {
		t.Error(`tagged["tests.Person.age"] = true, want false: not jflow-tagged`)
	}
}
