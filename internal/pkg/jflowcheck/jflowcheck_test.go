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

package jflowcheck

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"
)

func TestJflowcheck(t *testing.T) {
	dataDir := analysistest.TestData()
	if err := Analyzer.Flags.Set("config", filepath.Join(dataDir, "test-config.yaml")); err != nil {
		t.Fatal(err)
	}

	testsDir := filepath.Join(dataDir, "src/example.com/tests")
	entries, err := os.ReadDir(testsDir)
	if err != nil {
		t.Fatalf("reading %s: %v", testsDir, err)
	}

	var patterns []string
	for _, e := range entries {
		if e.Name() == "support" {
			// support is imported by every scenario, not a scenario itself.
			continue
		}
		if e.IsDir() {
			patterns = append(patterns, filepath.Join(testsDir, e.Name()))
		}
	}

	analysistest.Run(t, dataDir, Analyzer, patterns...)
}
