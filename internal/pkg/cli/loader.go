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
	"fmt"
	"strings"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/ssagraph"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// loadProgram loads the packages named by patterns (the -cp/--classpath
// equivalent — a list of Go package patterns rather than a JVM class-path)
// and builds their SSA form.
func loadProgram(patterns []string) (*ssa.Program, []*ssa.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedTypes |
			packages.NeedTypesSizes | packages.NeedSyntax | packages.NeedTypesInfo,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, nil, fmt.Errorf("cli: load packages: %w", err)
	}
	if packages.PrintErrors(pkgs) > 0 {
		return nil, nil, fmt.Errorf("cli: one or more packages failed to load")
	}

	prog, ssaPkgs := ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions)
	prog.Build()
	return prog, ssaPkgs, nil
}

// startMethods collects every built function whose fully qualified name
// begins with one of the semicolon-separated prefixes from -s/--start.
func startMethods(prog *ssa.Program, prefixes []string) []ifds.Method {
	var out []ifds.Method
	for fn := range ssautil.AllFunctions(prog) {
		if fn == nil || len(fn.Blocks) == 0 {
			continue
		}
		id := fn.RelString(nil)
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(id, p) {
				out = append(out, ssagraph.Method{Fn: fn})
				break
			}
		}
	}
	return out
}
