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

// Package fieldtags identifies struct fields marked as taint sources by a
// `jflow:"source"` struct tag, an additional source specifier alongside
// ruleconfig's method-based SourceRule (§5 "Supplemented Features").
package fieldtags

import (
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/ssa"

	"go/ast"

	"github.com/jflow-dev/jflow/internal/pkg/utils"
)

// TaggedFields is the set of struct fields tagged as sources, keyed by
// "<package path>.<type name>.<field name>".
type TaggedFields map[string]bool

// ResultType is TaggedFields; named separately so other packages can refer
// to the analyzer's result type without importing this package's internals.
type ResultType = TaggedFields

var Analyzer = &analysis.Analyzer{
	Name:       "fieldtags",
	Doc:        `identifies struct fields tagged jflow:"source"`,
	Run:        run,
	Requires:   []*analysis.Analyzer{inspect.Analyzer},
	ResultType: reflect.TypeOf(TaggedFields{}),
}

func run(pass *analysis.Pass) (interface{}, error) {
	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	tagged := make(TaggedFields)

	insp.Preorder([]ast.Node{(*ast.TypeSpec)(nil)}, func(n ast.Node) {
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return
		}
		st, ok := ts.Type.(*ast.StructType)
		if !ok || st.Fields == nil {
			return
		}
		for _, f := range st.Fields.List {
			if !isTaggedSource(f) || len(f.Names) == 0 {
				continue
			}
			for _, name := range f.Names {
				key := pass.Pkg.Path() + "." + ts.Name.Name + "." + name.Name
				tagged[key] = true
				pass.Reportf(f.Pos(), "tagged field: %s", key)
			}
		}
	})
	return tagged, nil
}

// isTaggedSource reports whether field carries a struct tag of the form
// `jflow:"source"` (following the go vet -structtag convention: a comma
// separated value list, "source" matched as one element).
func isTaggedSource(field *ast.Field) bool {
	if field.Tag == nil {
		return false
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return false
	}
	value, ok := reflect.StructTag(raw).Lookup("jflow")
	if !ok {
		return false
	}
	for _, part := range strings.Split(value, ",") {
		if part == "source" {
			return true
		}
	}
	return false
}

// IsSource reports whether a FieldAddr instruction addresses a field
// previously identified as a tagged source.
func (t TaggedFields) IsSource(f *ssa.FieldAddr) bool {
	typePath, typeName, fieldName := utils.DecomposeField(f.X.Type(), f.Field)
	if typeName == "" {
		return false
	}
	return t[typePath+"."+typeName+"."+fieldName]
}
