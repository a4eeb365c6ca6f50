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

// Package suppression identifies source lines a "jflow:ignore" comment
// opts out of reporting, the same way a //nolint comment does for other
// linters: jflowcheck consults it before turning a confirmed vulnerability
// into a diagnostic.
package suppression

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// ResultType records every source line covered by a node with a
// suppressing comment attached, keyed by "<filename>:<line>".
type ResultType map[string]bool

// Suppressed reports whether pos falls on a line a jflow:ignore comment
// covers.
func (rt ResultType) Suppressed(fset *token.FileSet, pos token.Pos) bool {
	p := fset.Position(pos)
	return rt[key(p.Filename, p.Line)]
}

func key(filename string, line int) string {
	return filename + ":" + strconv.Itoa(line)
}

var Analyzer = &analysis.Analyzer{
	Name:       "suppression",
	Doc:        "identifies source lines suppressed by a jflow:ignore comment",
	Run:        run,
	ResultType: reflect.TypeOf(ResultType{}),
}

func run(pass *analysis.Pass) (interface{}, error) {
	result := make(ResultType)

	for _, f := range pass.Files {
		for node, commentGroups := range ast.NewCommentMap(pass.Fset, f, f.Comments) {
			for _, cg := range commentGroups {
				if !isSuppressingCommentGroup(cg) {
					continue
				}
				start := pass.Fset.Position(node.Pos()).Line
				end := pass.Fset.Position(node.End()).Line
				filename := pass.Fset.Position(node.Pos()).Filename
				for line := start; line <= end; line++ {
					result[key(filename, line)] = true
				}
				pass.Reportf(node.Pos(), "suppressed")
			}
		}
	}

	return result, nil
}

func isSuppressingCommentGroup(commentGroup *ast.CommentGroup) bool {
	for _, line := range strings.Split(commentGroup.Text(), "\n") {
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(line, "//"), "/*"))
		if strings.HasPrefix(trimmed, doNotReport) {
			return true
		}
	}
	return false
}

const doNotReport = "jflow:ignore"
