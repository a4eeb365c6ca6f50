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

package ifds

import (
	"strconv"
	"strings"
)

// DefaultAccessPathDepth is the structural-depth bound §4.3 requires so
// that the per-method domain stays finite. Analyzers are free to configure
// a tighter or looser bound; this is only the default used when none is
// supplied.
const DefaultAccessPathDepth = 5

// RootKind classifies the root of an AccessPath.
type RootKind uint8

const (
	// RootLocal is a local variable.
	RootLocal RootKind = iota
	// RootParam is a formal parameter, identified by its 0-based index.
	RootParam
	// RootThis is the receiver of an instance method.
	RootThis
	// RootStatic is a static (package-level) field reference.
	RootStatic
	// RootReturn stands for the callee's return value; it only ever appears
	// transiently, inside exit_to_return translation.
	RootReturn
)

func (k RootKind) String() string {
	switch k {
	case RootParam:
		return "arg"
	case RootThis:
		return "this"
	case RootStatic:
		return "static"
	case RootReturn:
		return "return"
	default:
		return "local"
	}
}

// AccessPath is (root, selectors...): a root variable plus a chain of field
// selectors (§4.2). The selector chain is stored pre-joined into a single
// string so that AccessPath remains comparable and can be used directly as
// (part of) a map key — see the package doc comment on Fact.
type AccessPath struct {
	RootKind RootKind
	// RootName identifies the root: a local/parameter name, "this", or a
	// static field's qualified name. For RootParam, ParamIndex is
	// authoritative and RootName is used only for display.
	RootName   string
	ParamIndex int
	// path is the selector chain, joined with selectorSep. Empty means the
	// access path is bare (no field selection).
	path string
}

const selectorSep = "\x00"

// NewRoot constructs a bare AccessPath (no selectors) for the given root.
func NewRoot(kind RootKind, name string, paramIndex int) AccessPath {
	return AccessPath{RootKind: kind, RootName: name, ParamIndex: paramIndex}
}

// Selectors returns the selector chain as a slice.
func (a AccessPath) Selectors() []string {
	if a.path == "" {
		return nil
	}
	return strings.Split(a.path, selectorSep)
}

// Depth returns the number of field selectors.
func (a AccessPath) Depth() int {
	if a.path == "" {
		return 0
	}
	return strings.Count(a.path, selectorSep) + 1
}

// WithSelector returns a new AccessPath with field appended, truncating to
// maxDepth if the bound would otherwise be exceeded (§7 "Propagation"
// policy: truncate and proceed rather than reject the whole fact).
func (a AccessPath) WithSelector(field string, maxDepth int) AccessPath {
	if maxDepth <= 0 {
		maxDepth = DefaultAccessPathDepth
	}
	if a.Depth() >= maxDepth {
		return a
	}
	next := a
	if a.path == "" {
		next.path = field
	} else {
		next.path = a.path + selectorSep + field
	}
	return next
}

// DropSelector returns the AccessPath with its outermost selector removed,
// and false if the path was already bare.
func (a AccessPath) DropSelector() (AccessPath, bool) {
	if a.path == "" {
		return a, false
	}
	idx := strings.Index(a.path, selectorSep)
	next := a
	if idx == -1 {
		next.path = ""
	} else {
		next.path = a.path[idx+1:]
	}
	return next, true
}

// sameRoot reports whether a and b share a root.
func (a AccessPath) sameRoot(b AccessPath) bool {
	return a.RootKind == b.RootKind && a.RootName == b.RootName && a.ParamIndex == b.ParamIndex
}

// StartsWith reports whether a is prefix-equal to, or a strict extension
// of, prefix: they share a root and prefix's selector chain is a prefix of
// a's. This supports the field-sensitive kill/gen checks §4.2 requires.
func (a AccessPath) StartsWith(prefix AccessPath) bool {
	if !a.sameRoot(prefix) {
		return false
	}
	if prefix.path == "" {
		return true
	}
	return a.path == prefix.path || strings.HasPrefix(a.path, prefix.path+selectorSep)
}

// Equal reports structural equality. AccessPath is already a comparable
// struct, so a == b works too; Equal exists for readability at call sites.
func (a AccessPath) Equal(b AccessPath) bool { return a == b }

// Retarget returns a copy of a with its root replaced, keeping the selector
// chain. Used by call_to_start/exit_to_return to translate access paths
// across a call boundary (actual argument <-> formal parameter, receiver
// <-> this, return value <-> call result).
func (a AccessPath) Retarget(root AccessPath) AccessPath {
	return AccessPath{RootKind: root.RootKind, RootName: root.RootName, ParamIndex: root.ParamIndex, path: a.path}
}

func (a AccessPath) String() string {
	var b strings.Builder
	switch a.RootKind {
	case RootParam:
		b.WriteString("arg")
		b.WriteString(strconv.Itoa(a.ParamIndex))
	default:
		b.WriteString(a.RootKind.String())
		if a.RootKind != RootThis && a.RootName != "" {
			b.WriteString(":")
			b.WriteString(a.RootName)
		}
	}
	for _, s := range a.Selectors() {
		b.WriteString(".")
		b.WriteString(s)
	}
	return b.String()
}
