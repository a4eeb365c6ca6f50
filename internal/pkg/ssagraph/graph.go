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

// Package ssagraph adapts golang.org/x/tools/go/ssa into the ifds.Graph
// interface (C1): statements are SSA instructions, methods are *ssa.Function
// values, and call sites are resolved through ssa.CallCommon.StaticCallee.
package ssagraph

import (
	"fmt"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"github.com/jflow-dev/jflow/internal/pkg/utils"
	"golang.org/x/tools/go/ssa"
)

// Method wraps an *ssa.Function to satisfy ifds.Method, ifds.Ordered, and
// the optional ifds.Classed/ifds.Packaged capabilities PerClassResolver and
// PerPackageResolver look for.
type Method struct {
	Fn *ssa.Function
}

// ID is the function's fully qualified relative name, which go/ssa already
// keeps unique per built program.
func (m Method) ID() string { return m.Fn.RelString(nil) }

func (m Method) String() string { return m.Fn.String() }

// Less orders methods lexically by ID for deterministic reporting (§4.4
// "Ordering and tie-breaks").
func (m Method) Less(other ifds.Method) bool {
	om, ok := other.(Method)
	if !ok {
		return m.ID() < other.String()
	}
	return m.ID() < om.ID()
}

// Class returns the unqualified name of the function's receiver type, or ""
// for free functions.
func (m Method) Class() string {
	recv := m.Fn.Signature.Recv()
	if recv == nil {
		return ""
	}
	_, name := utils.DecomposeType(utils.Dereference(recv.Type()))
	return name
}

// Package returns the import path of the package declaring the function, or
// "" for synthetic functions (wrappers, thunks) with no home package.
func (m Method) Package() string {
	if m.Fn.Pkg == nil {
		return ""
	}
	return m.Fn.Pkg.Pkg.Path()
}

// Statement wraps a single SSA instruction.
type Statement struct {
	Instr ssa.Instruction
}

// ID identifies an instruction by its position in its function: block index
// and offset within the block. Stable for the lifetime of one built
// *ssa.Program, which is all a single analysis run ever touches.
func (s Statement) ID() string {
	idx, _ := indexInBlock(s.Instr)
	return fmt.Sprintf("%s#b%d.%d", s.Instr.Parent().RelString(nil), s.Instr.Block().Index, idx)
}

func (s Statement) Method() ifds.Method { return Method{Fn: s.Instr.Parent()} }

func (s Statement) String() string { return s.Instr.String() }

// Graph is an ifds.Graph over one *ssa.Program. A reversed Graph presents
// predecessor/successor and entry/exit roles swapped for the backward half
// of a bidirectional runner (C7); it deliberately reports no callees, since
// inverting interprocedural call semantics is out of scope for the bundled
// analyses (nullness, alias) — see DESIGN.md.
type Graph struct {
	reversed bool
}

// New builds the forward Graph. Programs are implicit: every ssa.Function
// reachable from a Statement's Parent() is usable regardless of which
// *ssa.Program built it, so Graph itself holds no program reference.
func New() *Graph { return &Graph{} }

func (g *Graph) EntryPoints(m ifds.Method) []ifds.Statement {
	fn := m.(Method).Fn
	if g.reversed {
		return exitInstrs(fn)
	}
	return entryInstrs(fn)
}

func (g *Graph) ExitPoints(m ifds.Method) []ifds.Statement {
	fn := m.(Method).Fn
	if g.reversed {
		return entryInstrs(fn)
	}
	return exitInstrs(fn)
}

func entryInstrs(fn *ssa.Function) []ifds.Statement {
	if len(fn.Blocks) == 0 || len(fn.Blocks[0].Instrs) == 0 {
		return nil
	}
	return []ifds.Statement{Statement{Instr: fn.Blocks[0].Instrs[0]}}
}

func exitInstrs(fn *ssa.Function) []ifds.Statement {
	var out []ifds.Statement
	for _, b := range fn.Blocks {
		if len(b.Succs) == 0 && len(b.Instrs) > 0 {
			out = append(out, Statement{Instr: b.Instrs[len(b.Instrs)-1]})
		}
	}
	return out
}

func (g *Graph) Successors(stmt ifds.Statement) []ifds.Statement {
	instr := stmt.(Statement).Instr
	if g.reversed {
		return predecessors(instr)
	}
	return successors(instr)
}

func successors(instr ssa.Instruction) []ifds.Statement {
	blk := instr.Block()
	idx, ok := indexInBlock(instr)
	if !ok {
		return nil
	}
	if idx+1 < len(blk.Instrs) {
		return []ifds.Statement{Statement{Instr: blk.Instrs[idx+1]}}
	}
	var out []ifds.Statement
	for _, succ := range blk.Succs {
		if len(succ.Instrs) > 0 {
			out = append(out, Statement{Instr: succ.Instrs[0]})
		}
	}
	return out
}

func predecessors(instr ssa.Instruction) []ifds.Statement {
	blk := instr.Block()
	idx, ok := indexInBlock(instr)
	if !ok {
		return nil
	}
	if idx > 0 {
		return []ifds.Statement{Statement{Instr: blk.Instrs[idx-1]}}
	}
	var out []ifds.Statement
	for _, pred := range blk.Preds {
		if len(pred.Instrs) > 0 {
			out = append(out, Statement{Instr: pred.Instrs[len(pred.Instrs)-1]})
		}
	}
	return out
}

// Callees resolves statically-bound calls via ssa.CallCommon.StaticCallee.
// Interface/closure calls whose callee cannot be statically resolved are
// treated as non-calls — the engine falls back to the call-to-return branch
// only, which is sound (if imprecise) since call_to_return never removes
// facts that would otherwise survive. Reversed graphs never report callees
// (see the Graph doc comment).
func (g *Graph) Callees(stmt ifds.Statement) []ifds.Method {
	if g.reversed {
		return nil
	}
	call, ok := stmt.(Statement).Instr.(ssa.CallInstruction)
	if !ok {
		return nil
	}
	callee := call.Common().StaticCallee()
	if callee == nil || len(callee.Blocks) == 0 {
		return nil
	}
	return []ifds.Method{Method{Fn: callee}}
}

func (g *Graph) MethodOf(stmt ifds.Statement) ifds.Method {
	return Method{Fn: stmt.(Statement).Instr.Parent()}
}

func (g *Graph) Reversed() ifds.Graph {
	return &Graph{reversed: !g.reversed}
}

// indexInBlock returns instr's offset within its parent block via a linear
// scan: go/ssa exposes no direct index lookup.
func indexInBlock(instr ssa.Instruction) (int, bool) {
	for i, candidate := range instr.Block().Instrs {
		if candidate == instr {
			return i, true
		}
	}
	return 0, false
}
