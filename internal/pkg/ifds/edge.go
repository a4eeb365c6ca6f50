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

// Edge is an ordered pair of vertices within one method (§3, Invariant 1):
// "if From holds, To holds along some intraprocedural subpath starting at
// the method entry where From was observed."
type Edge struct {
	From Vertex
	To   Vertex
}

func (e Edge) String() string { return e.From.String() + " -> " + e.To.String() }

// ReasonKind discriminates the five ways an Edge can be derived (§3). It is
// a tagged union rather than an interface hierarchy per the "dynamic
// dispatch on Facts / Reasons" design note: a plain Reason struct with a
// Kind tag lets the trace reconstructor switch exhaustively and keeps
// per-edge reason storage flat.
type ReasonKind uint8

const (
	// ReasonInitial marks an edge seeded as a start fact.
	ReasonInitial ReasonKind = iota
	// ReasonExternal marks an edge received from another unit's summary.
	ReasonExternal
	// ReasonSequent marks an edge derived from a sequent flow function.
	ReasonSequent
	// ReasonCallToStart marks an edge derived by entering a callee.
	ReasonCallToStart
	// ReasonThroughSummary marks an edge derived by applying a callee
	// summary edge at a call site.
	ReasonThroughSummary
)

func (k ReasonKind) String() string {
	switch k {
	case ReasonInitial:
		return "Initial"
	case ReasonExternal:
		return "External"
	case ReasonSequent:
		return "Sequent"
	case ReasonCallToStart:
		return "CallToStart"
	case ReasonThroughSummary:
		return "ThroughSummary"
	default:
		return "Unknown"
	}
}

// Reason records why an edge was added to path_edges (§3). Reasons
// reference previously-propagated edges by value, which is what makes the
// reason DAG acyclic up to vertex identity (Invariant 5): an edge can only
// be built from edges that were propagated strictly before it.
type Reason struct {
	Kind ReasonKind
	// Pred is the predecessor edge for ReasonSequent and ReasonCallToStart.
	// Zero value for ReasonInitial/ReasonExternal.
	Pred Edge
	// Summary is the callee summary edge applied for ReasonThroughSummary,
	// and Pred is the caller-side edge the summary was applied to.
	Summary Edge
}

// Initial builds the Reason for a start-fact edge.
func Initial() Reason { return Reason{Kind: ReasonInitial} }

// External builds the Reason for an edge received from another unit.
func External() Reason { return Reason{Kind: ReasonExternal} }

// Sequent builds the Reason for an edge derived by a sequent flow function.
func Sequent(pred Edge) Reason { return Reason{Kind: ReasonSequent, Pred: pred} }

// CallToStart builds the Reason for an edge derived by entering a callee.
func CallToStart(pred Edge) Reason { return Reason{Kind: ReasonCallToStart, Pred: pred} }

// ThroughSummary builds the Reason for an edge derived by applying a
// callee's summary edge at a call site.
func ThroughSummary(pred, summary Edge) Reason {
	return Reason{Kind: ReasonThroughSummary, Pred: pred, Summary: summary}
}
