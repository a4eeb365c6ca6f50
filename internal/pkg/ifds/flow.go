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

// FlowFunctions is the flow-function space an Analyzer must supply (§4.3):
// four pure, monotone, idempotent mappings from one input Fact to a set of
// output Facts.
//
// Every family must map Zero to a set containing Zero, and must be
// deterministic: the same input always produces the same output set.
type FlowFunctions interface {
	// Start returns the facts that may hold at a method entry statement.
	// It must include Zero.
	Start(stmt Statement) []Fact
	// Sequent transfers a fact across a single non-call, intraprocedural
	// CFG edge from curr to next.
	Sequent(curr, next Statement, fact Fact) []Fact
	// CallToStart translates a caller-side fact at a call site into callee
	// start facts, substituting actual arguments into formal-parameter
	// access paths.
	CallToStart(call Statement, callee Method, fact Fact) []Fact
	// CallToReturn produces the facts that bypass the callee entirely
	// (globals, aliased locals the call cannot affect).
	CallToReturn(call, ret Statement, fact Fact) []Fact
	// ExitToReturn translates a callee-exit fact back into the caller's
	// return-site vertex (return value, out-parameters, untouched
	// aliases).
	ExitToReturn(call, ret, exit Statement, fact Fact) []Fact
}

// SummaryFact is the result of Analyzer.SummaryFacts / SummaryFactsPost: it
// may report a Vulnerability directly (§6).
type SummaryFact struct {
	Vulnerability *Vulnerability
}

// SummaryEdge is a path edge whose From sits at a method entry and whose To
// sits at a method exit (§3): the only interprocedural knowledge the
// engine retains per method.
type SummaryEdge struct {
	Start Vertex
	Exit  Vertex
}

// Aggregate is the accumulated state of one runner after quiescence,
// passed to Analyzer.SummaryFactsPost so that post-hoc detections that
// need the full edge set (rather than one edge at a time) can run once per
// runner.
type Aggregate struct {
	Method       Method
	PathEdges    []Edge
	SummaryEdges map[Method][]SummaryEdge
}

// Analyzer is the engine-to-analysis-plugin contract (§6). A concrete
// analysis (taint, nullness, unused-variable, alias) implements this
// interface; internal/pkg/ifds never imports a concrete analysis package.
type Analyzer interface {
	// FlowFunctions returns the four flow-function families this analyzer
	// uses.
	FlowFunctions() FlowFunctions
	// SaveSummaryAndCrossUnit reports whether newly discovered summary
	// edges should be published to the summary store and made visible to
	// other units. Backward analyzers feeding a bidirectional pair (C7)
	// typically return false, since their summaries are only consumed by
	// their paired forward runner, not by other units.
	SaveSummaryAndCrossUnit() bool
	// SummaryFacts is called once per newly added edge, and may report
	// vulnerabilities directly (sink detection).
	SummaryFacts(edge Edge) []SummaryFact
	// SummaryFactsPost is called once per runner after quiescence, to
	// support detections that need the complete edge set.
	SummaryFactsPost(agg Aggregate) []SummaryFact
}
