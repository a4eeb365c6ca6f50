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
	"context"
	"sync"
	"sync/atomic"
)

// Runner is the C4 IFDS solver: a single worklist-based propagation engine
// over the methods assigned to one Unit. A program is analyzed by one Runner
// per unit (see Manager, in unit.go), each running in its own goroutine and
// communicating only through the shared SummaryStore.
type Runner struct {
	unit     Unit
	graph    Graph
	analyzer Analyzer
	resolver UnitResolver
	store    *SummaryStore

	flow FlowFunctions

	// mu guards every map below. The run goroutine itself never contends on
	// it (all mutation happens on that single goroutine); it exists so that
	// the manager and trace reconstructor can safely read this state after
	// the runner has quiesced or been cancelled.
	mu             sync.Mutex
	pathEdges      map[Edge]bool
	reasons        map[Edge][]Reason
	summaryEdges   map[string]map[SummaryEdge]bool // keyed by method ID
	callSitesOf    map[Vertex][]Edge
	visitedMethods map[string]bool
	methodsByID    map[string]Method
	fatal          *Error // first violated solver invariant observed, if any

	queue []Edge // local FIFO worklist; owned exclusively by the run goroutine
	extCh chan Event

	idle int32 // atomic bool: true while blocked awaiting work
}

// NewRunner builds a Runner for unit u. flow and analyzer are usually the
// same value (an Analyzer implements FlowFunctions via FlowFunctions()); flow
// is accepted separately so a BidirectionalRunner (C7) can drive two Runners
// off one Analyzer pair with differing flow directions.
func NewRunner(unit Unit, graph Graph, flow FlowFunctions, analyzer Analyzer, resolver UnitResolver, store *SummaryStore) *Runner {
	return &Runner{
		unit:           unit,
		graph:          graph,
		analyzer:       analyzer,
		resolver:       resolver,
		store:          store,
		flow:           flow,
		pathEdges:      make(map[Edge]bool),
		reasons:        make(map[Edge][]Reason),
		summaryEdges:   make(map[string]map[SummaryEdge]bool),
		callSitesOf:    make(map[Vertex][]Edge),
		visitedMethods: make(map[string]bool),
		methodsByID:    make(map[string]Method),
		extCh:          make(chan Event, 1024),
	}
}

// Seed installs the initial path edges for every start method this runner
// owns (§4.4 "Initialization").
func (r *Runner) Seed(startMethods []Method) {
	for _, m := range startMethods {
		if r.resolver.Resolve(m) != r.unit {
			continue
		}
		for _, s := range r.graph.EntryPoints(m) {
			for _, f := range r.flow.Start(s) {
				v := Vertex{Stmt: s, Fact: f}
				r.propagate(Edge{From: v, To: v}, Initial())
			}
		}
	}
}

// InjectExternal feeds an edge discovered by a paired runner (bidirectional
// analyses, C7) or by the manager, as if it had arrived over the summary
// store. Safe to call from any goroutine.
func (r *Runner) InjectExternal(edge Edge) {
	r.extCh <- Event{Kind: EventEdgeForOtherRunner, Method: r.graph.MethodOf(edge.To.Stmt), Edge: edge}
}

// Idle reports whether the runner is currently blocked awaiting new work:
// its local worklist is empty and it is not in the middle of handling an
// external event (§4.4 "Termination"). The manager polls this across every
// runner to detect global quiescence (§4.6).
func (r *Runner) Idle() bool { return atomic.LoadInt32(&r.idle) == 1 }

func (r *Runner) setIdle(v bool) {
	if v {
		atomic.StoreInt32(&r.idle, 1)
	} else {
		atomic.StoreInt32(&r.idle, 0)
	}
}

// recordFatal keeps the first violated solver invariant this runner
// observes; later ones are dropped (§7: the run aborts on the first one).
func (r *Runner) recordFatal(err *Error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fatal == nil {
		r.fatal = err
	}
}

// FatalError returns the first violated solver invariant this runner
// recorded, or nil if none occurred.
func (r *Runner) FatalError() *Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

// Run drives the main worklist loop until ctx is cancelled. It returns when
// cancellation is observed; partial state remains readable via PathEdges,
// Reasons and Aggregate (§5 "Cancellation").
func (r *Runner) Run(ctx context.Context) {
	for {
		if len(r.queue) == 0 {
			r.setIdle(true)
			select {
			case <-ctx.Done():
				return
			case ev := <-r.extCh:
				r.setIdle(false)
				r.handleExternalEvent(ev)
				continue
			}
		}
		r.setIdle(false)

		select {
		case <-ctx.Done():
			return
		case ev := <-r.extCh:
			r.handleExternalEvent(ev)
			continue
		default:
		}

		edge := r.queue[0]
		r.queue = r.queue[1:]
		r.process(edge)
	}
}

func (r *Runner) handleExternalEvent(ev Event) {
	switch ev.Kind {
	case EventNewSummaryEdge:
		// A runner's own summary edges come back to it over its
		// subscriptions; they are already among its path edges and were not
		// received from another unit, so they are not propagated again.
		if r.resolver.Resolve(ev.Method) == r.unit {
			return
		}
		if isEntryStatement(r.graph, ev.Edge.From.Stmt) {
			r.propagate(ev.Edge, External())
		}
	case EventEdgeForOtherRunner:
		r.propagate(ev.Edge, External())
	}
}

func isEntryStatement(g Graph, stmt Statement) bool {
	for _, e := range g.EntryPoints(stmt.Method()) {
		if e.ID() == stmt.ID() {
			return true
		}
	}
	return false
}

// ensureSubscribed subscribes once per method to the summary store, so the
// runner learns about summary edges discovered for that method by any other
// runner (its own edges arrive too and are ignored by handleExternalEvent) — §4.4 "On
// first encounter of method_of(stmt)".
func (r *Runner) ensureSubscribed(m Method) {
	r.mu.Lock()
	if r.visitedMethods[m.ID()] {
		r.mu.Unlock()
		return
	}
	r.visitedMethods[m.ID()] = true
	r.mu.Unlock()

	ch := r.store.Subscribe(m)
	go func() {
		for ev := range ch {
			if ev.Kind == EventNewSummaryEdge {
				r.extCh <- ev
			}
		}
	}()
}

// propagate is the solver's core step (§4.4 "Propagate(edge, reason)").
func (r *Runner) propagate(edge Edge, reason Reason) {
	r.mu.Lock()
	r.reasons[edge] = append(r.reasons[edge], reason)
	if r.pathEdges[edge] {
		r.mu.Unlock()
		return
	}
	r.pathEdges[edge] = true
	r.mu.Unlock()

	r.queue = append(r.queue, edge)

	method := r.graph.MethodOf(edge.To.Stmt)
	r.mu.Lock()
	r.methodsByID[method.ID()] = method
	r.mu.Unlock()
	if isExitStatement(r.graph, edge.To.Stmt) && r.analyzer.SaveSummaryAndCrossUnit() {
		r.store.Publish(Event{Kind: EventNewSummaryEdge, Method: method, Edge: edge})
	}
	for _, sf := range r.analyzer.SummaryFacts(edge) {
		if sf.Vulnerability != nil {
			r.store.Publish(Event{Kind: EventNewVulnerability, Method: method, Vulnerability: *sf.Vulnerability})
		}
	}
}

func isExitStatement(g Graph, stmt Statement) bool { return IsExit(g, stmt) }

// process handles one dequeued edge per the §4.4 main-loop case analysis.
func (r *Runner) process(edge Edge) {
	v := edge.To
	stmt, fact := v.Stmt, v.Fact
	method := r.graph.MethodOf(stmt)

	r.ensureSubscribed(method)

	callees := r.graph.Callees(stmt)
	switch {
	case len(callees) > 0:
		r.processCall(edge, stmt, fact, callees)
	case IsExit(r.graph, stmt):
		r.processExit(edge, method, stmt, fact)
		r.processSequent(edge, stmt, fact) // exit statements may still have exceptional successors
	default:
		r.processSequent(edge, stmt, fact)
	}
}

func (r *Runner) processSequent(edge Edge, stmt Statement, fact Fact) {
	u := edge.From
	for _, n := range r.graph.Successors(stmt) {
		for _, f2 := range r.flow.Sequent(stmt, n, fact) {
			r.propagate(Edge{From: u, To: Vertex{Stmt: n, Fact: f2}}, Sequent(edge))
		}
	}
}

func (r *Runner) processCall(edge Edge, stmt Statement, fact Fact, callees []Method) {
	u := edge.From
	returnSites := r.graph.Successors(stmt)

	for _, ret := range returnSites {
		for _, f2 := range r.flow.CallToReturn(stmt, ret, fact) {
			r.propagate(Edge{From: u, To: Vertex{Stmt: ret, Fact: f2}}, Sequent(edge))
		}
	}

	for _, callee := range callees {
		for _, s := range r.graph.EntryPoints(callee) {
			for _, fs := range r.flow.CallToStart(stmt, callee, fact) {
				if mf, ok := fs.(MarkedFact); ok && mf.AP.RootKind == RootParam && mf.AP.ParamIndex < 0 {
					r.recordFatal(NewError(ErrInternalInvariant, "CallToStart produced a negative parameter index at "+stmt.String(), nil))
					continue
				}
				sv := Vertex{Stmt: s, Fact: fs}

				if r.resolver.Resolve(callee) != r.unit {
					r.store.Publish(Event{Kind: EventCrossUnitCall, Method: callee, Caller: edge.To, CalleeStart: sv})
					r.ensureSubscribed(callee)
					continue
				}

				r.propagate(Edge{From: sv, To: sv}, CallToStart(edge))

				r.mu.Lock()
				r.callSitesOf[sv] = append(r.callSitesOf[sv], edge)
				knownExits := make([]SummaryEdge, 0, len(r.summaryEdges[callee.ID()]))
				for se := range r.summaryEdges[callee.ID()] {
					if se.Start == sv {
						knownExits = append(knownExits, se)
					}
				}
				r.mu.Unlock()

				for _, se := range knownExits {
					r.applySummaryAtCallSite(edge, stmt, returnSites, se)
				}
			}
		}
	}
}

func (r *Runner) processExit(edge Edge, method Method, stmt Statement, fact Fact) {
	u, v := edge.From, edge.To

	r.mu.Lock()
	if r.summaryEdges[method.ID()] == nil {
		r.summaryEdges[method.ID()] = make(map[SummaryEdge]bool)
	}
	se := SummaryEdge{Start: u, Exit: v}
	r.summaryEdges[method.ID()][se] = true
	callers := append([]Edge(nil), r.callSitesOf[u]...)
	r.mu.Unlock()

	for _, caller := range callers {
		callStmt := caller.To.Stmt
		callerReturnSites := r.graph.Successors(callStmt)
		r.applySummaryAtCallSite(caller, callStmt, callerReturnSites, se)
	}
}

// applySummaryAtCallSite re-derives the caller-side continuation for a
// single known (or newly discovered) callee summary edge, shared by the
// call-site branch (known summaries at call time) and the exit branch (new
// summaries reaching already-recorded call sites).
func (r *Runner) applySummaryAtCallSite(caller Edge, callStmt Statement, returnSites []Statement, se SummaryEdge) {
	for _, ret := range returnSites {
		for _, f2 := range r.flow.ExitToReturn(callStmt, ret, se.Exit.Stmt, se.Exit.Fact) {
			r.propagate(Edge{From: caller.From, To: Vertex{Stmt: ret, Fact: f2}}, ThroughSummary(caller, Edge{From: se.Start, To: se.Exit}))
		}
	}
}

// PathEdges returns a snapshot of every edge this runner has propagated.
func (r *Runner) PathEdges() []Edge {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Edge, 0, len(r.pathEdges))
	for e := range r.pathEdges {
		out = append(out, e)
	}
	return out
}

// Reasons returns a snapshot of the reasons recorded for edge.
func (r *Runner) Reasons(edge Edge) []Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reason, len(r.reasons[edge]))
	copy(out, r.reasons[edge])
	return out
}

// ReasonsSnapshot returns a copy of the runner's entire reasons map, used by
// the manager to build a program-wide lookup for trace reconstruction (C8),
// since a Reason's predecessor edge may belong to a method owned by a
// different runner (cross-unit calls).
func (r *Runner) ReasonsSnapshot() map[Edge][]Reason {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Edge][]Reason, len(r.reasons))
	for e, rs := range r.reasons {
		cp := make([]Reason, len(rs))
		copy(cp, rs)
		out[e] = cp
	}
	return out
}

// SummaryEdgesFor returns the summary edges discovered so far for m.
func (r *Runner) SummaryEdgesFor(m Method) []SummaryEdge {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.summaryEdges[m.ID()]
	out := make([]SummaryEdge, 0, len(set))
	for se := range set {
		out = append(out, se)
	}
	return out
}

// RunPostHoc calls the analyzer's SummaryFactsPost once per method this
// runner touched, after quiescence (§6), and routes any reported
// vulnerabilities into the summary store the same way SummaryFacts results
// are routed from propagate.
func (r *Runner) RunPostHoc() {
	r.mu.Lock()
	methods := make([]Method, 0, len(r.methodsByID))
	for _, m := range r.methodsByID {
		methods = append(methods, m)
	}
	r.mu.Unlock()

	for _, m := range methods {
		for _, sf := range r.analyzer.SummaryFactsPost(r.Aggregate(m)) {
			if sf.Vulnerability != nil {
				r.store.Publish(Event{Kind: EventNewVulnerability, Method: m, Vulnerability: *sf.Vulnerability})
			}
		}
	}
}

// Aggregate snapshots this runner's state for the given method, for
// Analyzer.SummaryFactsPost (§6).
func (r *Runner) Aggregate(m Method) Aggregate {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := Aggregate{Method: m, SummaryEdges: make(map[Method][]SummaryEdge)}
	for e := range r.pathEdges {
		if r.graph.MethodOf(e.To.Stmt).ID() == m.ID() {
			agg.PathEdges = append(agg.PathEdges, e)
		}
	}
	for id, set := range r.summaryEdges {
		mm, ok := r.methodsByID[id]
		if !ok {
			continue
		}
		for se := range set {
			agg.SummaryEdges[mm] = append(agg.SummaryEdges[mm], se)
		}
	}
	return agg
}
