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
	"time"

	"golang.org/x/sync/errgroup"
)

// Unit is a value derived from a Method by a UnitResolver (§3). Methods
// sharing a Unit are analyzed by a single runner; string is a sufficient
// representation since units only need equality and use as a map key.
type Unit string

// UnitResolver assigns each Method to a Unit (§6 "Unit resolver contract").
type UnitResolver interface {
	Resolve(m Method) Unit
}

// UnitResolverFunc adapts a plain function to UnitResolver.
type UnitResolverFunc func(m Method) Unit

// Resolve calls f.
func (f UnitResolverFunc) Resolve(m Method) Unit { return f(m) }

// SingletonResolver assigns every method to the same unit: the whole
// program is analyzed by a single runner.
func SingletonResolver() UnitResolver {
	return UnitResolverFunc(func(Method) Unit { return Unit("singleton") })
}

// PerMethodResolver assigns every method to its own unit: maximal
// concurrency, maximal cross-unit messaging.
func PerMethodResolver() UnitResolver {
	return UnitResolverFunc(func(m Method) Unit { return Unit(m.ID()) })
}

// Classed is an optional Method capability: a method that knows the class
// (or type) that declares it. PerClassResolver uses it when present.
type Classed interface {
	Class() string
}

// PerClassResolver assigns methods declared by the same class to the same
// unit. A Method that does not implement Classed falls back to being its
// own unit (equivalent to PerMethodResolver for that method).
func PerClassResolver() UnitResolver {
	return UnitResolverFunc(func(m Method) Unit {
		if c, ok := m.(Classed); ok {
			if cls := c.Class(); cls != "" {
				return Unit("class:" + cls)
			}
		}
		return Unit(m.ID())
	})
}

// Packaged is an optional Method capability: a method that knows its
// enclosing package. PerPackageResolver uses it when present.
type Packaged interface {
	Package() string
}

// PerPackageResolver assigns methods declared in the same package to the
// same unit.
func PerPackageResolver() UnitResolver {
	return UnitResolverFunc(func(m Method) Unit {
		if p, ok := m.(Packaged); ok {
			if pkg := p.Package(); pkg != "" {
				return Unit("pkg:" + pkg)
			}
		}
		return Unit(m.ID())
	})
}

// runnerHandle is the Manager's uniform view of a Runner or a
// BidirectionalRunner: both can be seeded, run to cancellation, and polled
// for idleness.
type runnerHandle interface {
	Seed(startMethods []Method)
	Run(ctx context.Context)
	Idle() bool
	RunPostHoc()
	// FatalError returns the first invariant violation this runner (or
	// pair of runners) recorded, or nil if none occurred (§7).
	FatalError() *Error
}

// Manager is the C6 unit manager: it partitions the start methods into
// units, spawns one runner per unit, detects global quiescence, enforces a
// deadline, and harvests the aggregated result (§4.6). It does not route
// EdgeForOtherRunner events: a BidirectionalRunner hands edges between its
// forward and backward halves itself, through Runner.InjectExternal.
type Manager struct {
	graph    Graph
	resolver UnitResolver
	store    *SummaryStore
	deadline time.Duration
	newRunner func(unit Unit, graph Graph, store *SummaryStore, resolver UnitResolver) runnerHandle

	mu      sync.Mutex
	runners map[Unit]runnerHandle
	raw     map[Unit]*Runner // non-bidi runners, for ReasonsOf/PathEdges harvesting
}

// DefaultDeadline is the hard analysis timeout applied when Manager.deadline
// is zero (§4.4 "Termination": "default: 100 s").
const DefaultDeadline = 100 * time.Second

// NewManager builds a Manager. newRunner constructs the runnerHandle for a
// newly discovered unit; pass a constructor that closes over an Analyzer to
// get a plain Runner, or one that builds a BidirectionalRunner for analyses
// needing a backward pass (§4.7).
func NewManager(graph Graph, resolver UnitResolver, store *SummaryStore, deadline time.Duration, newRunner func(Unit, Graph, *SummaryStore, UnitResolver) runnerHandle) *Manager {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Manager{
		graph:     graph,
		resolver:  resolver,
		store:     store,
		deadline:  deadline,
		newRunner: newRunner,
		runners:   make(map[Unit]runnerHandle),
		raw:       make(map[Unit]*Runner),
	}
}

// NewSimpleRunnerFactory adapts a forward-only Analyzer into a constructor
// usable as NewManager's newRunner parameter. Most analyses (taint,
// unused-variable) only need a single forward Runner per unit.
func NewSimpleRunnerFactory(analyzer Analyzer) func(Unit, Graph, *SummaryStore, UnitResolver) runnerHandle {
	return func(unit Unit, graph Graph, store *SummaryStore, resolver UnitResolver) runnerHandle {
		return NewRunner(unit, graph, analyzer.FlowFunctions(), analyzer, resolver, store)
	}
}

// NewBidirectionalRunnerFactory adapts a forward/backward Analyzer pair into
// a constructor usable as NewManager's newRunner parameter (§4.7, C7): the
// backward Runner is built over graph.Reversed() so both share the unit's
// underlying application graph. forwardFromBackward/backwardFromForward are
// passed through to NewBidirectionalRunner unchanged.
func NewBidirectionalRunnerFactory(forward, backward Analyzer, forwardFromBackward, backwardFromForward func(Edge) []Edge) func(Unit, Graph, *SummaryStore, UnitResolver) runnerHandle {
	return func(unit Unit, graph Graph, store *SummaryStore, resolver UnitResolver) runnerHandle {
		fwd := NewRunner(unit, graph, forward.FlowFunctions(), forward, resolver, store)
		bwd := NewRunner(unit, graph.Reversed(), backward.FlowFunctions(), backward, resolver, store)
		return NewBidirectionalRunner(fwd, bwd, forwardFromBackward, backwardFromForward)
	}
}

// Result is the outcome of Manager.Run (§7 "User-visible behavior").
type Result struct {
	Vulnerabilities []Vulnerability
	// Partial is true when the deadline was reached before quiescence.
	Partial bool
	// Overflowed is true when some topic's replay buffer dropped an event.
	Overflowed bool
	// Err is non-nil when the run hit the §7 error taxonomy: an *Error with
	// a fatal Kind (ErrInternalInvariant) if some runner detected a
	// violated solver invariant, or a non-fatal *Error (ErrBudget) if the
	// deadline was reached before quiescence. Callers branch on
	// errors.As(res.Err, &ifdsErr) and ifdsErr.Fatal().
	Err error
}

// Run partitions startMethods into units, spawns one runner per unit via an
// errgroup, seeds them, and blocks until either global quiescence or the
// deadline, whichever comes first (§4.6, §5 "Cancellation").
func (m *Manager) Run(ctx context.Context, startMethods []Method) Result {
	ctx, cancel := context.WithTimeout(ctx, m.deadline)
	defer cancel()

	units := make(map[Unit]bool)
	for _, sm := range startMethods {
		units[m.resolver.Resolve(sm)] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	var handles []runnerHandle
	for u := range units {
		h := m.newRunner(u, m.graph, m.store, m.resolver)
		m.mu.Lock()
		m.runners[u] = h
		if rr, ok := h.(*Runner); ok {
			m.raw[u] = rr
		}
		m.mu.Unlock()
		handles = append(handles, h)

		h.Seed(startMethods)
		handle := h
		g.Go(func() error {
			handle.Run(gctx)
			return nil
		})
	}

	quiescent := m.awaitQuiescence(ctx, handles)
	cancel()
	_ = g.Wait()

	for _, h := range handles {
		h.RunPostHoc()
	}

	res := Result{
		Vulnerabilities: m.store.Vulnerabilities(),
		Partial:         !quiescent,
		Overflowed:      m.store.Overflowed(),
	}
	if !quiescent {
		res.Err = NewError(ErrBudget, "analysis deadline exceeded before quiescence", ctx.Err())
	}
	for _, h := range handles {
		if fe := h.FatalError(); fe != nil {
			res.Err = fe
			break
		}
	}
	return res
}

// awaitQuiescence polls every runner's idleness (§4.6 "Quiescence": "Per-
// runner worklist-emptiness flags are tracked") until all are simultaneously
// idle for two consecutive polls (to avoid a false-positive race where one
// runner is idle only because another hasn't yet forwarded it a cross-unit
// edge), the context is cancelled, or the deadline fires. It returns true on
// genuine quiescence, false if the context ended the wait first.
func (m *Manager) awaitQuiescence(ctx context.Context, handles []runnerHandle) bool {
	const pollInterval = 2 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	consecutiveIdle := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		allIdle := true
		for _, h := range handles {
			if !h.Idle() {
				allIdle = false
				break
			}
		}
		if allIdle {
			consecutiveIdle++
			if consecutiveIdle >= 2 {
				return true
			}
		} else {
			consecutiveIdle = 0
		}
	}
}

// ReasonsOf builds a program-wide reason lookup by merging the local reasons
// map of every plain Runner, for use by Reconstruct when a trace crosses a
// unit boundary (§4.8). BidirectionalRunner units are not included.
func (m *Manager) ReasonsOf() ReasonLookup {
	m.mu.Lock()
	snapshots := make([]map[Edge][]Reason, 0, len(m.raw))
	for _, r := range m.raw {
		snapshots = append(snapshots, r.ReasonsSnapshot())
	}
	m.mu.Unlock()

	return func(edge Edge) []Reason {
		var out []Reason
		for _, snap := range snapshots {
			out = append(out, snap[edge]...)
		}
		return out
	}
}

// AllPathEdges returns every path edge propagated by any plain Runner, for
// locating the edges ending at a given sink before calling Reconstruct.
// BidirectionalRunner units are not included.
func (m *Manager) AllPathEdges() []Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Edge
	for _, r := range m.raw {
		out = append(out, r.PathEdges()...)
	}
	return out
}
