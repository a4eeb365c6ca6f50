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
)

// BidirectionalRunner couples a forward Runner over the natural graph with a
// backward Runner over its reversed view, sharing one unit (§4.7). Certain
// analyses (nullness, alias) need a backward pass to seed additional forward
// facts — e.g. "this local is dereferenced later" discovered walking
// backward from a dereference statement feeds a forward fact at the
// declaration site. The two runners exchange discoveries by injecting each
// other's summary edges as EventEdgeForOtherRunner.
type BidirectionalRunner struct {
	Forward  *Runner
	Backward *Runner

	// bridge is invoked whenever the backward runner completes a new path
	// edge, to translate it into zero or more forward edges to inject (and
	// vice versa). A nil bridge disables cross-injection in that direction.
	forwardFromBackward func(Edge) []Edge
	backwardFromForward func(Edge) []Edge

	pollInterval time.Duration
}

// NewBidirectionalRunner builds a paired runner. forwardFromBackward
// translates a newly discovered backward-runner edge into forward seed
// edges (or nil/empty to ignore it); backwardFromForward does the reverse.
// Either may be nil to make the coupling one-directional.
func NewBidirectionalRunner(forward, backward *Runner, forwardFromBackward, backwardFromForward func(Edge) []Edge) *BidirectionalRunner {
	return &BidirectionalRunner{
		Forward:             forward,
		Backward:            backward,
		forwardFromBackward: forwardFromBackward,
		backwardFromForward: backwardFromForward,
		pollInterval:        2 * time.Millisecond,
	}
}

// Seed seeds both inner runners.
func (b *BidirectionalRunner) Seed(startMethods []Method) {
	b.Forward.Seed(startMethods)
	b.Backward.Seed(startMethods)
}

// Run drives both inner runners concurrently until ctx is cancelled. Each
// runs its own worklist (§4.7); a bridging goroutine watches both for newly
// completed edges and injects translated edges into the other side.
func (b *BidirectionalRunner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); b.Forward.Run(ctx) }()
	go func() { defer wg.Done(); b.Backward.Run(ctx) }()

	if b.forwardFromBackward != nil || b.backwardFromForward != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.bridge(ctx)
		}()
	}

	wg.Wait()
}

// bridge polls both runners' path-edge sets and injects newly seen edges
// across the pair. Polling (rather than a dedicated event channel) keeps
// the bridge decoupled from each runner's internal propagate() and matches
// the "no OS-blocking I/O on the hot path; every long operation yields"
// cooperative-scheduling model (§5): the bridge itself is just another
// cooperative task with its own suspension point.
func (b *BidirectionalRunner) bridge(ctx context.Context) {
	seenFwd := make(map[Edge]bool)
	seenBwd := make(map[Edge]bool)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if b.backwardFromForward != nil {
			for _, e := range b.Forward.PathEdges() {
				if seenFwd[e] {
					continue
				}
				seenFwd[e] = true
				for _, injected := range b.backwardFromForward(e) {
					b.Backward.InjectExternal(injected)
				}
			}
		}
		if b.forwardFromBackward != nil {
			for _, e := range b.Backward.PathEdges() {
				if seenBwd[e] {
					continue
				}
				seenBwd[e] = true
				for _, injected := range b.forwardFromBackward(e) {
					b.Forward.InjectExternal(injected)
				}
			}
		}
	}
}

// Idle reports quiescence of the pair as the conjunction of both inner
// runners' idleness (§4.7).
func (b *BidirectionalRunner) Idle() bool { return b.Forward.Idle() && b.Backward.Idle() }

// RunPostHoc runs each inner runner's post-hoc detection independently
// (§6): the forward and backward halves are separate Analyzers, each with
// its own SummaryFactsPost.
func (b *BidirectionalRunner) RunPostHoc() {
	b.Forward.RunPostHoc()
	b.Backward.RunPostHoc()
}

// FatalError reports the first violated solver invariant observed by
// either inner runner.
func (b *BidirectionalRunner) FatalError() *Error {
	if fe := b.Forward.FatalError(); fe != nil {
		return fe
	}
	return b.Backward.FatalError()
}
