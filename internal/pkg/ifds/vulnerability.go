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

// Vulnerability is a finding (§3): a sink Vertex reached under some rule,
// together with enough provenance to later reconstruct a witness trace.
type Vulnerability struct {
	Method    Method
	Sink      Vertex
	Rule      string
	CWE       string
	ConfigRef string
}

// SortKey returns the stable (method id, sink statement id, fact string)
// key used to make finding order reproducible across runs (§4.4 "Ordering
// and tie-breaks", §8 invariant 5).
func (v Vulnerability) SortKey() string {
	return v.Method.ID() + "\x00" + v.Sink.Stmt.ID() + "\x00" + factString(v.Sink.Fact)
}
