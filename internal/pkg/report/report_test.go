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

package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
)

type fakeMethod string

func (m fakeMethod) ID() string     { return string(m) }
func (m fakeMethod) String() string { return string(m) }

type fakeStatement string

func (s fakeStatement) ID() string           { return string(s) }
func (s fakeStatement) Method() ifds.Method  { return fakeMethod("m") }
func (s fakeStatement) String() string       { return string(s) }

func fakeVuln(rule, cwe string) ifds.Vulnerability {
	return ifds.Vulnerability{
		Method: fakeMethod("pkg.Handler"),
		Sink:   ifds.Vertex{Stmt: fakeStatement("sink1"), Fact: ifds.Zero},
		Rule:   rule,
		CWE:    cwe,
	}
}

func TestBuildStatus(t *testing.T) {
	complete := Build(ifds.Result{}, nil)
	if complete.Status != StatusComplete {
		t.Errorf("Status = %q, want %q for a non-partial result", complete.Status, StatusComplete)
	}

	partial := Build(ifds.Result{Partial: true}, nil)
	if partial.Status != StatusPartial {
		t.Errorf("Status = %q, want %q for a partial result", partial.Status, StatusPartial)
	}
}

func TestBuildFindingsAndStableID(t *testing.T) {
	v := fakeVuln("taint", "CWE-89")
	res := ifds.Result{Vulnerabilities: []ifds.Vulnerability{v}}

	doc1 := Build(res, nil)
	doc2 := Build(res, nil)

	if len(doc1.Findings) != 1 {
		t.Fatalf("len(Findings) = %d, want 1", len(doc1.Findings))
	}
	f := doc1.Findings[0]
	if f.Rule != "taint" || f.CWE != "CWE-89" {
		t.Errorf("Finding = %+v, want Rule=taint CWE=CWE-89", f)
	}
	if f.Method != "pkg.Handler" {
		t.Errorf("Finding.Method = %q, want %q", f.Method, "pkg.Handler")
	}
	if f.ID != doc2.Findings[0].ID {
		t.Errorf("finding ID not stable across Build calls for the same Vulnerability: %q != %q", f.ID, doc2.Findings[0].ID)
	}
}

func TestBuildDistinctVulnerabilitiesGetDistinctIDs(t *testing.T) {
	a := fakeVuln("taint", "CWE-89")
	b := fakeVuln("npe", "")
	doc := Build(ifds.Result{Vulnerabilities: []ifds.Vulnerability{a, b}}, nil)
	if doc.Findings[0].ID == doc.Findings[1].ID {
		t.Error("two distinct vulnerabilities produced the same finding ID")
	}
}

func TestBuildAttachesTrace(t *testing.T) {
	v := fakeVuln("taint", "")
	trace := &ifds.TraceGraph{Sink: v.Sink}
	doc := Build(ifds.Result{Vulnerabilities: []ifds.Vulnerability{v}}, func(ifds.Vulnerability) *ifds.TraceGraph {
		return trace
	})
	if doc.Findings[0].Trace != trace {
		t.Error("Build did not attach the traceOf result to the Finding")
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	doc := Build(ifds.Result{Vulnerabilities: []ifds.Vulnerability{fakeVuln("taint", "CWE-89")}}, nil)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got Document
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(doc, got); diff != "" {
		t.Errorf("round-tripped Document differs from the original (-want +got):\n%s", diff)
	}
}

func TestWriteSARIFIncludesRuleAndMessage(t *testing.T) {
	doc := Build(ifds.Result{Vulnerabilities: []ifds.Vulnerability{fakeVuln("taint", "CWE-89")}}, nil)

	var buf bytes.Buffer
	if err := WriteSARIF(&buf, doc); err != nil {
		t.Fatalf("WriteSARIF: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"2.1.0", `"taint"`, "reaches"} {
		if !strings.Contains(out, want) {
			t.Errorf("SARIF output missing %q; got:\n%s", want, out)
		}
	}
}
