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

// Package report serializes an analysis run's Result (internal/pkg/ifds)
// into the two output formats the CLI supports: a plain JSON document and
// SARIF 2.1.0 (§6).
package report

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/jflow-dev/jflow/internal/pkg/ifds"
)

// Status discriminates how an analysis run ended (§7 "User-visible
// behavior").
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusAborted  Status = "aborted"
)

// Finding is one reported Vulnerability, stamped with a stable ID and
// (optionally) its reconstructed witness trace.
type Finding struct {
	ID      string           `json:"id"`
	Rule    string           `json:"rule"`
	CWE     string           `json:"cwe,omitempty"`
	Method  string           `json:"method"`
	Sink    string           `json:"sink"`
	Trace   *ifds.TraceGraph `json:"trace,omitempty"`
}

// Document is the top-level JSON report (§6 "Output").
type Document struct {
	Status     Status    `json:"status"`
	Overflowed bool      `json:"overflowed,omitempty"`
	Error      string    `json:"error,omitempty"`
	Findings   []Finding `json:"findings"`
}

// statusOf derives the Status header from an ifds.Result. A fatal *ifds.Error
// (ErrConfiguration, ErrInternalInvariant) aborts the run outright; any other
// error (e.g. ErrBudget) only downgrades a clean run to partial, which
// res.Partial already reflects.
func statusOf(res ifds.Result) Status {
	var ferr *ifds.Error
	if errors.As(res.Err, &ferr) && ferr.Fatal() {
		return StatusAborted
	}
	if res.Partial {
		return StatusPartial
	}
	return StatusComplete
}

// BuildAborted builds a Document for a run that never got as far as
// producing an ifds.Result at all (e.g. a configuration load failure),
// stamping its Error field from err.
func BuildAborted(err error) Document {
	return Document{Status: StatusAborted, Error: err.Error()}
}

// Build assembles a Document from a completed run. traceOf, if non-nil, is
// called once per vulnerability to attach its witness (callers typically
// close over ifds.Reconstruct plus a Manager's ReasonsOf/AllPathEdges); a
// nil traceOf omits traces entirely.
func Build(res ifds.Result, traceOf func(ifds.Vulnerability) *ifds.TraceGraph) Document {
	doc := Document{
		Status:     statusOf(res),
		Overflowed: res.Overflowed,
	}
	if res.Err != nil {
		doc.Error = res.Err.Error()
	}
	for _, v := range res.Vulnerabilities {
		f := Finding{
			ID:     findingID(v),
			Rule:   v.Rule,
			CWE:    v.CWE,
			Method: v.Method.String(),
			Sink:   v.Sink.Stmt.String(),
		}
		if traceOf != nil {
			f.Trace = traceOf(v)
		}
		doc.Findings = append(doc.Findings, f)
	}
	return doc
}

// findingID derives a stable UUID (v5, namespace-keyed on the vulnerability
// identity) so the same finding gets the same ID across runs, for diffing
// two reports; the SARIF writer includes it in each result's message text.
func findingID(v ifds.Vulnerability) string {
	return uuid.NewSHA1(findingNamespace, []byte(v.SortKey()+"\x00"+v.Rule)).String()
}

var findingNamespace = uuid.MustParse("6f2b6b0a-6e0a-4f1b-9f0a-1c6d9a9b9a10")

// WriteJSON writes doc to w as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
