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

import "fmt"

// ErrorKind classifies errors per the §7 taxonomy.
type ErrorKind int

const (
	// ErrConfiguration covers unparseable analysis config, a missing start
	// class prefix, or invalid CLI arguments. The run must be rejected
	// before any analysis starts.
	ErrConfiguration ErrorKind = iota
	// ErrResolution covers an unknown class or method referenced by
	// config; the offending rule is recorded and skipped, and the run
	// continues.
	ErrResolution
	// ErrPropagation covers a flow function producing a fact outside the
	// domain bound; the fact is truncated and propagation proceeds.
	ErrPropagation
	// ErrBudget covers the analysis deadline being reached; all runners
	// are cancelled and the result is marked partial.
	ErrBudget
	// ErrInternalInvariant covers a violated solver invariant (a
	// cross-method edge, a negative parameter index, a reason referring
	// to an unknown edge); the run aborts.
	ErrInternalInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case ErrConfiguration:
		return "configuration"
	case ErrResolution:
		return "resolution"
	case ErrPropagation:
		return "propagation"
	case ErrBudget:
		return "budget"
	case ErrInternalInvariant:
		return "internal-invariant"
	default:
		return "unknown"
	}
}

// Error is the engine's error type: every error the solver produces
// carries a Kind so callers can apply the §7 propagation policy (per-edge
// errors are swallowed and logged; manager-level and invariant errors
// abort the run).
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether errors of this kind should abort the whole run
// rather than being swallowed for a single edge.
func (e *Error) Fatal() bool {
	return e.Kind == ErrInternalInvariant || e.Kind == ErrConfiguration
}

// NewError builds an *Error.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
