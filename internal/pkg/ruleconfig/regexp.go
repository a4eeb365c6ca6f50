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

package ruleconfig

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Regexp is a regular expression that unmarshals from a plain JSON/YAML
// string, so method/package matchers in the configuration file read like
// ordinary strings rather than a nested object.
type Regexp struct {
	*regexp.Regexp
}

// MatchString reports whether the regexp matches s; an unset Regexp (the
// zero value, used for an omitted matcher field) matches everything.
func (r Regexp) MatchString(s string) bool {
	if r.Regexp == nil {
		return true
	}
	return r.Regexp.MatchString(s)
}

// UnmarshalJSON compiles the quoted pattern. sigs.k8s.io/yaml converts YAML
// documents to JSON before this is called, so one implementation serves
// both formats.
func (r *Regexp) UnmarshalJSON(data []byte) error {
	var pattern string
	if err := json.Unmarshal(data, &pattern); err != nil {
		return fmt.Errorf("ruleconfig: regexp must be a string: %w", err)
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("ruleconfig: invalid regexp %q: %w", pattern, err)
	}
	r.Regexp = compiled
	return nil
}

// MarshalJSON re-serializes to the source pattern, so a loaded and re-saved
// configuration round-trips.
func (r Regexp) MarshalJSON() ([]byte, error) {
	if r.Regexp == nil {
		return json.Marshal("")
	}
	return json.Marshal(r.Regexp.String())
}

func (r Regexp) String() string {
	if r.Regexp == nil {
		return ""
	}
	return r.Regexp.String()
}
