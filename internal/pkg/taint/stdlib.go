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

package taint

import (
	"github.com/jflow-dev/jflow/internal/pkg/ifds"
	"golang.org/x/tools/go/ssa"
)

// stdlibSummary captures a standard library function's taint behavior
// (§5 "Supplemented Features"): given that at least one of the positions in
// ifTainted already carries a mark, which argument/return positions pick it
// up too? The receiver, where a call has one, occupies position 0 alongside
// the declared arguments; stdlibSummaries is keyed by the callee's
// qualified name (ssa.Function.RelString(nil), e.g. "fmt.Sprintf" or
// "(*bytes.Buffer).Next") so the lookup never needs the callee's body —
// every entry here stands in for a function this analysis will otherwise
// treat as opaque.
type stdlibSummary struct {
	ifTainted   int64
	taintedArgs []int
	taintedRets []int
}

var fromFirstArgToFirstRet = stdlibSummary{
	ifTainted:   0b1,
	taintedRets: []int{0},
}

// stdlibSummaries covers the subset of the standard library call surface
// that commonly sits between a configured source and a configured sink:
// string/byte formatting and transformation, (de)serialization, and I/O
// copying. A call matching none of these is simply opaque: taint reaching
// it as an argument does not, by this table alone, reach anywhere else.
var stdlibSummaries = map[string]stdlibSummary{
	"fmt.Errorf": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"fmt.Sprint": fromFirstArgToFirstRet,
	"fmt.Sprintf": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"fmt.Sprintln": fromFirstArgToFirstRet,
	"fmt.Fprint": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"fmt.Fprintf": {
		ifTainted:   0b110,
		taintedArgs: []int{0},
	},
	"fmt.Fprintln": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"fmt.Sscan": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"fmt.Sscanln": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"fmt.Sscanf": {
		ifTainted:   0b1,
		taintedArgs: []int{2},
	},
	"fmt.Fscan": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"fmt.Fscanln": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"fmt.Fscanf": {
		ifTainted:   0b1,
		taintedArgs: []int{2},
	},
	"errors.New":    fromFirstArgToFirstRet,
	"errors.Unwrap": fromFirstArgToFirstRet,
	"errors.As": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"strings.SplitN":       fromFirstArgToFirstRet,
	"strings.SplitAfterN":  fromFirstArgToFirstRet,
	"strings.Split":        fromFirstArgToFirstRet,
	"strings.SplitAfter":   fromFirstArgToFirstRet,
	"strings.Fields":       fromFirstArgToFirstRet,
	"strings.FieldsFunc":   fromFirstArgToFirstRet,
	"strings.Repeat":       fromFirstArgToFirstRet,
	"strings.ToUpper":      fromFirstArgToFirstRet,
	"strings.ToLower":      fromFirstArgToFirstRet,
	"strings.ToTitle":      fromFirstArgToFirstRet,
	"strings.Title":        fromFirstArgToFirstRet,
	"strings.TrimLeftFunc": fromFirstArgToFirstRet,
	"strings.TrimRightFunc": fromFirstArgToFirstRet,
	"strings.TrimFunc":      fromFirstArgToFirstRet,
	"strings.Trim":          fromFirstArgToFirstRet,
	"strings.TrimLeft":      fromFirstArgToFirstRet,
	"strings.TrimRight":     fromFirstArgToFirstRet,
	"strings.TrimSpace":     fromFirstArgToFirstRet,
	"strings.TrimPrefix":    fromFirstArgToFirstRet,
	"strings.TrimSuffix":    fromFirstArgToFirstRet,
	"strings.NewReader":     fromFirstArgToFirstRet,
	"strings.NewReplacer":   fromFirstArgToFirstRet,
	"strings.Join": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"strings.Map": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"strings.ToUpperSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"strings.ToLowerSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"strings.ToTitleSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"strings.ToValidUTF8": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"strings.Replace": {
		ifTainted:   0b101,
		taintedRets: []int{0},
	},
	"strings.ReplaceAll": {
		ifTainted:   0b101,
		taintedRets: []int{0},
	},
	"(*strings.Replacer).Replace": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"(*strings.Replacer).WriteString": {
		ifTainted:   0b101,
		taintedArgs: []int{1},
	},
	"(*bytes.Buffer).Next":       fromFirstArgToFirstRet,
	"(*bytes.Buffer).ReadBytes":  fromFirstArgToFirstRet,
	"(*bytes.Buffer).ReadString": fromFirstArgToFirstRet,
	"bytes.NewBuffer":            fromFirstArgToFirstRet,
	"bytes.NewBufferString":      fromFirstArgToFirstRet,
	"bytes.NewReader":            fromFirstArgToFirstRet,
	"bytes.SplitN":                fromFirstArgToFirstRet,
	"bytes.SplitAfterN":           fromFirstArgToFirstRet,
	"bytes.Split":                 fromFirstArgToFirstRet,
	"bytes.SplitAfter":            fromFirstArgToFirstRet,
	"bytes.Fields":                fromFirstArgToFirstRet,
	"bytes.FieldsFunc":            fromFirstArgToFirstRet,
	"bytes.Repeat":                fromFirstArgToFirstRet,
	"bytes.ToUpper":               fromFirstArgToFirstRet,
	"bytes.ToLower":               fromFirstArgToFirstRet,
	"bytes.ToTitle":                fromFirstArgToFirstRet,
	"bytes.Title":                 fromFirstArgToFirstRet,
	"bytes.TrimLeftFunc":          fromFirstArgToFirstRet,
	"bytes.TrimRightFunc":         fromFirstArgToFirstRet,
	"bytes.TrimFunc":              fromFirstArgToFirstRet,
	"bytes.TrimPrefix":            fromFirstArgToFirstRet,
	"bytes.TrimSuffix":            fromFirstArgToFirstRet,
	"bytes.Trim":                  fromFirstArgToFirstRet,
	"bytes.TrimLeft":              fromFirstArgToFirstRet,
	"bytes.TrimRight":             fromFirstArgToFirstRet,
	"bytes.TrimSpace":             fromFirstArgToFirstRet,
	"bytes.Runes":                 fromFirstArgToFirstRet,
	"bytes.Join": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"bytes.Map": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"bytes.ToUpperSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"bytes.ToLowerSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"bytes.ToTitleSpecial": {
		ifTainted:   0b10,
		taintedRets: []int{0},
	},
	"bytes.ToValidUTF8": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"bytes.Replace": {
		ifTainted:   0b101,
		taintedRets: []int{0},
	},
	"bytes.ReplaceAll": {
		ifTainted:   0b101,
		taintedRets: []int{0},
	},
	"io.WriteString": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"io.ReadAtLeast": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"io.ReadFull": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"io.CopyN": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"io.Copy": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"io.CopyBuffer": {
		ifTainted:   0b10,
		taintedArgs: []int{0, 2},
	},
	"io.LimitReader": fromFirstArgToFirstRet,
	"io.TeeReader": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"io.MultiReader": fromFirstArgToFirstRet,
	"io.MultiWriter": fromFirstArgToFirstRet,
	"(*io.PipeReader).CloseWithError": fromFirstArgToFirstRet,
	"(*io.PipeWriter).CloseWithError": fromFirstArgToFirstRet,
	"io/ioutil.ReadAll":               fromFirstArgToFirstRet,
	"io/ioutil.NopCloser":             fromFirstArgToFirstRet,
	"bufio.NewReaderSize":             fromFirstArgToFirstRet,
	"bufio.NewReader":                 fromFirstArgToFirstRet,
	"(*bufio.Reader).Peek":            fromFirstArgToFirstRet,
	"(*bufio.Reader).ReadSlice":       fromFirstArgToFirstRet,
	"(*bufio.Reader).ReadLine":        fromFirstArgToFirstRet,
	"(*bufio.Reader).ReadBytes":       fromFirstArgToFirstRet,
	"(*bufio.Reader).ReadString":      fromFirstArgToFirstRet,
	"bufio.NewWriterSize":             fromFirstArgToFirstRet,
	"bufio.NewWriter":                 fromFirstArgToFirstRet,
	"bufio.NewReadWriter": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"bufio.NewScanner":          fromFirstArgToFirstRet,
	"(*bufio.Scanner).Bytes":    fromFirstArgToFirstRet,
	"(*bufio.Scanner).Text":     fromFirstArgToFirstRet,
	"(*bufio.Scanner).Buffer": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"bufio.ScanLines": {
		ifTainted:   0b1,
		taintedRets: []int{1},
	},
	"bufio.ScanWords": {
		ifTainted:   0b1,
		taintedRets: []int{1},
	},
	"context.WithValue": {
		ifTainted:   0b111,
		taintedRets: []int{0},
	},
	"strconv.AppendBool":  fromFirstArgToFirstRet,
	"strconv.AppendFloat": fromFirstArgToFirstRet,
	"strconv.AppendInt":   fromFirstArgToFirstRet,
	"strconv.AppendUint":  fromFirstArgToFirstRet,
	"strconv.Quote":       fromFirstArgToFirstRet,
	"strconv.QuoteToASCII": fromFirstArgToFirstRet,
	"strconv.QuoteToGraphic": fromFirstArgToFirstRet,
	"strconv.AppendQuoteRune": fromFirstArgToFirstRet,
	"strconv.AppendQuoteRuneToASCII": fromFirstArgToFirstRet,
	"strconv.AppendQuoteRuneToGraphic": fromFirstArgToFirstRet,
	"strconv.Unquote": fromFirstArgToFirstRet,
	"strconv.AppendQuote": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"strconv.AppendQuoteToASCII": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"strconv.AppendQuoteToGraphic": {
		ifTainted:   0b11,
		taintedRets: []int{0},
	},
	"strconv.UnquoteChar": {
		ifTainted:   0b1,
		taintedRets: []int{2},
	},
	"encoding/json.Unmarshal": {
		ifTainted:   0b11,
		taintedArgs: []int{0, 1},
	},
	"encoding/json.Marshal":       fromFirstArgToFirstRet,
	"encoding/json.MarshalIndent": fromFirstArgToFirstRet,
	"encoding/json.HTMLEscape": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"encoding/json.Compact": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"encoding/json.Indent": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"encoding/json.NewDecoder": fromFirstArgToFirstRet,
	"(*encoding/json.Decoder).Decode": {
		ifTainted:   0b1,
		taintedArgs: []int{1},
	},
	"(*encoding/json.Decoder).Buffered": fromFirstArgToFirstRet,
	"(*encoding/json.Decoder).Token":     fromFirstArgToFirstRet,
	"encoding/json.NewEncoder":           fromFirstArgToFirstRet,
	"(*encoding/json.Encoder).Encode": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"(encoding/json.RawMessage).MarshalJSON": fromFirstArgToFirstRet,
	"(*encoding/json.RawMessage).UnmarshalJSON": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"(*encoding/base64.Encoding).Encode": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"(*encoding/base64.Encoding).EncodeToString": fromFirstArgToFirstRet,
	"(*encoding/base64.Encoding).DecodeString":   fromFirstArgToFirstRet,
	"(*encoding/base64.Encoding).Decode": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"encoding/base64.NewDecoder": fromFirstArgToFirstRet,
	"(*sync.Map).Load":           fromFirstArgToFirstRet,
	"(*sync.Map).Store": {
		ifTainted:   0b110,
		taintedArgs: []int{0},
	},
	"(*sync.Map).LoadOrStore": {
		ifTainted:   0b111,
		taintedArgs: []int{0},
		taintedRets: []int{0},
	},
	"(*sync.Map).LoadAndDelete": fromFirstArgToFirstRet,
	"(*sync.Pool).Put": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"(*sync.Pool).Get": fromFirstArgToFirstRet,
	"(*text/scanner.Scanner).Init": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
		taintedRets: []int{0},
	},
	"(*text/scanner.Scanner).TokenText": fromFirstArgToFirstRet,
	"(*text/tabwriter.Writer).Write": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"text/tabwriter.NewWriter": fromFirstArgToFirstRet,
	"(*text/template.Template).ExecuteTemplate": {
		ifTainted:   0b1000,
		taintedArgs: []int{1},
	},
	"(*text/template.Template).Execute": {
		ifTainted:   0b100,
		taintedArgs: []int{1},
	},
	"text/template.HTMLEscape": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"text/template.HTMLEscapeString": fromFirstArgToFirstRet,
	"text/template.HTMLEscaper":      fromFirstArgToFirstRet,
	"text/template.JSEscape": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"text/template.JSEscapeString":  fromFirstArgToFirstRet,
	"text/template.JSEscaper":       fromFirstArgToFirstRet,
	"text/template.URLQueryEscaper": fromFirstArgToFirstRet,
	"(*html/template.Template).ExecuteTemplate": {
		ifTainted:   0b1000,
		taintedArgs: []int{1},
	},
	"(*html/template.Template).Execute": {
		ifTainted:   0b100,
		taintedArgs: []int{1},
	},
	"html/template.HTMLEscape": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"html/template.HTMLEscapeString":  fromFirstArgToFirstRet,
	"html/template.HTMLEscaper":       fromFirstArgToFirstRet,
	"html/template.JSEscape": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"html/template.JSEscapeString":  fromFirstArgToFirstRet,
	"html/template.JSEscaper":       fromFirstArgToFirstRet,
	"html/template.URLQueryEscaper": fromFirstArgToFirstRet,
	"path.Clean":                    fromFirstArgToFirstRet,
	"path.Join":                     fromFirstArgToFirstRet,
	"path.Base":                     fromFirstArgToFirstRet,
	"path.Split": {
		ifTainted:   0b1,
		taintedRets: []int{0, 1},
	},
	"path/filepath.Clean":     fromFirstArgToFirstRet,
	"path/filepath.ToSlash":   fromFirstArgToFirstRet,
	"path/filepath.FromSlash": fromFirstArgToFirstRet,
	"path/filepath.SplitList": fromFirstArgToFirstRet,
	"path/filepath.Join":      fromFirstArgToFirstRet,
	"path/filepath.Ext":       fromFirstArgToFirstRet,
	"path/filepath.Abs":       fromFirstArgToFirstRet,
	"path/filepath.Base":      fromFirstArgToFirstRet,
	"path/filepath.Split": {
		ifTainted:   0b1,
		taintedRets: []int{0, 1},
	},
	"log.New": fromFirstArgToFirstRet,
	"(*log.Logger).SetOutput": {
		ifTainted:   0b10,
		taintedArgs: []int{0},
	},
	"(*log.Logger).Writer": fromFirstArgToFirstRet,
}

// stdlibPassThrough resolves call against stdlibSummaries for the single
// incoming fact mf, the same way a configured PassThrough rule would, but
// without needing a rule: the table substitutes for a callee body this
// analysis will never see the source of. position is the index of the
// parameter (receiver included, at 0, for a method call) mf.AP is rooted
// at. When the callee returns more than one value, each tainted result is
// the *ssa.Extract instruction that reads it from call.
func stdlibPassThrough(call ssa.CallInstruction, position int, mf ifds.MarkedFact) []ifds.Fact {
	callee := call.Common().StaticCallee()
	if callee == nil {
		return nil
	}
	summ, ok := stdlibSummaries[callee.RelString(nil)]
	if !ok || summ.ifTainted&(1<<uint(position)) == 0 {
		return nil
	}

	args := call.Common().Args
	var out []ifds.Fact
	for _, i := range summ.taintedArgs {
		if i < len(args) {
			out = append(out, ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(args[i])), Marks: mf.Marks})
		}
	}
	if len(summ.taintedRets) == 0 {
		return out
	}

	results := callee.Signature.Results()
	if results == nil || results.Len() <= 1 {
		if v, ok := call.(ssa.Value); ok {
			for _, i := range summ.taintedRets {
				if i == 0 {
					out = append(out, ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(v)), Marks: mf.Marks})
				}
			}
		}
		return out
	}

	v, ok := call.(ssa.Value)
	if !ok {
		return out
	}
	wanted := make(map[int]bool, len(summ.taintedRets))
	for _, i := range summ.taintedRets {
		wanted[i] = true
	}
	for _, ref := range *v.Referrers() {
		if ex, ok := ref.(*ssa.Extract); ok && wanted[ex.Index] {
			out = append(out, ifds.MarkedFact{AP: mf.AP.Retarget(localRoot(ex)), Marks: mf.Marks})
		}
	}
	return out
}
