package dominance

import "example.com/tests/support"

// handle sanitizes v on only one branch; the other branch reaches the sink
// with the original tainted value, so the merged value at the sink must
// still be flagged.
func handle(cond bool) {
	v := support.ReadInput()
	if cond {
		v = support.Sanitize(v)
	}
	support.Sink(v) // want "taint: tainted value reaches"
}
