// Package support provides the source/sink/passthrough/sanitizer
// functions matched by testdata/test-config.yaml, shared by every
// scenario package under example.com/tests.
package support

func ReadInput() string        { return "" }
func Sink(string)              {}
func Wrap(s string) string     { return s }
func Sanitize(s string) string { return s }
