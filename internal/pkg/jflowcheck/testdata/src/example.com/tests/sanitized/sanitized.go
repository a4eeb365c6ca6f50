package sanitized

import "example.com/tests/support"

func handle() {
	v := support.ReadInput()
	clean := support.Sanitize(v)
	support.Sink(clean) // no finding: Sanitize drops the mark before Sink sees it
}
