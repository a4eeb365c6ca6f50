package suppressed

import "example.com/tests/support"

func handle() {
	v := support.ReadInput()
	// jflow:ignore: reviewed, this sink only ever receives operator-supplied input
	support.Sink(v)
}
