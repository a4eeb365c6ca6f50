package passthrough

import "example.com/tests/support"

func handle() {
	v := support.ReadInput()
	wrapped := support.Wrap(v)
	support.Sink(wrapped) // want "taint: tainted value reaches"
}
