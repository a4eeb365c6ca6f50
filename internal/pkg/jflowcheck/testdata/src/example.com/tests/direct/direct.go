package direct

import "example.com/tests/support"

func handle() {
	v := support.ReadInput()
	support.Sink(v) // want "taint: tainted value reaches"
}
