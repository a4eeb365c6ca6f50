package interproc

import "example.com/tests/support"

func sink(v string) {
	support.Sink(v) // want "taint: tainted value reaches"
}

func handle() {
	v := support.ReadInput()
	sink(v)
}
