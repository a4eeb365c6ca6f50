package fieldsource

import "example.com/tests/support"

type Creds struct {
	Password string `jflow:"source"`
	Note     string
}

func handle(c *Creds) {
	support.Sink(c.Password) // want "taint: tainted value reaches"
	support.Sink(c.Note)
}
