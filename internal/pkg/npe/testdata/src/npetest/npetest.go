package npetest

type T struct {
	Field int
}

func derefNil() int {
	var p *T
	p = nil
	return p.Field
}

func derefOK() int {
	p := &T{Field: 1}
	return p.Field
}
