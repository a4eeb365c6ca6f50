package graphtest

func callee(x int) int {
	return x + 1
}

func caller() int {
	v := callee(1)
	return v
}

func branchy(cond bool) int {
	if cond {
		return 1
	}
	return 2
}
