package unusedtest

func computeOrFallback(cond bool) int {
	x := 5
	if cond {
		return x
	}
	return 0
}

func alwaysRead() int {
	x := 5
	return x
}
