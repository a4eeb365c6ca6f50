package tests

// jflow:ignore
func flagged() int { // want "suppressed"
	return 1
}

func notFlagged() int {
	return 2
}
