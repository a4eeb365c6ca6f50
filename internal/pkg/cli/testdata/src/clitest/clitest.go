package clitest

func HandleRequest() int {
	return 1
}

func HandleOther() int {
	return 2
}

func internalHelper() int {
	return 3
}
