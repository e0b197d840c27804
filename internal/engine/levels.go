package engine

// expectedActions[i] is the number of birds available on level i+1.
var expectedActions = []int{
	3, 5, 4, 4, 4, 4, 4, // 1-7
	4, 4, 5, 4, 4, 4, 4, // 8-14
	4, 5, 3, 5, 4, 5, 8, // 15-21
}

// ExpectedActions returns how many scoring actions level offers, or 0 when the
// level is not in the table.
func ExpectedActions(level int) int {
	if level < 1 || level > len(expectedActions) {
		return 0
	}
	return expectedActions[level-1]
}

func LevelCount() int { return len(expectedActions) }
