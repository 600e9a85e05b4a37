package service

// levelStep is the minimum star count for a level
type levelStep struct {
	MinStars int
	Level    int
	Title    string
}

var levelTable = []levelStep{
	{MinStars: 0, Level: 1, Title: "Curious Beginner"},
	{MinStars: 25, Level: 2, Title: "Eager Explorer"},
	{MinStars: 75, Level: 3, Title: "Bright Adventurer"},
	{MinStars: 150, Level: 4, Title: "Star Champion"},
	{MinStars: 300, Level: 5, Title: "Learning Master"},
	{MinStars: 500, Level: 6, Title: "Legend of Learning"},
}

// LevelFor maps a star count to a level number and title.
// Negative counts are treated as zero.
func LevelFor(stars int) (int, string) {
	step := levelTable[0]
	for _, candidate := range levelTable {
		if stars >= candidate.MinStars {
			step = candidate
		}
	}
	return step.Level, step.Title
}
