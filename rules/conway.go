package rules

const (
	// BirthNeighbors is the live neighbor count that brings an empty cell to life
	BirthNeighbors = 3
	// SurviveMin and SurviveMax bound the counts that keep a live cell alive
	SurviveMin = 2
	SurviveMax = 3
)

/*
ApplyConwayRules applies Conway's Game of Life rules to determine the next state of a cell.

Conway's Game of Life rules (B3/S23): (alive && neighbors == 2) || neighbors == 3
*/
func ApplyConwayRules(neighbors int, alive bool) bool {
	if alive {
		return neighbors >= SurviveMin && neighbors <= SurviveMax
	}
	return neighbors == BirthNeighbors
}

/*
Transition reports how a cell changes in the next generation:
-1 when a live cell dies, 1 when an empty cell is born, 0 otherwise.
*/
func Transition(neighbors int, alive bool) int8 {
	next := ApplyConwayRules(neighbors, alive)
	switch {
	case alive && !next:
		return -1
	case !alive && next:
		return 1
	}
	return 0
}
