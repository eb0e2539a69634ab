package game

// Status is the coarse lifecycle phase of a tournament.
type Status string

const (
	StatusWaiting         Status = "waiting"
	StatusTournamentSetup Status = "tournament-setup"
	StatusCategorySelect  Status = "category-select"
	StatusPlaying         Status = "playing"
	StatusRoundEnd        Status = "round-end"
	StatusTournamentEnd   Status = "tournament-end"
)

// edges lists every forward transition of the lifecycle.
var edges = map[Status][]Status{
	StatusWaiting:         {StatusTournamentSetup},
	StatusTournamentSetup: {StatusCategorySelect},
	StatusCategorySelect:  {StatusPlaying},
	StatusPlaying:         {StatusRoundEnd},
	StatusRoundEnd:        {StatusCategorySelect, StatusTournamentEnd},
}

// manualEdges are the forward edges a host may take with SET_STATUS.
// Everything else is driven by a dedicated action.
var manualEdges = map[Status]Status{
	StatusWaiting:         StatusTournamentSetup,
	StatusTournamentSetup: StatusCategorySelect,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusTournamentSetup, StatusCategorySelect,
		StatusPlaying, StatusRoundEnd, StatusTournamentEnd:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an edge of the lifecycle,
// including the reset edges back to waiting and tournament-setup.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to || to == StatusWaiting || to == StatusTournamentSetup {
		return true
	}
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}
