// internal/game/types.go
//
// Core type definitions for the Elias game state machine.
// Defines:
//   - Word / Category: read-only content resolved through a Catalog.
//   - Team / Player: the parties playing; owned by State once a game starts.
//   - GuessedWord: append-only event log entry (source of truth for exhaustion).
//   - CategoryRoundResult: derived per-category summary.
//   - State: the serializable aggregate root replaced by every transition.

package game

// Word is a single guessable entry. Word is the per-category unique key.
type Word struct {
	Word string `json:"word"`
	Hint string `json:"hint"`
}

// Category groups words. Words are in insertion order, not gameplay order.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Words []Word `json:"words"`
}

// Catalog resolves a category id. A miss must be reported, never panic.
type Catalog interface {
	FindCategory(id string) (Category, bool)
}

// Player belongs to exactly one team.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsHost bool   `json:"isHost"`
}

// Team holds its players and the running score (never below zero unless overridden).
type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Color   string   `json:"color"`
	Players []Player `json:"players"`
	Score   int      `json:"score"`
}

// GuessedWord records one successful guess. Entries are never mutated or removed.
type GuessedWord struct {
	Word       string `json:"word"`
	TeamID     string `json:"teamId"`
	CategoryID string `json:"categoryId"`
	UsedHint   bool   `json:"usedHint"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
}

// TeamResult is one team's contribution to a category.
type TeamResult struct {
	TeamID        string `json:"teamId"`
	TeamName      string `json:"teamName"`
	WordsGuessed  int    `json:"wordsGuessed"`
	WordsWithHint int    `json:"wordsWithHint"`
	Score         int    `json:"score"`
}

// CategoryRoundResult summarises every team's play in one category.
type CategoryRoundResult struct {
	CategoryID   string       `json:"categoryId"`
	CategoryName string       `json:"categoryName"`
	CategoryIcon string       `json:"categoryIcon"`
	TeamResults  []TeamResult `json:"teamResults"`
}

// State is the whole game. It is treated as an immutable value: transitions
// return a new State and never write into slices owned by the old one.
type State struct {
	RoomCode         string `json:"roomCode"`
	Status           Status `json:"status"`
	Teams            []Team `json:"teams"`
	CurrentTeamIndex int    `json:"currentTeamIndex"`
	CurrentWord      *Word  `json:"currentWord"`
	CurrentCategory  string `json:"currentCategoryId,omitempty"`

	TournamentCategories    []string `json:"tournamentCategories"`
	PlayedCategories        []string `json:"playedCategories"`
	CurrentRoundTeamsPlayed []string `json:"currentRoundTeamsPlayed"`

	WordsQueue   []Word        `json:"wordsQueue"`
	GuessedWords []GuessedWord `json:"guessedWords"`
	SkippedWords []Word        `json:"skippedWords"`
	// TurnStart is the length of GuessedWords when the current turn began.
	TurnStart int `json:"turnStart"`

	TimerSeconds   int  `json:"timerSeconds"`
	IsTimerRunning bool `json:"isTimerRunning"`
	HintUsed       bool `json:"hintUsed"`
	ShowHint       bool `json:"showHint"`

	CategoryResults []CategoryRoundResult `json:"categoryResults"`
}

// Rules are the tunable scoring and timing constants.
type Rules struct {
	TimerDuration int `json:"timerDuration"`
	PointsPerWord int `json:"pointsPerWord"`
	HintPenalty   int `json:"hintPenalty"`
}

// DefaultRules mirrors the classic table-top settings.
var DefaultRules = Rules{TimerDuration: 60, PointsPerWord: 1, HintPenalty: 1}

// DefaultTeams are the two teams a fresh game starts with.
func DefaultTeams() []Team {
	return []Team{
		{ID: "team-1", Name: "Команда 1", Color: "from-blue-500 to-cyan-500", Players: []Player{}},
		{ID: "team-2", Name: "Команда 2", Color: "from-pink-500 to-rose-500", Players: []Player{}},
	}
}

// Default returns the initial state a process starts with.
func Default(r Rules) State {
	return State{
		Status:                  StatusWaiting,
		Teams:                   DefaultTeams(),
		TournamentCategories:    []string{},
		PlayedCategories:        []string{},
		CurrentRoundTeamsPlayed: []string{},
		WordsQueue:              []Word{},
		GuessedWords:            []GuessedWord{},
		SkippedWords:            []Word{},
		TimerSeconds:            r.TimerDuration,
		CategoryResults:         []CategoryRoundResult{},
	}
}

// CurrentTeam returns the acting team, or false when the index is out of range.
func (s State) CurrentTeam() (Team, bool) {
	if s.CurrentTeamIndex < 0 || s.CurrentTeamIndex >= len(s.Teams) {
		return Team{}, false
	}
	return s.Teams[s.CurrentTeamIndex], true
}
