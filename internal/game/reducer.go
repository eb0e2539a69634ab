// internal/game/reducer.go
//
// The state machine. Apply is a pure function of (state, action, env): it
// never mutates its input, never fails, and answers every action whose
// precondition does not hold by returning the state unchanged.
//
// Lifecycle:
//   waiting → tournament-setup → category-select → playing → round-end
//   round-end → category-select (next turn) | tournament-end
// plus the reset edges back to waiting (RESET_GAME) and tournament-setup
// (RESET_TOURNAMENT). LOAD_STATE replaces the whole state.
//
// Word exhaustion is global: once (category, word) is in the guessed log it
// is gone for every team for the rest of the tournament. Skipped words are
// not logged and come back on a later turn.

package game

import (
	"math/rand/v2"
	"slices"
	"time"
)

// Env carries everything a transition may consult besides the state itself.
type Env struct {
	Catalog Catalog
	Rules   Rules
	Rand    *rand.Rand
	Now     func() time.Time
}

func (e Env) rng() *rand.Rand {
	if e.Rand != nil {
		return e.Rand
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (e Env) now() int64 {
	if e.Now != nil {
		return e.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (e Env) findCategory(id string) (Category, bool) {
	if e.Catalog == nil || id == "" {
		return Category{}, false
	}
	return e.Catalog.FindCategory(id)
}

// Apply advances s by one action.
func Apply(s State, a Action, env Env) State {
	switch a.Type {
	case ActionSetRoomCode:
		s.RoomCode = a.Code
		return s

	case ActionSetStatus:
		return setStatus(s, a.Status)

	case ActionAddPlayer:
		return addPlayer(s, a.TeamID, a.Player)

	case ActionRemovePlayer:
		return removePlayer(s, a.TeamID, a.PlayerID)

	case ActionSetTeams:
		if s.Status != StatusWaiting && s.Status != StatusTournamentSetup {
			return s
		}
		s.Teams = cloneTeams(a.Teams)
		s.CurrentTeamIndex = 0
		return s

	case ActionSetTournamentCategories:
		if s.Status != StatusWaiting && s.Status != StatusTournamentSetup {
			return s
		}
		s.TournamentCategories = dedupe(a.CategoryIDs)
		return s

	case ActionSelectCategory:
		return selectCategory(s, a.CategoryID)

	case ActionStartRound:
		return startRound(s, env)

	case ActionNextWord:
		if s.Status != StatusPlaying {
			return s
		}
		return advanceWord(s, env.Rules, false)

	case ActionWordGuessed:
		return wordGuessed(s, env)

	case ActionWordSkipped:
		return wordSkipped(s, env)

	case ActionUseHint:
		if s.Status != StatusPlaying || s.CurrentWord == nil {
			return s
		}
		s.HintUsed, s.ShowHint = true, true
		return s

	case ActionTickTimer:
		return tick(s)

	case ActionPauseTimer:
		s.IsTimerRunning = false
		return s

	case ActionResumeTimer:
		if s.Status != StatusPlaying || s.TimerSeconds <= 0 {
			return s
		}
		s.IsTimerRunning = true
		return s

	case ActionEndRound:
		if s.Status != StatusPlaying {
			return s
		}
		s.Status = StatusRoundEnd
		s.IsTimerRunning = false
		return s

	case ActionFinishTeamTurn:
		return finishTeamTurn(s, env)

	case ActionNextCategory:
		if s.Status != StatusRoundEnd && s.Status != StatusCategorySelect {
			return s
		}
		s.CurrentCategory = ""
		s.IsTimerRunning = false
		// Leaving a round with nothing left to play ends the tournament;
		// category-select would have no way out.
		if s.Status == StatusRoundEnd && tournamentExhausted(s, catalogOrEmpty(env.Catalog), guessedSet(s.GuessedWords)) {
			s.Status = StatusTournamentEnd
			return s
		}
		s.Status = StatusCategorySelect
		return s

	case ActionUpdateScore:
		// Manual correction: no zero floor.
		i := teamIndex(s.Teams, a.TeamID)
		if i < 0 {
			return s
		}
		s.Teams = withScore(s.Teams, i, a.Score)
		return s

	case ActionResetGame:
		next := Default(env.Rules)
		next.RoomCode = s.RoomCode
		next.Teams = zeroScores(s.Teams)
		return next

	case ActionResetTournament:
		next := Default(env.Rules)
		next.RoomCode = s.RoomCode
		next.Status = StatusTournamentSetup
		next.Teams = zeroScores(s.Teams)
		return next

	case ActionLoadState:
		if a.State == nil {
			return s
		}
		return *a.State
	}
	return s
}

// ApplyAll folds a sequence of actions over s.
func ApplyAll(s State, env Env, actions ...Action) State {
	for _, a := range actions {
		s = Apply(s, a, env)
	}
	return s
}

// ------------------------------- setup -------------------------------------

func setStatus(s State, to Status) State {
	if s.Status == to || !CanTransition(s.Status, to) {
		return s
	}
	if manualEdges[s.Status] != to {
		return s
	}
	if to == StatusCategorySelect && len(s.TournamentCategories) == 0 {
		return s
	}
	s.Status = to
	return s
}

func addPlayer(s State, teamID string, p Player) State {
	i := teamIndex(s.Teams, teamID)
	if i < 0 || p.ID == "" {
		return s
	}
	for _, existing := range s.Teams[i].Players {
		if existing.ID == p.ID {
			return s
		}
	}
	teams := cloneTeams(s.Teams)
	teams[i].Players = append(teams[i].Players, p)
	s.Teams = teams
	return s
}

func removePlayer(s State, teamID, playerID string) State {
	i := teamIndex(s.Teams, teamID)
	if i < 0 {
		return s
	}
	teams := cloneTeams(s.Teams)
	teams[i].Players = slices.DeleteFunc(teams[i].Players, func(p Player) bool { return p.ID == playerID })
	s.Teams = teams
	return s
}

func selectCategory(s State, id string) State {
	if s.Status != StatusCategorySelect || id == "" {
		return s
	}
	if len(s.TournamentCategories) > 0 && !slices.Contains(s.TournamentCategories, id) {
		return s
	}
	if id != s.CurrentCategory {
		s.CurrentRoundTeamsPlayed = []string{}
	}
	s.CurrentCategory = id
	return s
}

// ------------------------------- playing -----------------------------------

func startRound(s State, env Env) State {
	if s.Status != StatusCategorySelect {
		return s
	}
	if _, ok := s.CurrentTeam(); !ok {
		return s
	}
	c, ok := env.findCategory(s.CurrentCategory)
	if !ok {
		return s
	}
	available := availableWords(c, guessedSet(s.GuessedWords))
	if len(available) == 0 {
		return s
	}
	shuffled := shuffleWords(env.rng(), available)
	first := shuffled[0]

	s.Status = StatusPlaying
	s.CurrentWord = &first
	s.WordsQueue = shuffled[1:]
	s.TimerSeconds = env.Rules.TimerDuration
	s.IsTimerRunning = true
	s.HintUsed, s.ShowHint = false, false
	s.SkippedWords = []Word{}
	s.TurnStart = len(s.GuessedWords)
	return s
}

// advanceWord pops the next queued word. When resolving is set and the queue
// is already empty, the turn is over: the timer stops and the round ends.
func advanceWord(s State, r Rules, resolving bool) State {
	s.HintUsed, s.ShowHint = false, false
	if len(s.WordsQueue) == 0 {
		s.CurrentWord = nil
		s.WordsQueue = []Word{}
		if resolving {
			s.IsTimerRunning = false
			s.Status = StatusRoundEnd
		}
		return s
	}
	next := s.WordsQueue[0]
	s.CurrentWord = &next
	s.WordsQueue = s.WordsQueue[1:]
	if resolving {
		s.TimerSeconds = r.TimerDuration
	}
	return s
}

func wordGuessed(s State, env Env) State {
	if s.Status != StatusPlaying || s.CurrentWord == nil || s.CurrentCategory == "" {
		return s
	}
	team, ok := s.CurrentTeam()
	if !ok {
		return s
	}
	if _, dup := guessedSet(s.GuessedWords)[wordKey{s.CurrentCategory, s.CurrentWord.Word}]; dup {
		// Content changed under us; never log the same word twice.
		return advanceWord(s, env.Rules, true)
	}

	entry := GuessedWord{
		Word:       s.CurrentWord.Word,
		TeamID:     team.ID,
		CategoryID: s.CurrentCategory,
		UsedHint:   s.HintUsed,
		Timestamp:  env.now(),
	}
	delta := env.Rules.PointsPerWord
	if s.HintUsed {
		delta = -env.Rules.HintPenalty
	}
	s.Teams = withScore(s.Teams, s.CurrentTeamIndex, clamp(team.Score+delta))
	s.GuessedWords = appendLog(s.GuessedWords, entry)
	return advanceWord(s, env.Rules, true)
}

func wordSkipped(s State, env Env) State {
	if s.Status != StatusPlaying || s.CurrentWord == nil {
		return s
	}
	if s.HintUsed {
		if team, ok := s.CurrentTeam(); ok {
			s.Teams = withScore(s.Teams, s.CurrentTeamIndex, clamp(team.Score-env.Rules.HintPenalty))
		}
	}
	skipped := make([]Word, 0, len(s.SkippedWords)+1)
	skipped = append(skipped, s.SkippedWords...)
	s.SkippedWords = append(skipped, *s.CurrentWord)
	return advanceWord(s, env.Rules, true)
}

func tick(s State) State {
	// Late ticks from a cancelled scheduler land here and are absorbed.
	if s.Status != StatusPlaying || !s.IsTimerRunning || s.TimerSeconds <= 0 {
		return s
	}
	if s.TimerSeconds <= 1 {
		s.TimerSeconds = 0
		s.IsTimerRunning = false
		s.Status = StatusRoundEnd
		return s
	}
	s.TimerSeconds--
	return s
}

// ------------------------------ turn end -----------------------------------

func finishTeamTurn(s State, env Env) State {
	if s.Status != StatusRoundEnd || len(s.Teams) == 0 {
		return s
	}
	team, ok := s.CurrentTeam()
	if !ok {
		return s
	}

	if s.CurrentCategory != "" {
		s.CategoryResults = mergeCategoryResult(s.CategoryResults, s, team, catalogOrEmpty(env.Catalog), env.Rules)
		if !slices.Contains(s.CurrentRoundTeamsPlayed, team.ID) {
			played := make([]string, 0, len(s.CurrentRoundTeamsPlayed)+1)
			played = append(played, s.CurrentRoundTeamsPlayed...)
			s.CurrentRoundTeamsPlayed = append(played, team.ID)
		}
	}

	everyonePlayed := s.CurrentCategory != "" && allPlayed(s.Teams, s.CurrentRoundTeamsPlayed)
	if everyonePlayed && !slices.Contains(s.PlayedCategories, s.CurrentCategory) {
		done := make([]string, 0, len(s.PlayedCategories)+1)
		done = append(done, s.PlayedCategories...)
		s.PlayedCategories = append(done, s.CurrentCategory)
	}

	s.CurrentWord = nil
	s.WordsQueue = []Word{}
	s.SkippedWords = []Word{}
	s.HintUsed, s.ShowHint = false, false
	s.IsTimerRunning = false
	s.TurnStart = len(s.GuessedWords)

	if tournamentExhausted(s, catalogOrEmpty(env.Catalog), guessedSet(s.GuessedWords)) {
		s.Status = StatusTournamentEnd
		s.CurrentCategory = ""
		return s
	}

	s.CurrentTeamIndex = (s.CurrentTeamIndex + 1) % len(s.Teams)
	s.Status = StatusCategorySelect
	s.TimerSeconds = env.Rules.TimerDuration
	if everyonePlayed {
		s.CurrentCategory = ""
	}
	return s
}

func allPlayed(teams []Team, played []string) bool {
	for _, t := range teams {
		if !slices.Contains(played, t.ID) {
			return false
		}
	}
	return true
}

// ------------------------------- helpers -----------------------------------

type emptyCatalog struct{}

func (emptyCatalog) FindCategory(string) (Category, bool) { return Category{}, false }

func catalogOrEmpty(c Catalog) Catalog {
	if c == nil {
		return emptyCatalog{}
	}
	return c
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

func teamIndex(teams []Team, id string) int {
	for i, t := range teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// cloneTeams copies teams deep enough that player lists can be edited.
func cloneTeams(teams []Team) []Team {
	out := make([]Team, len(teams))
	for i, t := range teams {
		t.Players = append([]Player{}, t.Players...)
		out[i] = t
	}
	return out
}

func withScore(teams []Team, i, score int) []Team {
	out := make([]Team, len(teams))
	copy(out, teams)
	out[i].Score = score
	return out
}

func zeroScores(teams []Team) []Team {
	out := cloneTeams(teams)
	for i := range out {
		out[i].Score = 0
	}
	return out
}

func appendLog(log []GuessedWord, g GuessedWord) []GuessedWord {
	out := make([]GuessedWord, 0, len(log)+1)
	out = append(out, log...)
	return append(out, g)
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
