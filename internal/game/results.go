// internal/game/results.go
//
// Derived views over the guessed-word log. Nothing here is stored separately:
// exhaustion, per-turn contribution, category results and standings are all
// recomputed from State.GuessedWords so they cannot drift from it.

package game

import "sort"

type wordKey struct {
	category string
	word     string
}

// guessedSet indexes the log by (category, word).
func guessedSet(log []GuessedWord) map[wordKey]struct{} {
	m := make(map[wordKey]struct{}, len(log))
	for _, g := range log {
		m[wordKey{g.CategoryID, g.Word}] = struct{}{}
	}
	return m
}

// availableWords lists the words of c nobody has guessed yet, in content order.
func availableWords(c Category, guessed map[wordKey]struct{}) []Word {
	out := make([]Word, 0, len(c.Words))
	for _, w := range c.Words {
		if _, done := guessed[wordKey{c.ID, w.Word}]; !done {
			out = append(out, w)
		}
	}
	return out
}

// Remaining counts the unguessed words of a category against its total.
// An unknown category reports 0/0.
func Remaining(s State, cat Catalog, categoryID string) (remaining, total int) {
	c, ok := cat.FindCategory(categoryID)
	if !ok {
		return 0, 0
	}
	return len(availableWords(c, guessedSet(s.GuessedWords))), len(c.Words)
}

// TotalRemaining sums Remaining over the tournament categories.
func TotalRemaining(s State, cat Catalog) int {
	guessed := guessedSet(s.GuessedWords)
	n := 0
	for _, id := range s.TournamentCategories {
		if c, ok := cat.FindCategory(id); ok {
			n += len(availableWords(c, guessed))
		}
	}
	return n
}

// tournamentExhausted reports whether every tournament category is out of
// words. Categories that no longer resolve count as exhausted.
func tournamentExhausted(s State, cat Catalog, guessed map[wordKey]struct{}) bool {
	for _, id := range s.TournamentCategories {
		c, ok := cat.FindCategory(id)
		if !ok {
			continue
		}
		if len(availableWords(c, guessed)) > 0 {
			return false
		}
	}
	return true
}

// TurnWords returns the words the acting team guessed in the category in play
// since the current turn began.
func TurnWords(s State) []GuessedWord {
	team, ok := s.CurrentTeam()
	if !ok || s.TurnStart < 0 || s.TurnStart > len(s.GuessedWords) {
		return nil
	}
	var out []GuessedWord
	for _, g := range s.GuessedWords[s.TurnStart:] {
		if g.TeamID == team.ID && g.CategoryID == s.CurrentCategory {
			out = append(out, g)
		}
	}
	return out
}

// TurnSummary is what the round-end screen shows for the turn just played.
type TurnSummary struct {
	TeamID        string        `json:"teamId"`
	CategoryID    string        `json:"categoryId"`
	Guessed       []GuessedWord `json:"guessed"`
	Skipped       []Word        `json:"skipped"`
	WordsWithHint int           `json:"wordsWithHint"`
	Score         int           `json:"score"`
}

// SummarizeTurn aggregates the current turn. Score is the signed contribution
// before the zero floor is applied to the team total.
func SummarizeTurn(s State, r Rules) TurnSummary {
	sum := TurnSummary{CategoryID: s.CurrentCategory, Skipped: s.SkippedWords}
	if team, ok := s.CurrentTeam(); ok {
		sum.TeamID = team.ID
	}
	sum.Guessed = TurnWords(s)
	sum.WordsWithHint, sum.Score = tally(sum.Guessed, r)
	return sum
}

func tally(words []GuessedWord, r Rules) (withHint, score int) {
	for _, g := range words {
		if g.UsedHint {
			withHint++
			score -= r.HintPenalty
		} else {
			score += r.PointsPerWord
		}
	}
	return withHint, score
}

// teamCategoryResult recomputes a team's sub-record for one category from the whole log.
func teamCategoryResult(log []GuessedWord, team Team, categoryID string, r Rules) TeamResult {
	var words []GuessedWord
	for _, g := range log {
		if g.TeamID == team.ID && g.CategoryID == categoryID {
			words = append(words, g)
		}
	}
	withHint, score := tally(words, r)
	return TeamResult{
		TeamID:        team.ID,
		TeamName:      team.Name,
		WordsGuessed:  len(words),
		WordsWithHint: withHint,
		Score:         score,
	}
}

// mergeCategoryResult returns a copy of results with team's record for the
// category in play created or replaced. A category with no contribution yet
// does not get an empty record.
func mergeCategoryResult(results []CategoryRoundResult, s State, team Team, cat Catalog, r Rules) []CategoryRoundResult {
	tr := teamCategoryResult(s.GuessedWords, team, s.CurrentCategory, r)

	out := make([]CategoryRoundResult, len(results))
	copy(out, results)

	for i, res := range out {
		if res.CategoryID != s.CurrentCategory {
			continue
		}
		teams := make([]TeamResult, 0, len(res.TeamResults)+1)
		replaced := false
		for _, existing := range res.TeamResults {
			if existing.TeamID == team.ID {
				teams = append(teams, tr)
				replaced = true
				continue
			}
			teams = append(teams, existing)
		}
		if !replaced {
			teams = append(teams, tr)
		}
		res.TeamResults = teams
		out[i] = res
		return out
	}

	if tr.WordsGuessed == 0 {
		return out
	}
	res := CategoryRoundResult{CategoryID: s.CurrentCategory, TeamResults: []TeamResult{tr}}
	if c, ok := cat.FindCategory(s.CurrentCategory); ok {
		res.CategoryName, res.CategoryIcon = c.Name, c.Icon
	}
	return append(out, res)
}

// Standings ranks teams by score, highest first. Ties keep configuration order.
type Standings struct {
	Teams  []Team `json:"teams"`
	Winner *Team  `json:"winner,omitempty"`
	Tie    bool   `json:"tie"`
}

// Rank computes the current standings. With no teams there is no winner.
func Rank(s State) Standings {
	teams := make([]Team, len(s.Teams))
	copy(teams, s.Teams)
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Score > teams[j].Score })

	st := Standings{Teams: teams}
	if len(teams) == 0 {
		return st
	}
	if len(teams) > 1 && teams[0].Score == teams[1].Score {
		st.Tie = true
		return st
	}
	w := teams[0]
	st.Winner = &w
	return st
}
