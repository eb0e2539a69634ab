// internal/game/actions.go
//
// Action is the complete input surface of the state machine. On the wire an
// action is {"type": "...", "payload": ...} with the payload shape depending on
// the type; in Go the payload fields are flattened onto the struct and only the
// ones relevant to Type are read.

package game

import (
	"encoding/json"
	"fmt"
)

// ActionType names a transition.
type ActionType string

const (
	ActionSetRoomCode             ActionType = "SET_ROOM_CODE"
	ActionSetStatus               ActionType = "SET_STATUS"
	ActionAddPlayer               ActionType = "ADD_PLAYER"
	ActionRemovePlayer            ActionType = "REMOVE_PLAYER"
	ActionSetTeams                ActionType = "SET_TEAMS"
	ActionSetTournamentCategories ActionType = "SET_TOURNAMENT_CATEGORIES"
	ActionSelectCategory          ActionType = "SELECT_CATEGORY"
	ActionStartRound              ActionType = "START_ROUND"
	ActionNextWord                ActionType = "NEXT_WORD"
	ActionWordGuessed             ActionType = "WORD_GUESSED"
	ActionWordSkipped             ActionType = "WORD_SKIPPED"
	ActionUseHint                 ActionType = "USE_HINT"
	ActionTickTimer               ActionType = "TICK_TIMER"
	ActionPauseTimer              ActionType = "PAUSE_TIMER"
	ActionResumeTimer             ActionType = "RESUME_TIMER"
	ActionEndRound                ActionType = "END_ROUND"
	ActionFinishTeamTurn          ActionType = "FINISH_TEAM_TURN"
	ActionNextCategory            ActionType = "NEXT_CATEGORY"
	ActionUpdateScore             ActionType = "UPDATE_SCORE"
	ActionResetGame               ActionType = "RESET_GAME"
	ActionResetTournament         ActionType = "RESET_TOURNAMENT"
	ActionLoadState               ActionType = "LOAD_STATE"
)

// Action is a single request to the reducer.
type Action struct {
	Type ActionType

	Code        string   // SET_ROOM_CODE
	Status      Status   // SET_STATUS
	TeamID      string   // ADD_PLAYER, REMOVE_PLAYER, UPDATE_SCORE
	Player      Player   // ADD_PLAYER
	PlayerID    string   // REMOVE_PLAYER
	Teams       []Team   // SET_TEAMS
	CategoryIDs []string // SET_TOURNAMENT_CATEGORIES
	CategoryID  string   // SELECT_CATEGORY
	Score       int      // UPDATE_SCORE
	State       *State   // LOAD_STATE
}

// --- constructors ---

func SetRoomCode(code string) Action { return Action{Type: ActionSetRoomCode, Code: code} }
func SetStatus(s Status) Action { return Action{Type: ActionSetStatus, Status: s} }
func SetTeams(teams []Team) Action { return Action{Type: ActionSetTeams, Teams: teams} }
func SelectCategory(id string) Action { return Action{Type: ActionSelectCategory, CategoryID: id} }
func LoadState(s State) Action { return Action{Type: ActionLoadState, State: &s} }
func Simple(t ActionType) Action { return Action{Type: t} }
func SetTournamentCategories(ids []string) Action {
	return Action{Type: ActionSetTournamentCategories, CategoryIDs: ids}
}
func AddPlayer(teamID string, p Player) Action {
	return Action{Type: ActionAddPlayer, TeamID: teamID, Player: p}
}
func RemovePlayer(teamID, playerID string) Action {
	return Action{Type: ActionRemovePlayer, TeamID: teamID, PlayerID: playerID}
}
func UpdateScore(teamID string, score int) Action {
	return Action{Type: ActionUpdateScore, TeamID: teamID, Score: score}
}

// --- wire format ---

type wireAction struct {
	Type    ActionType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type playerPayload struct {
	TeamID   string  `json:"teamId"`
	Player   *Player `json:"player,omitempty"`
	PlayerID string  `json:"playerId,omitempty"`
}

type scorePayload struct {
	TeamID string `json:"teamId"`
	Score  int    `json:"score"`
}

// MarshalJSON encodes the action as {"type", "payload"}.
func (a Action) MarshalJSON() ([]byte, error) {
	var payload any
	switch a.Type {
	case ActionSetRoomCode:
		payload = a.Code
	case ActionSetStatus:
		payload = a.Status
	case ActionAddPlayer:
		p := a.Player
		payload = playerPayload{TeamID: a.TeamID, Player: &p}
	case ActionRemovePlayer:
		payload = playerPayload{TeamID: a.TeamID, PlayerID: a.PlayerID}
	case ActionSetTeams:
		payload = a.Teams
	case ActionSetTournamentCategories:
		payload = a.CategoryIDs
	case ActionSelectCategory:
		payload = a.CategoryID
	case ActionUpdateScore:
		payload = scorePayload{TeamID: a.TeamID, Score: a.Score}
	case ActionLoadState:
		payload = a.State
	}
	w := wireAction{Type: a.Type}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes {"type", "payload"}. Unknown types are rejected so a
// transport can report them; the reducer itself would ignore them anyway.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Action{Type: w.Type}
	decode := func(v any) error {
		if len(w.Payload) == 0 {
			return fmt.Errorf("action %s: missing payload", w.Type)
		}
		if err := json.Unmarshal(w.Payload, v); err != nil {
			return fmt.Errorf("action %s: %w", w.Type, err)
		}
		return nil
	}

	var err error
	switch w.Type {
	case ActionSetRoomCode:
		err = decode(&out.Code)
	case ActionSetStatus:
		err = decode(&out.Status)
	case ActionAddPlayer:
		var p playerPayload
		if err = decode(&p); err == nil {
			out.TeamID = p.TeamID
			if p.Player != nil {
				out.Player = *p.Player
			}
		}
	case ActionRemovePlayer:
		var p playerPayload
		if err = decode(&p); err == nil {
			out.TeamID, out.PlayerID = p.TeamID, p.PlayerID
		}
	case ActionSetTeams:
		err = decode(&out.Teams)
	case ActionSetTournamentCategories:
		err = decode(&out.CategoryIDs)
	case ActionSelectCategory:
		err = decode(&out.CategoryID)
	case ActionUpdateScore:
		var p scorePayload
		if err = decode(&p); err == nil {
			out.TeamID, out.Score = p.TeamID, p.Score
		}
	case ActionLoadState:
		var s State
		if err = decode(&s); err == nil && !s.Status.Valid() {
			err = fmt.Errorf("action %s: %w %q", w.Type, ErrUnknownStatus, s.Status)
		}
		if err == nil {
			out.State = &s
		}
	case ActionStartRound, ActionNextWord, ActionWordGuessed, ActionWordSkipped,
		ActionUseHint, ActionTickTimer, ActionPauseTimer, ActionResumeTimer,
		ActionEndRound, ActionFinishTeamTurn, ActionNextCategory,
		ActionResetGame, ActionResetTournament:
	default:
		err = fmt.Errorf("unknown action type %q", w.Type)
	}
	if err != nil {
		return err
	}
	*a = out
	return nil
}
