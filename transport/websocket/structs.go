package websocket

import "encoding/json"

const (
	ActionCreateRoom        = "create_room"
	ActionRoomCreated       = "room_created"
	ActionJoinRoom          = "join_room"
	ActionGameStart         = "game_start"
	ActionMakeMove          = "make_move"
	ActionMoveMade          = "move_made"
	ActionFindRandomMatch   = "find_random_match"
	ActionWaitingForMatch   = "waiting_for_match"
	ActionMatchFound        = "match_found"
	ActionCancelRandomMatch = "cancel_random_match"
	ActionLeaveRoom         = "leave_room"
	ActionPlayerLeft        = "player_left"
	ActionGameOver          = "game_over"
	ActionError             = "error"
)

// Message is the envelope every intent and broadcast travels in.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PlayerInfo struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}

type CreateRoomPayload struct {
	RoomCode string `json:"roomCode,omitempty"`
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
}

type JoinRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type GameStartPayload struct {
	RoomCode    string       `json:"roomCode"`
	Players     []PlayerInfo `json:"players"`
	CurrentTurn string       `json:"currentTurn"`
}

// MakeMovePayload carries the intent to occupy a cell. Symbol and board
// are advisory client echoes; the server re-derives both.
type MakeMovePayload struct {
	Position int      `json:"position"`
	Symbol   string   `json:"symbol,omitempty"`
	Board    []string `json:"board,omitempty"`
}

type MoveMadePayload struct {
	Position    int       `json:"position"`
	Symbol      string    `json:"symbol"`
	Board       [9]string `json:"board"`
	CurrentTurn string    `json:"currentTurn"`
}

type GameOverPayload struct {
	Winner string `json:"winner"`
	Line   []int  `json:"line,omitempty"`
}
