package entity

import "errors"

var (
	ErrInvalidCell       = errors.New("invalid cell index")
	ErrUnknownRoomStatus = errors.New("unknown room status")
)

// Result is the outcome of a board evaluation. Winner is "X", "O",
// PlayerTie for a draw, or empty while the game is still open; Line holds
// the winning triple when there is one.
type Result struct {
	Winner string `json:"winner"`
	Line   []int  `json:"line,omitempty"`
}

// Evaluate is a pure function over the board, shared by the gateway and
// any client that wants to double-check the authoritative outcome.
func Evaluate(board [9]string) Result {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return Result{Winner: a, Line: []int{combo[0], combo[1], combo[2]}}
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return Result{}
		}
	}

	return Result{Winner: PlayerTie}
}
