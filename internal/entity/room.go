package entity

import (
	"fmt"

	"github.com/roomrelay/tictactoe-backend/internal/apperror"
)

const (
	StatusWaiting = "waiting"
	StatusOngoing = "ongoing"
	StatusEnded   = "ended"

	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	MaxPlayers = 2
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Room is an isolated two-player match session identified by a short code.
type Room struct {
	Code    string    `json:"code"`
	Board   [9]string `json:"board"`
	Turn    string    `json:"turn"`
	Status  string    `json:"status"`
	Winner  string    `json:"winner,omitempty"`
	Line    []int     `json:"line,omitempty"`
	Players []*Player `json:"players,omitempty"`
}

func NewRoom(code string) *Room {
	return &Room{
		Code:   code,
		Board:  [9]string{},
		Turn:   PlayerX,
		Status: StatusWaiting,
	}
}

// AddPlayer appends a player and assigns their mark: the first player is
// always X, the second is O. The room becomes ongoing once both seats are
// taken.
func (that *Room) AddPlayer(player *Player) error {
	if len(that.Players) >= MaxPlayers {
		return fmt.Errorf("%w: room %s", apperror.ErrRoomFull, that.Code)
	}

	if len(that.Players) == 0 {
		player.Mark = PlayerX
	} else {
		player.Mark = PlayerO
	}

	player.RoomCode = that.Code
	that.Players = append(that.Players, player)

	if len(that.Players) == MaxPlayers {
		that.Status = StatusOngoing
	}

	return nil
}

func (that *Room) RemovePlayer(playerID string) *Player {
	for i, player := range that.Players {
		if player.ID != playerID {
			continue
		}

		that.Players = append(that.Players[:i], that.Players[i+1:]...)

		player.Mark = ""
		player.RoomCode = ""

		return player
	}

	return nil
}

func (that *Room) PlayerByID(playerID string) *Player {
	for _, player := range that.Players {
		if player.ID == playerID {
			return player
		}
	}

	return nil
}

// MakeTurn places the mark on the given cell. The turn token is the sole
// ordering mechanism between the two connections: a move is accepted only
// when it is the mover's turn and the cell is free.
func (that *Room) MakeTurn(playerMark string, cell int) error {
	if err := that.ConfirmOngoingState(); err != nil {
		return err
	}

	if cell < 0 || cell >= len(that.Board) {
		return fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if that.Turn != playerMark {
		return apperror.ErrNotYourTurn
	}

	if that.Board[cell] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[cell] = playerMark

	if that.Turn == PlayerX {
		that.Turn = PlayerO
	} else {
		that.Turn = PlayerX
	}

	that.updateState()

	return nil
}

func (that *Room) updateState() {
	result := Evaluate(that.Board)
	if result.Winner == "" {
		return
	}

	that.Winner = result.Winner
	that.Line = result.Line
	that.Status = StatusEnded
	that.Turn = ""
}

// MovesMade counts the occupied cells.
func (that *Room) MovesMade() int {
	moves := 0
	for _, cell := range that.Board {
		if cell != EmptyCell {
			moves++
		}
	}

	return moves
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Room) IsEnded() bool {
	return that.Status == StatusEnded
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

func (that *Room) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsEnded():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRoomStatus, that.Status)
	}
}
