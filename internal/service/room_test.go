package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomrelay/tictactoe-backend/internal/apperror"
	"github.com/roomrelay/tictactoe-backend/internal/entity"
	"github.com/roomrelay/tictactoe-backend/internal/repository"
	"github.com/roomrelay/tictactoe-backend/testing/suite"
)

func newRoomService(t *testing.T) (context.Context, RoomService, testRepos) {
	t.Helper()

	ctx, st := suite.New(t)

	repos := testRepos{
		rooms:   repository.NewRoomRepository(st.Storage),
		players: repository.NewPlayerRepository(st.Storage),
		archive: repository.NewArchiveRepository(st.Archive.Connection),
	}

	return ctx, NewRoomService(st.Logger, repos.rooms, repos.players, repos.archive), repos
}

type testRepos struct {
	rooms   repository.RoomRepository
	players repository.PlayerRepository
	archive repository.ArchiveRepository
}

func TestRoomService_CreateRoom(t *testing.T) {
	t.Run("Creates a waiting room with the creator as X", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		// When: a room is created without a requested code
		room, abandoned, err := rooms.CreateRoom(ctx, "conn-a", "")

		// Then: the code matches the format and the creator holds X
		require.NoError(t, err)
		assert.Nil(t, abandoned)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, room.Code)
		assert.True(t, room.IsWaiting())
		assert.Equal(t, entity.PlayerX, room.Turn)
		require.Len(t, room.Players, 1)
		assert.Equal(t, entity.PlayerX, room.Players[0].Mark)
		assert.Equal(t, [9]string{}, room.Board)
	})

	t.Run("Honors an explicitly requested free code", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		// When: a room is created under a requested code
		room, _, err := rooms.CreateRoom(ctx, "conn-a", "my1234")

		// Then: the code is registered uppercased
		require.NoError(t, err)
		assert.Equal(t, "MY1234", room.Code)
	})

	t.Run("Rejects a requested code that is already occupied", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		_, _, err := rooms.CreateRoom(ctx, "conn-a", "TAKEN1")
		require.NoError(t, err)

		// When: another creator requests the same code
		_, _, err = rooms.CreateRoom(ctx, "conn-b", "TAKEN1")

		// Then: ErrRoomCodeTaken is returned
		require.ErrorIs(t, err, apperror.ErrRoomCodeTaken)
	})

	t.Run("Creating a new room ends the one left behind", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: the first player starts a fresh room mid-game
		fresh, abandoned, err := rooms.CreateRoom(ctx, "conn-a", "")

		// Then: the old room comes back ended with the peer still seated
		require.NoError(t, err)
		assert.NotEqual(t, created.Code, fresh.Code)
		require.NotNil(t, abandoned)
		assert.True(t, abandoned.IsEnded())
		assert.Empty(t, abandoned.Turn)
		require.Len(t, abandoned.Players, 1)
		assert.Equal(t, "conn-b", abandoned.Players[0].ID)

		// And: the registry copy is ended too
		stored, err := repos.rooms.GetByCode(ctx, created.Code)
		require.NoError(t, err)
		assert.True(t, stored.IsEnded())
		assert.Empty(t, stored.Turn)
	})

	t.Run("Creating again as a solo player reclaims the old code", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)

		// When: the sole player creates a second room
		_, abandoned, err := rooms.CreateRoom(ctx, "conn-a", "")

		// Then: nobody is left to notify and the old room is gone
		require.NoError(t, err)
		assert.Nil(t, abandoned)

		_, err = repos.rooms.GetByCode(ctx, created.Code)
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})
}

func TestRoomService_JoinRoom(t *testing.T) {
	t.Run("Second player joins as O and the game starts", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)

		// When: a second player joins by code
		room, abandoned, err := rooms.JoinRoom(ctx, created.Code, "conn-b")

		// Then: the room is ongoing with X to move and both seats taken
		require.NoError(t, err)
		assert.Nil(t, abandoned)
		assert.True(t, room.IsOngoing())
		assert.Equal(t, entity.PlayerX, room.Turn)
		require.Len(t, room.Players, 2)
		assert.Equal(t, entity.PlayerO, room.Players[1].Mark)
	})

	t.Run("Join with an unknown code fails with ErrRoomNotFound", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		// When: joining a code that was never registered
		_, _, err := rooms.JoinRoom(ctx, "ZZZZZZ", "conn-b")

		// Then: ErrRoomNotFound is returned
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Join on a full room fails and does not mutate the player list", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: a third player tries to join
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-c")

		// Then: ErrRoomFull is returned and the stored room still has 2 players
		require.ErrorIs(t, err, apperror.ErrRoomFull)

		stored, err := repos.rooms.GetByCode(ctx, created.Code)
		require.NoError(t, err)
		assert.Len(t, stored.Players, 2)
	})

	t.Run("Rejoining the same room is idempotent", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: the joiner sends join_room again
		room, abandoned, err := rooms.JoinRoom(ctx, created.Code, "conn-b")

		// Then: the membership is unchanged
		require.NoError(t, err)
		assert.Nil(t, abandoned)
		assert.Len(t, room.Players, 2)
	})

	t.Run("Joining another room ends the one left behind", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		first, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, first.Code, "conn-b")
		require.NoError(t, err)

		second, _, err := rooms.CreateRoom(ctx, "conn-c", "")
		require.NoError(t, err)

		// When: A switches to C's room mid-game
		room, abandoned, err := rooms.JoinRoom(ctx, second.Code, "conn-a")

		// Then: the new room starts and the old one comes back ended
		require.NoError(t, err)
		assert.True(t, room.IsOngoing())
		require.NotNil(t, abandoned)
		assert.True(t, abandoned.IsEnded())
		assert.Empty(t, abandoned.Turn)
		require.Len(t, abandoned.Players, 1)
		assert.Equal(t, "conn-b", abandoned.Players[0].ID)

		// And: the registry copy is ended too
		stored, err := repos.rooms.GetByCode(ctx, first.Code)
		require.NoError(t, err)
		assert.True(t, stored.IsEnded())
	})
}

func TestRoomService_MakeTurn(t *testing.T) {
	t.Run("Accepted move returns the mover and the updated board", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: X plays the center
		room, mover, err := rooms.MakeTurn(ctx, "conn-a", 4)

		// Then: the board holds X at 4 and the turn flips to O
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerX, mover.Mark)
		assert.Equal(t, entity.PlayerX, room.Board[4])
		assert.Equal(t, entity.PlayerO, room.Turn)
	})

	t.Run("Out-of-turn move leaves the stored room unchanged", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: O moves while it is X's turn
		_, _, err = rooms.MakeTurn(ctx, "conn-b", 0)

		// Then: the move is rejected and the registry copy is untouched
		require.ErrorIs(t, err, apperror.ErrNotYourTurn)

		stored, err := repos.rooms.GetByCode(ctx, created.Code)
		require.NoError(t, err)
		assert.Equal(t, [9]string{}, stored.Board)
		assert.Equal(t, entity.PlayerX, stored.Turn)
	})

	t.Run("Winning move ends the room, archives it and reclaims the code", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		for _, move := range []struct {
			conn string
			cell int
		}{
			{"conn-a", 0}, {"conn-b", 3}, {"conn-a", 1}, {"conn-b", 4},
		} {
			_, _, err = rooms.MakeTurn(ctx, move.conn, move.cell)
			require.NoError(t, err)
		}

		// When: X completes the top row
		room, _, err := rooms.MakeTurn(ctx, "conn-a", 2)

		// Then: the snapshot reports the winner and the registry entry is gone
		require.NoError(t, err)
		assert.True(t, room.IsEnded())
		assert.Equal(t, entity.PlayerX, room.Winner)
		assert.Equal(t, []int{0, 1, 2}, room.Line)

		_, err = repos.rooms.GetByCode(ctx, created.Code)
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		matches, err := repos.archive.ListRecent(ctx, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, created.Code, matches[0].RoomCode)
		assert.Equal(t, entity.PlayerX, matches[0].Winner)
		assert.Equal(t, 5, matches[0].Moves)
	})

	t.Run("Move from a connection without a room fails with ErrNotInRoom", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		_, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)

		// When: a stranger submits a move
		_, _, err = rooms.MakeTurn(ctx, "conn-z", 0)

		// Then: the intent is rejected
		require.Error(t, err)
	})
}

func TestRoomService_LeaveRoom(t *testing.T) {
	t.Run("Leaving as the last player deletes the room", func(t *testing.T) {
		ctx, rooms, repos := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)

		// When: the sole player leaves
		remaining, err := rooms.LeaveRoom(ctx, "conn-a")

		// Then: no peer remains and the code is free again
		require.NoError(t, err)
		assert.Nil(t, remaining)

		_, err = repos.rooms.GetByCode(ctx, created.Code)
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)
	})

	t.Run("Leaving mid-game ends the room for the remaining peer", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		created, _, err := rooms.CreateRoom(ctx, "conn-a", "")
		require.NoError(t, err)
		_, _, err = rooms.JoinRoom(ctx, created.Code, "conn-b")
		require.NoError(t, err)

		// When: X leaves
		remaining, err := rooms.LeaveRoom(ctx, "conn-a")

		// Then: the snapshot with the remaining peer comes back ended
		require.NoError(t, err)
		require.NotNil(t, remaining)
		assert.True(t, remaining.IsEnded())
		require.Len(t, remaining.Players, 1)
		assert.Equal(t, "conn-b", remaining.Players[0].ID)
	})

	t.Run("Leaving without a room fails with ErrNotInRoom", func(t *testing.T) {
		ctx, rooms, _ := newRoomService(t)

		// When: a connection that never joined leaves
		_, err := rooms.LeaveRoom(ctx, "conn-z")

		// Then: ErrNotInRoom is returned
		require.ErrorIs(t, err, apperror.ErrNotInRoom)
	})
}
