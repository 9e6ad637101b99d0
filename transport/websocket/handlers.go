package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roomrelay/tictactoe-backend/internal/apperror"
	"github.com/roomrelay/tictactoe-backend/internal/entity"
)

const winnerDraw = "draw"

func (that *Server) handleCreateRoom(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleCreateRoom", "connectionID", c.id)

	var payload CreateRoomPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return that.sendErrorResponse(c, "invalid create_room payload")
		}
	}

	room, abandoned, err := that.rooms.CreateRoom(ctx, c.id, payload.RoomCode)
	if errors.Is(err, apperror.ErrRoomCodeTaken) {
		return that.sendErrorResponse(c, "room code is already taken")
	}

	if err != nil {
		log.Error("failed to create room", "error", err)
		return that.sendErrorResponse(c, "failed to create a new room")
	}

	that.notifyPlayerLeft(abandoned)

	log.Info("room created", "roomCode", room.Code)

	if err = c.send(ActionRoomCreated, RoomCreatedPayload{RoomCode: room.Code}); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	return nil
}

func (that *Server) handleJoinRoom(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleJoinRoom", "connectionID", c.id)

	var payload JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.RoomCode == "" {
		return that.sendErrorResponse(c, "room code is required")
	}

	room, abandoned, err := that.rooms.JoinRoom(ctx, payload.RoomCode, c.id)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return that.sendErrorResponse(c, "room not found")
	}

	if errors.Is(err, apperror.ErrRoomFull) {
		return that.sendErrorResponse(c, "room is full")
	}

	if err != nil {
		log.Error("failed to join room", "error", err)
		return that.sendErrorResponse(c, "failed to join the room")
	}

	that.notifyPlayerLeft(abandoned)

	log.Info("player joined room", "roomCode", room.Code)

	that.broadcastToRoom(room, ActionGameStart, gameStartPayload(room))

	return nil
}

func (that *Server) handleMakeMove(ctx context.Context, c *client, msg *Message) error {
	log := that.logger.With("method", "handleMakeMove", "connectionID", c.id)

	var payload MakeMovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return that.sendErrorResponse(c, "invalid make_move payload")
	}

	room, mover, err := that.rooms.MakeTurn(ctx, c.id, payload.Position)

	// Protocol rejections answer the sender only; the peer never hears
	// about them and no state mutates.
	switch {
	case errors.Is(err, apperror.ErrNotYourTurn):
		return that.sendErrorResponse(c, "it's not your turn")
	case errors.Is(err, apperror.ErrCellOccupied):
		return that.sendErrorResponse(c, "cell is already occupied")
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		return that.sendErrorResponse(c, "game is not started")
	case errors.Is(err, apperror.ErrGameFinished):
		return that.sendErrorResponse(c, "game is already finished")
	case errors.Is(err, entity.ErrInvalidCell):
		return that.sendErrorResponse(c, "invalid cell")
	case errors.Is(err, apperror.ErrNotInRoom):
		return that.sendErrorResponse(c, "you are not in a room")
	case err != nil:
		log.Error("failed to make turn", "error", err)
		return that.sendErrorResponse(c, "failed to make a move")
	}

	log.Info("player made a move", "roomCode", room.Code, "cell", payload.Position)

	that.broadcastToRoom(room, ActionMoveMade, MoveMadePayload{
		Position:    payload.Position,
		Symbol:      mover.Mark,
		Board:       room.Board,
		CurrentTurn: room.Turn,
	})

	if room.IsEnded() {
		that.broadcastToRoom(room, ActionGameOver, GameOverPayload{
			Winner: wireWinner(room.Winner),
			Line:   room.Line,
		})
	}

	return nil
}

func (that *Server) handleFindRandomMatch(ctx context.Context, c *client, _ *Message) error {
	log := that.logger.With("method", "handleFindRandomMatch", "connectionID", c.id)

	result, err := that.matchmaking.Enqueue(ctx, c.id)
	if err != nil {
		log.Error("failed to enqueue seeker", "error", err)
		return that.sendErrorResponse(c, "failed to find a match")
	}

	that.notifyPlayerLeft(result.Abandoned)

	if !result.Paired {
		if err = c.send(ActionWaitingForMatch, nil); err != nil {
			return fmt.Errorf("failed to send response: %w", err)
		}

		return nil
	}

	log.Info("match found", "roomCode", result.Room.Code)

	that.broadcastToRoom(result.Room, ActionMatchFound, GameStartPayload{
		RoomCode:    result.Room.Code,
		Players:     playerInfos(result.Room),
		CurrentTurn: result.Room.Turn,
	})

	return nil
}

func (that *Server) handleCancelRandomMatch(ctx context.Context, c *client, _ *Message) error {
	if err := that.matchmaking.Cancel(ctx, c.id); err != nil {
		return fmt.Errorf("failed to cancel match search: %w", err)
	}

	return nil
}

func (that *Server) handleLeaveRoom(ctx context.Context, c *client, _ *Message) error {
	log := that.logger.With("method", "handleLeaveRoom", "connectionID", c.id)

	remaining, err := that.rooms.LeaveRoom(ctx, c.id)
	if errors.Is(err, apperror.ErrNotInRoom) {
		return that.sendErrorResponse(c, "you are not in a room")
	}

	if err != nil {
		log.Error("failed to leave room", "error", err)
		return that.sendErrorResponse(c, "failed to leave the room")
	}

	log.Info("player left room")

	that.notifyPlayerLeft(remaining)

	return nil
}

// handleDisconnect reclaims everything the connection held: its queue
// slot, its room seat, and its registry entry. The remaining peer, if
// any, is notified.
func (that *Server) handleDisconnect(ctx context.Context, c *client) {
	log := that.logger.With("method", "handleDisconnect", "connectionID", c.id)

	that.clientsMutex.Lock()
	delete(that.clients, c.id)
	that.clientsMutex.Unlock()

	if err := that.matchmaking.Cancel(ctx, c.id); err != nil {
		log.Error("failed to remove seeker from queue", "error", err)
	}

	remaining, err := that.rooms.LeaveRoom(ctx, c.id)
	if err != nil && !errors.Is(err, apperror.ErrNotInRoom) {
		log.Error("failed to reclaim room", "error", err)
		return
	}

	that.notifyPlayerLeft(remaining)

	log.Info("connection cleaned up")
}

func (that *Server) notifyPlayerLeft(remaining *entity.Room) {
	if remaining == nil {
		return
	}

	that.broadcastToRoom(remaining, ActionPlayerLeft, nil)
}

func (that *Server) sendErrorResponse(c *client, errorMsg string) error {
	if err := c.send(ActionError, errorMsg); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func gameStartPayload(room *entity.Room) GameStartPayload {
	return GameStartPayload{
		RoomCode:    room.Code,
		Players:     playerInfos(room),
		CurrentTurn: room.Turn,
	}
}

func playerInfos(room *entity.Room) []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(room.Players))
	for _, player := range room.Players {
		infos = append(infos, PlayerInfo{ID: player.ID, Symbol: player.Mark})
	}

	return infos
}

// wireWinner maps the internal tie marker to the wire vocabulary.
func wireWinner(winner string) string {
	if winner == entity.PlayerTie {
		return winnerDraw
	}

	return winner
}
