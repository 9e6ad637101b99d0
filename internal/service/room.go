package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roomrelay/tictactoe-backend/internal/apperror"
	"github.com/roomrelay/tictactoe-backend/internal/entity"
	"github.com/roomrelay/tictactoe-backend/internal/pkg"
	"github.com/roomrelay/tictactoe-backend/internal/repository"
)

const codeGenerationAttempts = 5

var ErrCodeGenerationFailed = errors.New("could not generate a free room code")

type roomRepo interface {
	CreateOrUpdate(ctx context.Context, room *entity.Room) error
	GetByCode(ctx context.Context, code string) (*entity.Room, error)
	DeleteByCode(ctx context.Context, code string) error
}

type playerRepo interface {
	CreateOrUpdate(ctx context.Context, player *entity.Player) error
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	DeleteByID(ctx context.Context, id string) error
}

type archiveRepo interface {
	Record(ctx context.Context, match *repository.MatchRecord) error
}

// RoomService owns the room registry: it creates, looks up, mutates and
// garbage-collects rooms. All mutations run under one lock, so concurrent
// intents from different connections never interleave mid-update.
//
// CreateRoom and JoinRoom also return the room the player implicitly left
// behind, when a peer remains in it to be notified.
type RoomService interface {
	CreateRoom(ctx context.Context, playerID, requestedCode string) (room, abandoned *entity.Room, err error)
	JoinRoom(ctx context.Context, code, playerID string) (room, abandoned *entity.Room, err error)
	MakeTurn(ctx context.Context, playerID string, cell int) (*entity.Room, *entity.Player, error)
	LeaveRoom(ctx context.Context, playerID string) (*entity.Room, error)
}

type roomService struct {
	logger *slog.Logger

	mu sync.Mutex

	roomRepo    roomRepo
	playerRepo  playerRepo
	archiveRepo archiveRepo
}

func NewRoomService(logger *slog.Logger, roomRepo roomRepo, playerRepo playerRepo, archiveRepo archiveRepo) RoomService {
	return &roomService{
		logger:      logger,
		roomRepo:    roomRepo,
		playerRepo:  playerRepo,
		archiveRepo: archiveRepo,
	}
}

func (that *roomService) CreateRoom(ctx context.Context, playerID, requestedCode string) (*entity.Room, *entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, err := that.getOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get or create player: %w", err)
	}

	// Reserve before abandoning, so a rejected code leaves the current
	// game untouched.
	code, err := that.reserveCode(ctx, requestedCode)
	if err != nil {
		return nil, nil, err
	}

	var abandoned *entity.Room
	if player.RoomCode != "" {
		if abandoned, err = that.abandonRoom(ctx, player); err != nil {
			return nil, nil, fmt.Errorf("failed to leave previous room: %w", err)
		}
	}

	room := entity.NewRoom(code)
	if err = room.AddPlayer(player); err != nil {
		return nil, nil, fmt.Errorf("failed to seat creator: %w", err)
	}

	if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, nil, fmt.Errorf("failed to update player: %w", err)
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("failed to create room: %w", err)
	}

	return room, abandoned, nil
}

func (that *roomService) JoinRoom(ctx context.Context, code, playerID string) (*entity.Room, *entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.joinRoomLocked(ctx, code, playerID)
}

func (that *roomService) joinRoomLocked(ctx context.Context, code, playerID string) (*entity.Room, *entity.Room, error) {
	room, err := that.roomRepo.GetByCode(ctx, strings.ToUpper(code))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	if existing := room.PlayerByID(playerID); existing != nil {
		return room, nil, nil
	}

	// Refuse before abandoning, so a full room leaves the current game
	// untouched.
	if len(room.Players) >= entity.MaxPlayers {
		return nil, nil, fmt.Errorf("%w: room %s", apperror.ErrRoomFull, room.Code)
	}

	player, err := that.getOrCreatePlayer(ctx, playerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get or create player: %w", err)
	}

	var abandoned *entity.Room
	if player.RoomCode != "" && player.RoomCode != room.Code {
		if abandoned, err = that.abandonRoom(ctx, player); err != nil {
			return nil, nil, fmt.Errorf("failed to leave previous room: %w", err)
		}
	}

	if err = room.AddPlayer(player); err != nil {
		return nil, nil, fmt.Errorf("failed to seat player: %w", err)
	}

	if err = that.playerRepo.CreateOrUpdate(ctx, player); err != nil {
		return nil, nil, fmt.Errorf("failed to update player: %w", err)
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, abandoned, nil
}

func (that *roomService) MakeTurn(ctx context.Context, playerID string, cell int) (*entity.Room, *entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, err := that.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if player.RoomCode == "" {
		return nil, nil, apperror.ErrNotInRoom
	}

	room, err := that.roomRepo.GetByCode(ctx, player.RoomCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	mover := room.PlayerByID(playerID)
	if mover == nil {
		return nil, nil, apperror.ErrNotInRoom
	}

	if err = room.MakeTurn(mover.Mark, cell); err != nil {
		return room, mover, fmt.Errorf("failed to make turn: %w", err)
	}

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("failed to update room: %w", err)
	}

	if room.IsEnded() {
		that.cleanupRoom(ctx, room)
	}

	return room, mover, nil
}

func (that *roomService) LeaveRoom(ctx context.Context, playerID string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	player, err := that.playerRepo.GetByID(ctx, playerID)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		return nil, apperror.ErrNotInRoom
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if player.RoomCode == "" {
		return nil, apperror.ErrNotInRoom
	}

	code := player.RoomCode

	room, err := that.roomRepo.GetByCode(ctx, code)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		that.forgetPlayer(ctx, player)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	room.RemovePlayer(playerID)
	that.forgetPlayer(ctx, player)

	if room.IsEmpty() {
		if err = that.roomRepo.DeleteByCode(ctx, code); err != nil {
			return nil, fmt.Errorf("failed to delete room: %w", err)
		}

		return nil, nil
	}

	// A half-abandoned match cannot continue; the remaining player only
	// gets notified, then the seat stays ended until they leave too.
	room.Status = entity.StatusEnded
	room.Turn = ""

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, nil
}

// reserveCode resolves the room code to register under. An explicitly
// requested code that is already occupied is rejected, never overwritten.
func (that *roomService) reserveCode(ctx context.Context, requestedCode string) (string, error) {
	if requestedCode != "" {
		code := strings.ToUpper(requestedCode)

		_, err := that.roomRepo.GetByCode(ctx, code)
		if err == nil {
			return "", fmt.Errorf("%w: %s", apperror.ErrRoomCodeTaken, code)
		}

		if !errors.Is(err, apperror.ErrRoomNotFound) {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}

		return code, nil
	}

	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		code, err := pkg.GenerateRoomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate room code: %w", err)
		}

		_, err = that.roomRepo.GetByCode(ctx, code)
		if errors.Is(err, apperror.ErrRoomNotFound) {
			return code, nil
		}

		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
	}

	return "", ErrCodeGenerationFailed
}

func (that *roomService) getOrCreatePlayer(ctx context.Context, playerID string) (*entity.Player, error) {
	player, err := that.playerRepo.GetByID(ctx, playerID)
	if errors.Is(err, repository.ErrPlayerNotFound) {
		return &entity.Player{ID: playerID}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	return player, nil
}

// abandonRoom detaches the player from the room they are still registered
// in, deleting the room when they were its last member. Like LeaveRoom it
// ends a room the peer is still seated in and returns the snapshot so the
// peer can be told.
func (that *roomService) abandonRoom(ctx context.Context, player *entity.Player) (*entity.Room, error) {
	code := player.RoomCode

	room, err := that.roomRepo.GetByCode(ctx, code)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		player.Mark = ""
		player.RoomCode = ""
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get room by code: %w", err)
	}

	removed := room.RemovePlayer(player.ID)
	player.Mark = ""
	player.RoomCode = ""

	if removed == nil {
		return nil, nil
	}

	if room.IsEmpty() {
		if err = that.roomRepo.DeleteByCode(ctx, code); err != nil {
			return nil, fmt.Errorf("failed to delete room: %w", err)
		}

		return nil, nil
	}

	room.Status = entity.StatusEnded
	room.Turn = ""

	if err = that.roomRepo.CreateOrUpdate(ctx, room); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}

	return room, nil
}

// cleanupRoom archives a finished match and reclaims the registry entry.
// Failures here are logged, not surfaced: the broadcasted snapshot is
// already final.
func (that *roomService) cleanupRoom(ctx context.Context, room *entity.Room) {
	log := that.logger.With("method", "cleanupRoom", "roomCode", room.Code)

	match := &repository.MatchRecord{
		RoomCode:   room.Code,
		Winner:     room.Winner,
		Moves:      room.MovesMade(),
		FinishedAt: time.Now().UTC(),
	}

	if err := that.archiveRepo.Record(ctx, match); err != nil {
		log.Error("failed to archive match", "error", err)
	}

	if err := that.roomRepo.DeleteByCode(ctx, room.Code); err != nil {
		log.Error("failed to delete room", "error", err)
	}

	for _, player := range room.Players {
		that.forgetPlayer(ctx, &entity.Player{ID: player.ID})
	}

	log.Info("room reclaimed", "winner", room.Winner)
}

func (that *roomService) forgetPlayer(ctx context.Context, player *entity.Player) {
	log := that.logger.With("method", "forgetPlayer", "playerID", player.ID)

	if err := that.playerRepo.DeleteByID(ctx, player.ID); err != nil {
		log.Error("failed to delete player", "error", err)
	}
}
