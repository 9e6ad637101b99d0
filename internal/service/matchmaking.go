package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roomrelay/tictactoe-backend/internal/apperror"
	"github.com/roomrelay/tictactoe-backend/internal/entity"
	"github.com/roomrelay/tictactoe-backend/internal/repository"
)

type queueRepo interface {
	Push(ctx context.Context, connectionID string) error
	PushFront(ctx context.Context, connectionID string) error
	PopEarliest(ctx context.Context) (string, error)
	Remove(ctx context.Context, connectionID string) error
	Contains(ctx context.Context, connectionID string) (bool, error)
}

// PairResult is the outcome of an enqueue: either a fresh ongoing room
// with both seekers seated, or a waiting acknowledgment. Abandoned is the
// room the seeker walked out on, when a peer remains in it to be notified.
type PairResult struct {
	Room      *entity.Room
	Paired    bool
	Abandoned *entity.Room
}

// MatchmakingService pairs anonymous seekers strictly in arrival order.
type MatchmakingService interface {
	Enqueue(ctx context.Context, connectionID string) (*PairResult, error)
	Cancel(ctx context.Context, connectionID string) error
}

type matchmakingService struct {
	logger *slog.Logger

	mu sync.Mutex

	queueRepo   queueRepo
	roomService RoomService
}

func NewMatchmakingService(logger *slog.Logger, queueRepo queueRepo, roomService RoomService) MatchmakingService {
	return &matchmakingService{
		logger:      logger,
		queueRepo:   queueRepo,
		roomService: roomService,
	}
}

func (that *matchmakingService) Enqueue(ctx context.Context, connectionID string) (*PairResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	log := that.logger.With("method", "Enqueue", "connectionID", connectionID)

	// Seeking a new opponent means walking out on the current one.
	abandoned, err := that.roomService.LeaveRoom(ctx, connectionID)
	if err != nil && !errors.Is(err, apperror.ErrNotInRoom) {
		return nil, fmt.Errorf("failed to leave current room: %w", err)
	}

	queued, err := that.queueRepo.Contains(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check queue: %w", err)
	}

	if queued {
		return &PairResult{Abandoned: abandoned}, nil
	}

	opponentID, err := that.queueRepo.PopEarliest(ctx)
	if errors.Is(err, repository.ErrQueueEmpty) {
		if err = that.queueRepo.Push(ctx, connectionID); err != nil {
			return nil, fmt.Errorf("failed to enqueue seeker: %w", err)
		}

		log.Info("seeker is waiting for an opponent")

		return &PairResult{Abandoned: abandoned}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to pop seeker: %w", err)
	}

	// The longest-waiting seeker created first, so they hold X.
	room, _, err := that.roomService.CreateRoom(ctx, opponentID, "")
	if err != nil {
		that.requeue(ctx, opponentID)
		return nil, fmt.Errorf("failed to create room for pair: %w", err)
	}

	room, _, err = that.roomService.JoinRoom(ctx, room.Code, connectionID)
	if err != nil {
		if _, leaveErr := that.roomService.LeaveRoom(ctx, opponentID); leaveErr != nil {
			log.Error("failed to tear down half-built room", "error", leaveErr)
		}
		that.requeue(ctx, opponentID)

		return nil, fmt.Errorf("failed to join paired room: %w", err)
	}

	log.Info("seekers paired", "roomCode", room.Code, "opponentID", opponentID)

	return &PairResult{Room: room, Paired: true, Abandoned: abandoned}, nil
}

// requeue puts a popped seeker back at the head of the queue when pairing
// falls apart, so they keep their place in line.
func (that *matchmakingService) requeue(ctx context.Context, connectionID string) {
	if err := that.queueRepo.PushFront(ctx, connectionID); err != nil {
		that.logger.Error("failed to requeue seeker", "connectionID", connectionID, "error", err)
	}
}

func (that *matchmakingService) Cancel(ctx context.Context, connectionID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.queueRepo.Remove(ctx, connectionID); err != nil {
		return fmt.Errorf("failed to cancel search: %w", err)
	}

	return nil
}
