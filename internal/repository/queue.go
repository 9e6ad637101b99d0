package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const queueKey = "matchmaking:queue"

var ErrQueueEmpty = errors.New("matchmaking queue is empty")

// QueueRepository is the ordered waiting list of seekers; insertion order
// is search order.
type QueueRepository interface {
	Push(ctx context.Context, connectionID string) error
	PushFront(ctx context.Context, connectionID string) error
	PopEarliest(ctx context.Context) (string, error)
	Remove(ctx context.Context, connectionID string) error
	Contains(ctx context.Context, connectionID string) (bool, error)
}

type dbQueue struct {
	client *redis.Client
}

func NewQueueRepository(client *redis.Client) QueueRepository {
	return &dbQueue{
		client: client,
	}
}

func (that *dbQueue) Push(ctx context.Context, connectionID string) error {
	if err := that.client.RPush(ctx, queueKey, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to push seeker: %w", err)
	}

	return nil
}

// PushFront returns a seeker to the head of the queue, ahead of everyone
// who arrived later.
func (that *dbQueue) PushFront(ctx context.Context, connectionID string) error {
	if err := that.client.LPush(ctx, queueKey, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to push seeker to the front: %w", err)
	}

	return nil
}

func (that *dbQueue) PopEarliest(ctx context.Context) (string, error) {
	connectionID, err := that.client.LPop(ctx, queueKey).Result()

	if errors.Is(err, redis.Nil) {
		return "", ErrQueueEmpty
	}

	if err != nil {
		return "", fmt.Errorf("failed to pop seeker: %w", err)
	}

	return connectionID, nil
}

func (that *dbQueue) Remove(ctx context.Context, connectionID string) error {
	if err := that.client.LRem(ctx, queueKey, 0, connectionID).Err(); err != nil {
		return fmt.Errorf("failed to remove seeker: %w", err)
	}

	return nil
}

func (that *dbQueue) Contains(ctx context.Context, connectionID string) (bool, error) {
	_, err := that.client.LPos(ctx, queueKey, connectionID, redis.LPosArgs{}).Result()

	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to look up seeker: %w", err)
	}

	return true, nil
}
