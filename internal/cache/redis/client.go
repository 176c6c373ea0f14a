package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gradelens/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetLatestPrediction caches the most recent prediction of one kind
// (prompt, regression, combined) for an owner.
func (c *Client) SetLatestPrediction(ctx context.Context, ownerID, kind string, prediction interface{}, ttl time.Duration) error {
	data, err := json.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	err = c.client.Set(ctx, latestKey(ownerID, kind), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set prediction cache: %w", err)
	}

	logger.Debug("Latest prediction cached",
		zap.String("owner_id", ownerID),
		zap.String("kind", kind),
	)
	return nil
}

func (c *Client) GetLatestPrediction(ctx context.Context, ownerID, kind string, prediction interface{}) (bool, error) {
	data, err := c.client.Get(ctx, latestKey(ownerID, kind)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get prediction cache: %w", err)
	}

	err = json.Unmarshal(data, prediction)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}

	logger.Debug("Prediction cache hit",
		zap.String("owner_id", ownerID),
		zap.String("kind", kind),
	)
	return true, nil
}

func latestKey(ownerID, kind string) string {
	return fmt.Sprintf("latest:%s:%s", ownerID, kind)
}

// ObjectFinalizedEvent is one entry on the object-store completion stream.
type ObjectFinalizedEvent struct {
	StreamID string
	OwnerID  string
	DocType  string
	FileRef  string
}

// PublishObjectFinalized appends an upload-completion event to the stream.
// Used by the object store after a successful write, and by tests.
func (c *Client) PublishObjectFinalized(ctx context.Context, stream string, ev ObjectFinalizedEvent) error {
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"owner_id": ev.OwnerID,
			"doc_type": ev.DocType,
			"file_ref": ev.FileRef,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// ReadObjectFinalized blocks up to block waiting for entries after lastID.
// Returns the events read and the id to resume from.
func (c *Client) ReadObjectFinalized(ctx context.Context, stream, lastID string, block time.Duration) ([]ObjectFinalizedEvent, string, error) {
	if lastID == "" {
		lastID = "$"
	}

	streams, err := c.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Block:   block,
		Count:   16,
	}).Result()
	if err == redis.Nil {
		return nil, lastID, nil
	}
	if err != nil {
		return nil, lastID, fmt.Errorf("failed to read event stream: %w", err)
	}

	var events []ObjectFinalizedEvent
	next := lastID
	for _, s := range streams {
		for _, msg := range s.Messages {
			ev := ObjectFinalizedEvent{StreamID: msg.ID}
			if v, ok := msg.Values["owner_id"].(string); ok {
				ev.OwnerID = v
			}
			if v, ok := msg.Values["doc_type"].(string); ok {
				ev.DocType = v
			}
			if v, ok := msg.Values["file_ref"].(string); ok {
				ev.FileRef = v
			}
			events = append(events, ev)
			next = msg.ID
		}
	}

	return events, next, nil
}
