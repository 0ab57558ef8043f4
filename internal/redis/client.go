package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flymap/trackd/internal/types"
)

// pointsTTL bounds how long cached device points outlive their last
// refresh.
const pointsTTL = 24 * time.Hour

// RedisClientInterface defines the Redis operations used by our client.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client caches the latest decoded points per device.
type Client struct {
	client RedisClientInterface
}

// New creates a new Redis client.
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient creates a client with a custom RedisClientInterface
// (useful for testing).
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreDevicePoints caches the decoded points of a device.
func (c *Client) StoreDevicePoints(ctx context.Context, deviceID string, points []types.GeoPoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal points: %w", err)
	}
	return c.client.Set(ctx, pointsKey(deviceID), data, pointsTTL).Err()
}

// GetDevicePoints returns the cached points of a device, or nil when
// nothing is cached.
func (c *Client) GetDevicePoints(ctx context.Context, deviceID string) ([]types.GeoPoint, error) {
	data, err := c.client.Get(ctx, pointsKey(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached points: %w", err)
	}

	var points []types.GeoPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached points: %w", err)
	}
	return points, nil
}

// DeleteDevicePoints drops the cached points of a device.
func (c *Client) DeleteDevicePoints(ctx context.Context, deviceID string) error {
	return c.client.Del(ctx, pointsKey(deviceID)).Err()
}

func pointsKey(deviceID string) string {
	return fmt.Sprintf("device:points:%s", deviceID)
}
