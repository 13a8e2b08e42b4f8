package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channels used for pub/sub between the API and websocket fan-out.
const (
	ChannelNotifications = "notifications"
	ChannelWalletEvents  = "wallet_events"
	ChannelMaintenance   = "maintenance"
)

// Connect establishes a connection to Redis
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}
