package ws

import (
	"context"
	"log"

	appredis "github.com/playearn/backend/internal/redis"
	"github.com/redis/go-redis/v9"
)

// StartEventSubscriber forwards the notifications, wallet_events and
// maintenance channels to the hub until ctx is cancelled.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, h *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, appredis.ChannelNotifications, appredis.ChannelWalletEvents, appredis.ChannelMaintenance)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] notifications/wallet_events/maintenance subscriber started")
		for {
			select {
			case <-ctx.Done():
				log.Println("[WS] event subscriber stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h.Dispatch([]byte(msg.Payload))
			}
		}
	}()
}
