package admin

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// a ban reaches live sessions within this window even if invalidation fails
const banStateTTL = time.Minute

func banStateKey(userID string) string {
	return "ban_state:" + userID
}

// IsBanned reports whether userID is banned, reading through a short-lived
// Redis cache. Unknown users are not banned.
func IsBanned(ctx context.Context, db *sqlx.DB, rdb *redis.Client, userID string) (bool, error) {
	if rdb != nil {
		v, err := rdb.Get(ctx, banStateKey(userID)).Result()
		switch {
		case err == nil:
			return v == "1", nil
		case !errors.Is(err, redis.Nil):
			log.Printf("[ADMIN] Ban cache read failed for %s: %v", userID, err)
		}
	}

	var banned bool
	err := db.GetContext(ctx, &banned, `SELECT is_banned FROM profiles WHERE id = $1`, userID)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if rdb != nil {
		v := "0"
		if banned {
			v = "1"
		}
		if err := rdb.Set(ctx, banStateKey(userID), v, banStateTTL).Err(); err != nil {
			log.Printf("[ADMIN] Failed to cache ban state for %s: %v", userID, err)
		}
	}
	return banned, nil
}

// ForgetBanState drops the cached ban flag so the next request sees the change.
func ForgetBanState(ctx context.Context, rdb *redis.Client, userID string) {
	if rdb == nil {
		return
	}
	if err := rdb.Del(ctx, banStateKey(userID)).Err(); err != nil {
		log.Printf("[ADMIN] Failed to drop ban state for %s: %v", userID, err)
	}
}
