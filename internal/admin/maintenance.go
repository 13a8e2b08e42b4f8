package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/notify"
	appredis "github.com/playearn/backend/internal/redis"
	"github.com/redis/go-redis/v9"
)

const maintenanceKey = "maintenance:state"

// Maintenance is the state the client shell polls.
type Maintenance struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// SetMaintenance persists the flag and message, refreshes the in-memory policy,
// caches the state in Redis and announces it on the maintenance channel.
func SetMaintenance(ctx context.Context, db *sqlx.DB, rdb *redis.Client, cfg *config.Config, adminID string, enabled bool, message string) (*Maintenance, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = cfg.Policy().MaintenanceMessage
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := RequireAdmin(ctx, tx, adminID); err != nil {
		return nil, err
	}
	entries := []struct{ key, value, valueType string }{
		{"maintenance_mode", strconv.FormatBool(enabled), "bool"},
		{"maintenance_message", message, "string"},
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO runtime_config (key, value, value_type, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		`, e.key, e.value, e.valueType, adminID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	cfg.UpdatePolicy(func(p *config.Policy) {
		p.MaintenanceMode = enabled
		p.MaintenanceMessage = message
	})

	m := &Maintenance{Enabled: enabled, Message: message}
	announceMaintenance(ctx, rdb, m)

	log.Printf("[ADMIN] Maintenance mode set to %v by %s", enabled, adminID)
	return m, nil
}

// IsMaintenanceKey reports whether a runtime config key feeds the maintenance state.
func IsMaintenanceKey(key string) bool {
	return key == "maintenance_mode" || key == "maintenance_message"
}

// RefreshMaintenance re-caches and announces the maintenance state held by the
// in-memory policy. Call it after the policy changed through runtime config.
func RefreshMaintenance(ctx context.Context, rdb *redis.Client, cfg *config.Config) Maintenance {
	p := cfg.Policy()
	m := &Maintenance{Enabled: p.MaintenanceMode, Message: p.MaintenanceMessage}
	announceMaintenance(ctx, rdb, m)
	return *m
}

func announceMaintenance(ctx context.Context, rdb *redis.Client, m *Maintenance) {
	cacheMaintenance(ctx, rdb, m)
	notify.Publish(ctx, rdb, appredis.ChannelMaintenance, notify.Event{Type: "maintenance", Data: m})
}

func cacheMaintenance(ctx context.Context, rdb *redis.Client, m *Maintenance) {
	if rdb == nil {
		return
	}
	b, _ := json.Marshal(m)
	if err := rdb.Set(ctx, maintenanceKey, b, 0).Err(); err != nil {
		log.Printf("[ADMIN] Failed to cache maintenance state: %v", err)
	}
}

// GetMaintenance reads the shared state from Redis, falling back to the
// in-memory policy when the cache is empty or unreachable.
func GetMaintenance(ctx context.Context, rdb *redis.Client, cfg *config.Config) Maintenance {
	p := cfg.Policy()
	fallback := Maintenance{Enabled: p.MaintenanceMode, Message: p.MaintenanceMessage}
	if rdb == nil {
		return fallback
	}

	raw, err := rdb.Get(ctx, maintenanceKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[ADMIN] Maintenance cache read failed: %v", err)
		}
		return fallback
	}
	var m Maintenance
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fallback
	}
	return m
}

// SyncMaintenanceCache seeds Redis from the policy loaded at startup.
func SyncMaintenanceCache(ctx context.Context, rdb *redis.Client, cfg *config.Config) {
	p := cfg.Policy()
	cacheMaintenance(ctx, rdb, &Maintenance{Enabled: p.MaintenanceMode, Message: p.MaintenanceMessage})
}
