package plans

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
)

// StartExpirySweeper downgrades expired paid plans to the free trial every
// intervalMinutes until ctx is cancelled.
func StartExpirySweeper(ctx context.Context, db *sqlx.DB, intervalMinutes int) {
	if intervalMinutes <= 0 {
		intervalMinutes = 10
	}
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	log.Printf("[PLANS] Starting plan expiry sweeper (every %d min)", intervalMinutes)
	SweepExpired(ctx, db, time.Now())

	for {
		select {
		case <-ctx.Done():
			log.Printf("[PLANS] Sweeper stopped")
			return
		case <-ticker.C:
			SweepExpired(ctx, db, time.Now())
		}
	}
}

// SweepExpired runs one pass and returns how many users were downgraded.
func SweepExpired(ctx context.Context, db *sqlx.DB, now time.Time) int64 {
	res, err := db.ExecContext(ctx, `
		UPDATE profiles SET current_plan = 'free_trial', plan_expires_at = NULL, updated_at = NOW()
		WHERE current_plan <> 'free_trial' AND plan_expires_at IS NOT NULL AND plan_expires_at < $1`, now)
	if err != nil {
		log.Printf("[PLANS] Sweep failed: %v", err)
		return 0
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("[PLANS] Downgraded %d expired plan(s)", n)
	}
	return n
}
