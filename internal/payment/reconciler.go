package payment

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// pending deposits younger than this are left to the user's own verify call
const reconcileMinAge = time.Minute

// abandoned checkouts are failed after this long
const reconcileGiveUpAge = 30 * time.Minute

// SettleHook runs after a deposit is credited by the reconciler.
type SettleHook func(userID string, s *Settlement)

// StartReconciler periodically re-verifies pending deposits so a user who closes
// the checkout before the verify call still gets credited.
func StartReconciler(ctx context.Context, db *sqlx.DB, v Verifier, intervalMinutes int, onSettle SettleHook) {
	if v == nil {
		log.Printf("[PAYMENT-RECON] Payment client not initialized, reconciler not started")
		return
	}
	if intervalMinutes <= 0 {
		intervalMinutes = 2
	}
	ticker := time.NewTicker(time.Duration(intervalMinutes) * time.Minute)
	defer ticker.Stop()

	log.Printf("[PAYMENT-RECON] Starting deposit reconciler (check every %d min)", intervalMinutes)

	ReconcilePending(ctx, db, v, time.Now(), onSettle)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[PAYMENT-RECON] Reconciler stopped")
			return
		case <-ticker.C:
			ReconcilePending(ctx, db, v, time.Now(), onSettle)
		}
	}
}

type pendingDeposit struct {
	ID                   int64           `db:"id"`
	UserID               string          `db:"user_id"`
	TransactionReference string          `db:"transaction_reference"`
	Amount               decimal.Decimal `db:"amount"`
	CreatedAt            time.Time       `db:"created_at"`
}

// ReconcilePending runs one reconciliation pass and returns how many deposits it credited.
func ReconcilePending(ctx context.Context, db *sqlx.DB, v Verifier, now time.Time, onSettle SettleHook) int {
	var pending []pendingDeposit
	err := db.SelectContext(ctx, &pending, `
		SELECT id, user_id, transaction_reference, amount, created_at
		FROM deposits
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT 100`, now.Add(-reconcileMinAge))
	if err != nil {
		log.Printf("[PAYMENT-RECON] Failed to fetch pending deposits: %v", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	log.Printf("[PAYMENT-RECON] Checking %d pending deposit(s)", len(pending))

	credited := 0
	for _, d := range pending {
		age := now.Sub(d.CreatedAt)
		ver, err := v.Verify(ctx, d.TransactionReference)
		if err != nil {
			log.Printf("[PAYMENT-RECON] Failed to verify %s: %v", d.TransactionReference, err)
			continue
		}

		switch {
		case ver.Succeeded():
			if ver.Reference == "" {
				ver.Reference = d.TransactionReference
			}
			s, err := Settle(ctx, db, d.UserID, ver)
			if err != nil {
				log.Printf("[PAYMENT-RECON] Failed to settle %s: %v", d.TransactionReference, err)
				continue
			}
			if !s.AlreadyCredited {
				credited++
				if onSettle != nil {
					onSettle(d.UserID, s)
				}
			}
		case ver.Status == "failed" || ver.Status == "abandoned" || ver.Status == "reversed":
			if age >= reconcileGiveUpAge {
				if err := MarkFailed(ctx, db, d.TransactionReference, ver.Status, ver.GatewayResponse); err != nil {
					log.Printf("[PAYMENT-RECON] Failed to mark %s failed: %v", d.TransactionReference, err)
				}
			}
		default:
			log.Printf("[PAYMENT-RECON] Deposit %s still %s (age=%v)", d.TransactionReference, ver.Status, age.Round(time.Second))
		}
	}
	return credited
}
