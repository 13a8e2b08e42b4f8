package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playearn/backend/internal/errs"
)

// IsAdmin reports whether userID is on the admin roster.
func IsAdmin(ctx context.Context, q sqlx.QueryerContext, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var ok bool
	err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS (SELECT 1 FROM admin_users WHERE user_id = $1)`, userID)
	return ok, err
}

// RequireAdmin returns errs.ErrNotAdmin unless userID is on the roster.
// Privileged operations call it inside their own transaction so the check and
// the action see the same snapshot.
func RequireAdmin(ctx context.Context, q sqlx.QueryerContext, userID string) error {
	ok, err := IsAdmin(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("admin roster lookup: %w", err)
	}
	if !ok {
		log.Printf("[ADMIN] Roster check failed for user %s", userID)
		return errs.ErrNotAdmin
	}
	return nil
}

// GrantAdmin adds (or updates) a roster entry for the profile with the given email.
func GrantAdmin(ctx context.Context, db *sqlx.DB, email string, roles []string) (string, error) {
	var userID string
	if err := db.GetContext(ctx, &userID, `SELECT id FROM profiles WHERE email = $1`, email); err != nil {
		return "", fmt.Errorf("profile %s not found: %w", email, err)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO admin_users (user_id, roles, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET roles = EXCLUDED.roles
	`, userID, pq.Array(roles))
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Roles returns the roster roles of userID, empty when not an admin.
func Roles(ctx context.Context, db *sqlx.DB, userID string) ([]string, error) {
	var roles pq.StringArray
	err := db.QueryRowxContext(ctx, `SELECT roles FROM admin_users WHERE user_id = $1`, userID).Scan(&roles)
	if err != nil {
		return nil, err
	}
	return []string(roles), nil
}
