package withdrawals

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/models"
)

// AdminWithdrawal is a withdrawal joined with its owner for the admin queue.
type AdminWithdrawal struct {
	models.Withdrawal
	UserEmail string `db:"user_email" json:"user_email"`
	UserName  string `db:"user_name" json:"user_name"`
}

// Get returns one withdrawal owned by userID.
func Get(ctx context.Context, db *sqlx.DB, userID string, id int64) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := db.GetContext(ctx, &w, `SELECT `+models.WithdrawalColumns+` FROM withdrawals WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListForUser returns a user's withdrawals, newest first.
func ListForUser(ctx context.Context, db *sqlx.DB, userID string, limit, offset int) ([]models.Withdrawal, int, error) {
	type row struct {
		models.Withdrawal
		TotalCount int `db:"total_count"`
	}
	var rows []row
	err := db.SelectContext(ctx, &rows, `
		SELECT `+models.WithdrawalColumns+`, COUNT(*) OVER() AS total_count
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Withdrawal, 0, len(rows))
	total := 0
	for _, r := range rows {
		out = append(out, r.Withdrawal)
		total = r.TotalCount
	}
	return out, total, nil
}

// ListAll is the admin queue, optionally filtered by status.
func ListAll(ctx context.Context, db *sqlx.DB, status string, limit, offset int) ([]AdminWithdrawal, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	type row struct {
		AdminWithdrawal
		TotalCount int `db:"total_count"`
	}
	var rows []row
	err := db.SelectContext(ctx, &rows, `
		SELECT w.id, w.user_id, w.amount, w.fee, w.bank_name, w.bank_code, w.account_number, w.account_name,
			w.status, w.notes, w.processed_by, w.processed_at, w.refunded_at, w.created_at, w.updated_at,
			p.email AS user_email, p.full_name AS user_name,
			COUNT(*) OVER() AS total_count
		FROM withdrawals w
		JOIN profiles p ON p.id = w.user_id
		WHERE ($1 = '' OR w.status = $1)
		ORDER BY w.created_at DESC, w.id DESC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AdminWithdrawal, 0, len(rows))
	total := 0
	for _, r := range rows {
		out = append(out, r.AdminWithdrawal)
		total = r.TotalCount
	}
	return out, total, nil
}

// ListEditRequests returns edit requests, optionally filtered by status and user.
func ListEditRequests(ctx context.Context, db *sqlx.DB, userID, status string, limit, offset int) ([]models.WithdrawalEditRequest, int, error) {
	type row struct {
		models.WithdrawalEditRequest
		TotalCount int `db:"total_count"`
	}
	var rows []row
	err := db.SelectContext(ctx, &rows, `
		SELECT `+models.EditRequestColumns+`, COUNT(*) OVER() AS total_count
		FROM withdrawal_edit_requests
		WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, userID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.WithdrawalEditRequest, 0, len(rows))
	total := 0
	for _, r := range rows {
		out = append(out, r.WithdrawalEditRequest)
		total = r.TotalCount
	}
	return out, total, nil
}
