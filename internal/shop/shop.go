// Package shop sells store items from the funding wallet.
package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
)

const maxQuantity = 100

var (
	ErrItemNotFound        = errs.NotFound("item_not_found", "store item not found")
	ErrInvalidQuantity     = errs.Validation("invalid_quantity", fmt.Sprintf("quantity must be between 1 and %d", maxQuantity))
	ErrOutOfStock          = errs.BusinessRule("out_of_stock", "not enough stock for this item")
	ErrInsufficientFunding = errs.BusinessRule("insufficient_funding", "insufficient funding balance for this purchase")
)

const itemColumns = `id, name, description, price, stock, is_active, created_at`

// ListItems returns the active catalog.
func ListItems(ctx context.Context, db *sqlx.DB) ([]models.StoreItem, error) {
	items := []models.StoreItem{}
	err := db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM store_items WHERE is_active ORDER BY price, id`)
	return items, err
}

// Receipt is the result of a purchase.
type Receipt struct {
	Purchase       models.Purchase  `json:"purchase"`
	Item           models.StoreItem `json:"item"`
	FundingBalance decimal.Decimal  `json:"funding_balance"`
}

// Purchase debits quantity × price from funding, decrements finite stock and
// records the purchase in one transaction.
func Purchase(ctx context.Context, db *sqlx.DB, userID string, itemID int64, quantity int) (*Receipt, error) {
	if quantity < 1 || quantity > maxQuantity {
		return nil, ErrInvalidQuantity
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var item models.StoreItem
	err = tx.GetContext(ctx, &item, `SELECT `+itemColumns+` FROM store_items WHERE id = $1 FOR UPDATE`, itemID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !item.IsActive) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.Stock != nil && *item.Stock < quantity {
		return nil, ErrOutOfStock.WithMessagef("only %d left in stock", *item.Stock)
	}

	total := item.Price.Mul(decimal.NewFromInt(int64(quantity)))
	entry, err := wallet.Apply(ctx, tx, wallet.Mutation{
		UserID:      userID,
		Wallet:      wallet.Funding,
		Amount:      total.Neg(),
		Type:        wallet.TypePurchase,
		Description: fmt.Sprintf("%d x %s", quantity, item.Name),
		Reference:   fmt.Sprintf("ITEM-%d", item.ID),
	})
	if errors.Is(err, wallet.ErrInsufficientBalance) {
		return nil, ErrInsufficientFunding
	}
	if err != nil {
		return nil, err
	}

	if item.Stock != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE store_items SET stock = stock - $2 WHERE id = $1`, item.ID, quantity); err != nil {
			return nil, err
		}
		left := *item.Stock - quantity
		item.Stock = &left
	}

	var p models.Purchase
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO purchases (user_id, item_id, quantity, total_price, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, user_id, item_id, quantity, total_price, created_at`,
		userID, item.ID, quantity, total).StructScan(&p)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[SHOP] user=%s item=%d qty=%d total=%s", userID, item.ID, quantity, total.StringFixed(2))
	return &Receipt{Purchase: p, Item: item, FundingBalance: entry.BalanceAfter}, nil
}

// PurchaseLine is a purchase joined with its item name.
type PurchaseLine struct {
	models.Purchase
	ItemName string `db:"item_name" json:"item_name"`
}

// ListPurchases returns a user's purchases, newest first.
func ListPurchases(ctx context.Context, db *sqlx.DB, userID string) ([]PurchaseLine, error) {
	out := []PurchaseLine{}
	err := db.SelectContext(ctx, &out, `
		SELECT pu.id, pu.user_id, pu.item_id, pu.quantity, pu.total_price, pu.created_at, si.name AS item_name
		FROM purchases pu
		JOIN store_items si ON si.id = pu.item_id
		WHERE pu.user_id = $1
		ORDER BY pu.created_at DESC, pu.id DESC`, userID)
	return out, err
}
