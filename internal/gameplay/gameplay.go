// Package gameplay gates play sessions by the plan's daily limit and credits
// session scores to the earnings wallet. Game rendering happens client-side.
package gameplay

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/wallet"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// supported game types
const (
	TapRush    = "tap_rush"
	ColorMatch = "color_match"
	MemoryFlip = "memory_flip"
	QuickMath  = "quick_math"
	SnakeDash  = "snake_dash"
)

var GameTypes = []string{TapRush, ColorMatch, MemoryFlip, QuickMath, SnakeDash}

// partial unique index on transactions(reference) for game earnings
const gameReferenceIndex = "uq_transactions_game_reference"

var (
	ErrUnknownGame       = errs.Validation("unknown_game", "unknown game type")
	ErrDailyLimitReached = errs.New(errs.KindLimit, "daily_limit_reached", "you have reached today's play limit for this game")
	ErrSessionNotFound   = errs.NotFound("session_not_found", "game session expired or already finished")
	ErrInvalidScore      = errs.Validation("invalid_score", "score must not be negative")
)

// play dates roll over at midnight Lagos time
var lagos = loadLagos()

func loadLagos() *time.Location {
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		return time.FixedZone("WAT", 60*60)
	}
	return loc
}

// PlayDate is the calendar date a play at now counts against.
func PlayDate(now time.Time) string {
	return now.In(lagos).Format("2006-01-02")
}

// ValidGame reports whether gameType is supported.
func ValidGame(gameType string) bool {
	for _, g := range GameTypes {
		if g == gameType {
			return true
		}
	}
	return false
}

// Session is a started play, held in Redis until finished or expired.
type Session struct {
	Token          string          `json:"token"`
	UserID         string          `json:"user_id"`
	GameType       string          `json:"game_type"`
	PlayDate       string          `json:"play_date"`
	PlayCount      int             `json:"play_count"`
	DailyLimit     int             `json:"daily_limit"`
	MaxEarning     decimal.Decimal `json:"max_earning"`
	PointValue     decimal.Decimal `json:"point_value"`
	StartedAt      time.Time       `json:"started_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	PlaysRemaining int             `json:"plays_remaining"`
}

func sessionKey(token string) string {
	return "play_session:" + token
}

var newToken = func() string {
	return uuid.NewString()
}

type playerPlan struct {
	IsBanned       bool            `db:"is_banned"`
	CurrentPlan    string          `db:"current_plan"`
	DailyPlayLimit int             `db:"daily_play_limit"`
	MaxGameEarning decimal.Decimal `db:"max_game_earning"`
}

func loadPlayerPlan(ctx context.Context, db *sqlx.DB, userID string) (*playerPlan, error) {
	var p playerPlan
	err := db.GetContext(ctx, &p, `
		SELECT p.is_banned, p.current_plan, pl.daily_play_limit, pl.max_game_earning
		FROM profiles p
		JOIN plans pl ON pl.code = p.current_plan
		WHERE p.id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wallet.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// StartPlay counts one play against today's limit and opens a session. The
// counter is a single conditional upsert, so concurrent starts can never push
// play_count past the limit.
func StartPlay(ctx context.Context, db *sqlx.DB, rdb *redis.Client, pointValue decimal.Decimal, ttl time.Duration, userID, gameType string, now time.Time) (*Session, error) {
	if !ValidGame(gameType) {
		return nil, ErrUnknownGame
	}
	if rdb == nil {
		return nil, errs.ErrInternal
	}

	plan, err := loadPlayerPlan(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if plan.IsBanned {
		return nil, errs.ErrUserBanned
	}
	if plan.DailyPlayLimit <= 0 {
		return nil, ErrDailyLimitReached
	}

	date := PlayDate(now)
	var count int
	err = db.QueryRowxContext(ctx, `
		INSERT INTO game_plays (user_id, game_type, play_date, play_count, updated_at)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, game_type, play_date)
		DO UPDATE SET play_count = game_plays.play_count + 1, updated_at = NOW()
		WHERE game_plays.play_count < $4
		RETURNING play_count`, userID, gameType, date, plan.DailyPlayLimit).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDailyLimitReached.WithMessagef("you have used all %d plays of %s for today", plan.DailyPlayLimit, gameType)
	}
	if err != nil {
		return nil, fmt.Errorf("count play: %w", err)
	}

	s := &Session{
		Token:          newToken(),
		UserID:         userID,
		GameType:       gameType,
		PlayDate:       date,
		PlayCount:      count,
		DailyLimit:     plan.DailyPlayLimit,
		MaxEarning:     plan.MaxGameEarning,
		PointValue:     pointValue,
		StartedAt:      now,
		ExpiresAt:      now.Add(ttl),
		PlaysRemaining: plan.DailyPlayLimit - count,
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := rdb.SetEx(ctx, sessionKey(s.Token), data, ttl).Err(); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	log.Printf("[PLAY] user=%s game=%s date=%s play=%d/%d session=%s", userID, gameType, date, count, plan.DailyPlayLimit, s.Token)
	return s, nil
}

// Result is the outcome of a finished session.
type Result struct {
	Token           string          `json:"token"`
	GameType        string          `json:"game_type"`
	Score           int64           `json:"score"`
	Earned          decimal.Decimal `json:"earned"`
	EarningsBalance decimal.Decimal `json:"earnings_balance"`
}

// Earning converts a score into naira, capped by the plan's per-game maximum.
func Earning(score int64, pointValue, maxEarning decimal.Decimal) decimal.Decimal {
	e := decimal.NewFromInt(score).Mul(pointValue).Round(2)
	if maxEarning.IsPositive() && e.GreaterThan(maxEarning) {
		return maxEarning
	}
	return e
}

// FinishPlay credits the session's earning exactly once and then consumes it.
func FinishPlay(ctx context.Context, db *sqlx.DB, rdb *redis.Client, userID, token string, score int64) (*Result, error) {
	if score < 0 {
		return nil, ErrInvalidScore
	}
	if rdb == nil {
		return nil, errs.ErrInternal
	}

	key := sessionKey(token)
	data, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.UserID != userID {
		return nil, ErrSessionNotFound
	}

	res := &Result{
		Token:    token,
		GameType: s.GameType,
		Score:    score,
		Earned:   Earning(score, s.PointValue, s.MaxEarning),
	}
	if !res.Earned.IsPositive() {
		// nothing to credit, so the delete count decides which finish wins
		n, err := rdb.Del(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrSessionNotFound
		}
		b, err := wallet.GetBalances(ctx, db, userID)
		if err != nil {
			return nil, err
		}
		res.EarningsBalance = b.Earnings
		return res, nil
	}

	// credit before dropping the session so a failed credit can be retried;
	// the ledger's unique game reference decides which finish wins
	entry, err := wallet.UpdateBalance(ctx, db, wallet.Mutation{
		UserID:      userID,
		Wallet:      wallet.Earnings,
		Amount:      res.Earned,
		Type:        wallet.TypeGameEarning,
		Description: fmt.Sprintf("%s score %d", s.GameType, score),
		Reference:   "GAME-" + token,
	})
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == gameReferenceIndex {
		rdb.Del(ctx, key)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	res.EarningsBalance = entry.BalanceAfter

	if err := rdb.Del(ctx, key).Err(); err != nil {
		log.Printf("[PLAY] Failed to drop session %s after crediting: %v", token, err)
	}

	log.Printf("[PLAY] user=%s game=%s score=%d earned=%s", userID, s.GameType, score, res.Earned.StringFixed(2))
	return res, nil
}

// Summary is today's play counts per game.
type Summary struct {
	PlayDate   string         `json:"play_date"`
	Plan       string         `json:"plan"`
	DailyLimit int            `json:"daily_limit"`
	Plays      map[string]int `json:"plays"`
}

// PlaysToday reports how many plays of each game the user has used today.
func PlaysToday(ctx context.Context, db *sqlx.DB, userID string, now time.Time) (*Summary, error) {
	plan, err := loadPlayerPlan(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	date := PlayDate(now)
	var rows []struct {
		GameType  string `db:"game_type"`
		PlayCount int    `db:"play_count"`
	}
	if err := db.SelectContext(ctx, &rows, `SELECT game_type, play_count FROM game_plays WHERE user_id = $1 AND play_date = $2`, userID, date); err != nil {
		return nil, err
	}

	sum := &Summary{PlayDate: date, Plan: plan.CurrentPlan, DailyLimit: plan.DailyPlayLimit, Plays: make(map[string]int, len(GameTypes))}
	for _, g := range GameTypes {
		sum.Plays[g] = 0
	}
	for _, r := range rows {
		sum.Plays[r.GameType] = r.PlayCount
	}
	return sum, nil
}
