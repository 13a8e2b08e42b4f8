package gameplay

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playearn/backend/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "3f1d2c4b-5a69-4e7f-8d90-a1b2c3d4e5f6"

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func planRows(banned bool, limit int, maxEarning string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"is_banned", "current_plan", "daily_play_limit", "max_game_earning"}).
		AddRow(banned, "starter", limit, maxEarning)
}

func fixedToken(t *testing.T, token string) {
	t.Helper()
	prev := newToken
	newToken = func() string { return token }
	t.Cleanup(func() { newToken = prev })
}

func TestPlayDate(t *testing.T) {
	// 23:30 UTC is already the next day in Lagos
	late := time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", PlayDate(late))
	assert.Equal(t, "2026-03-02", PlayDate(now))
}

func TestEarning(t *testing.T) {
	one := decimal.NewFromInt(1)
	cap500 := decimal.NewFromInt(500)

	assert.True(t, Earning(120, one, cap500).Equal(decimal.NewFromInt(120)))
	assert.True(t, Earning(900, one, cap500).Equal(cap500))
	assert.True(t, Earning(0, one, cap500).IsZero())
	assert.True(t, Earning(3, decimal.RequireFromString("0.5"), cap500).Equal(decimal.RequireFromString("1.5")))
}

func TestStartPlay(t *testing.T) {
	ctx := context.Background()
	ttl := 30 * time.Minute
	one := decimal.NewFromInt(1)
	upsert := regexp.QuoteMeta("ON CONFLICT (user_id, game_type, play_date)")

	t.Run("counts the play and stores the session", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()
		fixedToken(t, "tok-1")

		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WithArgs(userID).
			WillReturnRows(planRows(false, 10, "500"))
		mock.ExpectQuery(upsert).
			WithArgs(userID, TapRush, "2026-03-02", 10).
			WillReturnRows(sqlmock.NewRows([]string{"play_count"}).AddRow(3))

		want := Session{
			Token: "tok-1", UserID: userID, GameType: TapRush, PlayDate: "2026-03-02",
			PlayCount: 3, DailyLimit: 10, MaxEarning: decimal.RequireFromString("500"), PointValue: one,
			StartedAt: now, ExpiresAt: now.Add(ttl), PlaysRemaining: 7,
		}
		data, err := json.Marshal(want)
		require.NoError(t, err)
		rmock.ExpectSetEx("play_session:tok-1", data, ttl).SetVal("OK")

		s, err := StartPlay(ctx, db, rdb, one, ttl, userID, TapRush, now)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", s.Token)
		assert.Equal(t, 7, s.PlaysRemaining)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("limit reached opens no session", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(planRows(false, 10, "500"))
		mock.ExpectQuery(upsert).
			WithArgs(userID, ColorMatch, "2026-03-02", 10).
			WillReturnRows(sqlmock.NewRows([]string{"play_count"}))

		_, err := StartPlay(ctx, db, rdb, one, ttl, userID, ColorMatch, now)
		assert.ErrorIs(t, err, ErrDailyLimitReached)
		assert.Equal(t, errs.KindLimit, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("banned user", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, _ := redismock.NewClientMock()

		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(planRows(true, 10, "500"))

		_, err := StartPlay(ctx, db, rdb, one, ttl, userID, TapRush, now)
		assert.ErrorIs(t, err, errs.ErrUserBanned)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown game", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, _ := redismock.NewClientMock()

		_, err := StartPlay(ctx, db, rdb, one, ttl, userID, "chess", now)
		assert.ErrorIs(t, err, ErrUnknownGame)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFinishPlay(t *testing.T) {
	ctx := context.Background()
	session := Session{
		Token: "tok-1", UserID: userID, GameType: TapRush, PlayDate: "2026-03-02",
		PlayCount: 3, DailyLimit: 10, MaxEarning: decimal.NewFromInt(500), PointValue: decimal.NewFromInt(1),
		StartedAt: now, ExpiresAt: now.Add(30 * time.Minute), PlaysRemaining: 7,
	}
	data, err := json.Marshal(session)
	require.NoError(t, err)

	ledgerCols := []string{"id", "user_id", "wallet", "type", "amount", "balance_after", "description", "reference", "created_at"}
	expectCredit := func(mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET earnings_balance = earnings_balance + $1")).
			WithArgs("500", userID, false).
			WillReturnRows(sqlmock.NewRows([]string{"earnings_balance"}).AddRow("1500"))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
			WithArgs(userID, "earnings", "game_earning", "500", "1500", "tap_rush score 700", "GAME-tok-1").
			WillReturnRows(sqlmock.NewRows(ledgerCols).
				AddRow(9, userID, "earnings", "game_earning", "500", "1500", "tap_rush score 700", "GAME-tok-1", now))
		mock.ExpectCommit()
	}

	t.Run("credits capped earning once", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))
		expectCredit(mock)
		rmock.ExpectDel("play_session:tok-1").SetVal(1)

		res, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 700)
		require.NoError(t, err)
		assert.True(t, res.Earned.Equal(decimal.NewFromInt(500)))
		assert.True(t, res.EarningsBalance.Equal(decimal.NewFromInt(1500)))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("failed credit keeps the session for a retry", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))
		mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

		_, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 700)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrSessionNotFound)

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))
		expectCredit(mock)
		rmock.ExpectDel("play_session:tok-1").SetVal(1)

		res, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 700)
		require.NoError(t, err)
		assert.True(t, res.Earned.Equal(decimal.NewFromInt(500)))
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("finished session cannot be replayed", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").RedisNil()

		_, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 700)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("lost the race to a concurrent finish", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET earnings_balance = earnings_balance + $1")).
			WillReturnRows(sqlmock.NewRows([]string{"earnings_balance"}).AddRow("2000"))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_transactions_game_reference"})
		mock.ExpectRollback()
		rmock.ExpectDel("play_session:tok-1").SetVal(0)

		_, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 700)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("zero score race is decided by the delete", func(t *testing.T) {
		db, mock := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))
		rmock.ExpectDel("play_session:tok-1").SetVal(0)

		_, err := FinishPlay(ctx, db, rdb, userID, "tok-1", 0)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("another user's session", func(t *testing.T) {
		db, _ := newMock(t)
		rdb, rmock := redismock.NewClientMock()

		rmock.ExpectGet("play_session:tok-1").SetVal(string(data))

		_, err := FinishPlay(ctx, db, rdb, "someone-else", "tok-1", 10)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.NoError(t, rmock.ExpectationsWereMet())
	})

	t.Run("negative score", func(t *testing.T) {
		db, _ := newMock(t)
		rdb, _ := redismock.NewClientMock()

		_, err := FinishPlay(ctx, db, rdb, userID, "tok-1", -1)
		assert.ErrorIs(t, err, ErrInvalidScore)
	})
}

func TestPlaysToday(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
		WithArgs(userID).
		WillReturnRows(planRows(false, 10, "500"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT game_type, play_count FROM game_plays")).
		WithArgs(userID, "2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"game_type", "play_count"}).AddRow(TapRush, 4))

	sum, err := PlaysToday(context.Background(), db, userID, now)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.DailyLimit)
	assert.Equal(t, 4, sum.Plays[TapRush])
	assert.Equal(t, 0, sum.Plays[QuickMath])
	assert.NoError(t, mock.ExpectationsWereMet())
}
