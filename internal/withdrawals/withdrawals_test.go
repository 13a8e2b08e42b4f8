package withdrawals

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/payment"
	"github.com/playearn/backend/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userID  = "5b0e4a1c-2f7d-4b8e-9a61-3c2d1e0f9a10"
	adminID = "0c9f8e7d-6b5a-4c3d-8e2f-1a0b9c8d7e6f"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func testPolicy() config.Policy {
	return config.Policy{
		MinWithdrawAmount:    decimal.NewFromInt(30000),
		WithdrawFeeThreshold: decimal.NewFromInt(100000),
		WithdrawFeeLow:       decimal.NewFromInt(500),
		WithdrawFeeHigh:      decimal.NewFromInt(3000),
		WithdrawCooldown:     7 * 24 * time.Hour,
		EditRequestFee:       decimal.NewFromInt(1000),
	}
}

func testBank() BankDetails {
	return BankDetails{
		BankName:      "First Bank",
		BankCode:      "011",
		AccountNumber: "0123456789",
		AccountName:   "Ada Obi",
	}
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

// timeArg matches a time.Time argument by instant.
type timeArg time.Time

func (a timeArg) Match(v driver.Value) bool {
	t, ok := v.(time.Time)
	return ok && t.Equal(time.Time(a))
}

func standingRows(banned bool, plan string, canWithdraw bool, next interface{}, funding, earnings string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"is_banned", "current_plan", "next_withdraw_at", "funding_balance", "earnings_balance", "can_withdraw", "withdraw_cooldown_days"}).
		AddRow(banned, plan, next, funding, earnings, canWithdraw, nil)
}

var withdrawalCols = []string{"id", "user_id", "amount", "fee", "bank_name", "bank_code", "account_number", "account_name",
	"status", "notes", "processed_by", "processed_at", "refunded_at", "created_at", "updated_at"}

func withdrawalRow(id int64, status, amount, fee string) *sqlmock.Rows {
	b := testBank()
	return sqlmock.NewRows(withdrawalCols).
		AddRow(id, userID, amount, fee, b.BankName, b.BankCode, b.AccountNumber, b.AccountName,
			status, nil, nil, nil, nil, now, now)
}

func expectWalletMove(mock sqlmock.Sqlmock, col, walletName, typ, amount, after string) {
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET "+col+" = "+col+" + $1")).
		WithArgs(amount, userID, false).
		WillReturnRows(sqlmock.NewRows([]string{col}).AddRow(after))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs(userID, walletName, typ, amount, after, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "wallet", "type", "amount", "balance_after", "description", "reference", "created_at"}).
			AddRow(1, userID, walletName, typ, amount, after, "", "WD-7", now))
}

func TestFeeFor(t *testing.T) {
	p := testPolicy()
	cases := []struct {
		amount int64
		fee    int64
	}{
		{30000, 500},
		{99999, 500},
		{100000, 3000},
		{250000, 3000},
	}
	for _, tc := range cases {
		assert.True(t, FeeFor(p, decimal.NewFromInt(tc.amount)).Equal(decimal.NewFromInt(tc.fee)), "amount %d", tc.amount)
	}
}

func TestEligibility(t *testing.T) {
	next := now.Add(time.Hour)
	past := now.Add(-time.Minute)

	cases := []struct {
		name string
		s    Standing
		want error
	}{
		{"eligible", Standing{CurrentPlan: "starter", PlanCanWithdraw: true}, nil},
		{"banned", Standing{IsBanned: true, CurrentPlan: "starter", PlanCanWithdraw: true}, errs.ErrUserBanned},
		{"free trial", Standing{CurrentPlan: FreeTrialPlan, PlanCanWithdraw: true}, ErrPlanForbids},
		{"plan without withdrawals", Standing{CurrentPlan: "starter"}, ErrPlanForbids},
		{"cooldown running", Standing{CurrentPlan: "starter", PlanCanWithdraw: true, NextWithdrawAt: &next}, ErrCooldownActive},
		{"cooldown over", Standing{CurrentPlan: "starter", PlanCanWithdraw: true, NextWithdrawAt: &past}, nil},
		{"cooldown boundary is inclusive", Standing{CurrentPlan: "starter", PlanCanWithdraw: true, NextWithdrawAt: &now}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Eligibility(tc.s, now)
			if tc.want == nil {
				assert.NoError(t, err)
				assert.True(t, CanWithdraw(tc.s, now))
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, CanWithdraw(tc.s, now))
		})
	}
}

func TestCooldown(t *testing.T) {
	p := testPolicy()
	assert.Equal(t, 7*24*time.Hour, Cooldown(p, Standing{}))

	five := 5
	assert.Equal(t, 5*24*time.Hour, Cooldown(p, Standing{PlanCooldownDays: &five}))
}

func TestBankDetailsValidate(t *testing.T) {
	assert.NoError(t, testBank().Validate())

	b := testBank()
	b.AccountNumber = "12345"
	err := b.Validate()
	require.ErrorIs(t, err, ErrInvalidBankDetails)
	e, ok := errs.From(err)
	require.True(t, ok)
	assert.Contains(t, e.Details, "account_number")

	padded := BankDetails{BankName: " GTBank ", BankCode: " 058", AccountNumber: "0011223344 ", AccountName: " Chidi Eze "}.Normalize()
	assert.Equal(t, "GTBank", padded.BankName)
	assert.NoError(t, padded.Validate())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	p := testPolicy()

	t.Run("insufficient funding for the fee changes nothing", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WithArgs(userID).
			WillReturnRows(standingRows(false, "starter", true, nil, "0", "50000"))
		mock.ExpectRollback()

		w, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(40000), BankDetails: testBank()}, now)
		require.Error(t, err)
		assert.Nil(t, w)
		assert.ErrorIs(t, err, ErrInsufficientFundingForFee)
		assert.Equal(t, "insufficient funding balance for fee", err.Error())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("large withdrawal debits both wallets and starts the cooldown", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF p")).
			WithArgs(userID).
			WillReturnRows(standingRows(false, "starter", true, nil, "5000", "200000"))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO withdrawals")).
			WithArgs(userID, "150000", "3000", "First Bank", "011", "0123456789", "Ada Obi", timeArg(now)).
			WillReturnRows(withdrawalRow(7, StatusPending, "150000", "3000"))
		expectWalletMove(mock, "earnings_balance", wallet.Earnings, wallet.TypeWithdrawal, "-150000", "50000")
		expectWalletMove(mock, "funding_balance", wallet.Funding, wallet.TypeWithdrawalFee, "-3000", "2000")
		mock.ExpectExec(regexp.QuoteMeta("UPDATE profiles SET next_withdraw_at = $2")).
			WithArgs(userID, timeArg(now.Add(7*24*time.Hour))).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(150000), BankDetails: testBank()}, now)
		require.NoError(t, err)
		assert.Equal(t, int64(7), w.ID)
		assert.Equal(t, StatusPending, w.Status)
		assert.True(t, w.Fee.Equal(decimal.NewFromInt(3000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("below minimum rolls back", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(false, "starter", true, nil, "5000", "200000"))
		mock.ExpectRollback()

		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(29999), BankDetails: testBank()}, now)
		assert.ErrorIs(t, err, ErrBelowMinimum)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("banned user with bad input is told about the ban", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(true, "starter", true, nil, "5000", "200000"))
		mock.ExpectRollback()

		bad := testBank()
		bad.AccountNumber = "12"
		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(10), BankDetails: bad}, now)
		assert.ErrorIs(t, err, errs.ErrUserBanned)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("banned user is refused", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(true, "starter", true, nil, "5000", "200000"))
		mock.ExpectRollback()

		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(40000), BankDetails: testBank()}, now)
		assert.ErrorIs(t, err, errs.ErrUserBanned)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cooldown still running", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(false, "starter", true, now.Add(48*time.Hour), "5000", "200000"))
		mock.ExpectRollback()

		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(40000), BankDetails: testBank()}, now)
		assert.ErrorIs(t, err, ErrCooldownActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("free trial cannot withdraw", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(false, FreeTrialPlan, false, nil, "5000", "200000"))
		mock.ExpectRollback()

		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(40000), BankDetails: testBank()}, now)
		assert.ErrorIs(t, err, ErrPlanForbids)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient earnings", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p")).
			WillReturnRows(standingRows(false, "pro", true, nil, "5000", "35000"))
		mock.ExpectRollback()

		_, err := Create(ctx, db, p, userID, CreateRequest{Amount: decimal.NewFromInt(40000), BankDetails: testBank()}, now)
		assert.ErrorIs(t, err, ErrInsufficientEarnings)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func expectAdmin(mock sqlmock.Sqlmock, ok bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM admin_users WHERE user_id = $1)")).
		WithArgs(adminID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(ok))
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	lockQuery := regexp.QuoteMeta("FROM withdrawals WHERE id = $1 FOR UPDATE")

	t.Run("reject refunds amount and fee", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).
			WithArgs(int64(7)).
			WillReturnRows(withdrawalRow(7, StatusPending, "150000", "3000"))
		expectWalletMove(mock, "earnings_balance", wallet.Earnings, wallet.TypeWithdrawalRefund, "150000", "200000")
		expectWalletMove(mock, "funding_balance", wallet.Funding, wallet.TypeWithdrawalRefund, "3000", "5000")
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE withdrawals SET")).
			WithArgs(int64(7), StatusRejected, "account closed", true, adminID, timeArg(now)).
			WillReturnRows(withdrawalRow(7, StatusRejected, "150000", "3000"))
		mock.ExpectCommit()

		w, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: "rejected", Notes: "account closed"}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, w.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second reject does not refund again", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).
			WithArgs(int64(7)).
			WillReturnRows(withdrawalRow(7, StatusRejected, "150000", "3000"))
		mock.ExpectRollback()

		_, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: StatusRejected}, now)
		assert.ErrorIs(t, err, ErrAlreadyRejected)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approve records the processing admin", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).
			WithArgs(int64(7)).
			WillReturnRows(withdrawalRow(7, StatusProcessing, "40000", "500"))
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE withdrawals SET")).
			WithArgs(int64(7), StatusApproved, "", true, adminID, timeArg(now)).
			WillReturnRows(withdrawalRow(7, StatusApproved, "40000", "500"))
		mock.ExpectCommit()

		w, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: "Approved"}, now)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, w.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non admin is refused", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, false)
		mock.ExpectRollback()

		_, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: StatusApproved}, now)
		assert.ErrorIs(t, err, errs.ErrNotAdmin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed cannot be reopened", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).
			WithArgs(int64(7)).
			WillReturnRows(withdrawalRow(7, StatusCompleted, "40000", "500"))
		mock.ExpectRollback()

		_, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: StatusProcessing}, now)
		assert.ErrorIs(t, err, ErrFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown status", func(t *testing.T) {
		db, mock := newMock(t)

		_, err := Transition(ctx, db, TransitionRequest{AdminID: adminID, WithdrawalID: 7, Status: "paid"}, now)
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusProcessing))
	assert.True(t, CanTransition(StatusApproved, StatusCompleted))
	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusProcessing, StatusEditing))
	assert.False(t, CanTransition(StatusRejected, StatusPending))
}

type stubVerifier struct {
	ver *payment.Verification
	err error
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (*payment.Verification, error) {
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.ver
	return &cp, nil
}

var editCols = []string{"id", "withdrawal_id", "user_id", "bank_name", "bank_code", "account_number", "account_name",
	"fee", "fee_paid", "fee_reference", "status", "reviewed_by", "reviewed_at", "review_notes", "created_at"}

func expectFeeLock(mock sqlmock.Sqlmock, ref string) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs(ref).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestSubmitEditRequest(t *testing.T) {
	ctx := context.Background()
	p := testPolicy()
	paid := &stubVerifier{ver: &payment.Verification{
		Reference: "EDIT_1", Status: "success", Amount: decimal.NewFromInt(1000), Currency: "NGN",
		UserID: userID, Purpose: payment.PurposeEditFee,
	}}
	newBank := BankDetails{BankName: "GTBank", BankCode: "058", AccountNumber: "0011223344", AccountName: "Ada Obi"}
	in := EditRequestInput{BankDetails: newBank, PaymentReference: "EDIT_1"}

	t.Run("paid request moves withdrawal to editing", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectFeeLock(mock, "EDIT_1")
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE")).
			WithArgs(int64(7), userID).
			WillReturnRows(withdrawalRow(7, StatusProcessing, "40000", "500"))
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_edit_requests WHERE fee_reference = $1")).
			WithArgs("EDIT_1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO withdrawal_edit_requests")).
			WithArgs(int64(7), userID, "GTBank", "058", "0011223344", "Ada Obi", "1000", "EDIT_1").
			WillReturnRows(sqlmock.NewRows(editCols).
				AddRow(3, 7, userID, "GTBank", "058", "0011223344", "Ada Obi", "1000", true, "EDIT_1", EditPending, nil, nil, nil, now))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET status = 'editing'")).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		r, err := SubmitEditRequest(ctx, db, paid, p, userID, 7, in)
		require.NoError(t, err)
		assert.Equal(t, EditPending, r.Status)
		assert.True(t, r.FeePaid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second request while one is pending", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectFeeLock(mock, "EDIT_1")
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE")).
			WithArgs(int64(7), userID).
			WillReturnRows(withdrawalRow(7, StatusEditing, "40000", "500"))
		mock.ExpectRollback()

		_, err := SubmitEditRequest(ctx, db, paid, p, userID, 7, in)
		assert.ErrorIs(t, err, ErrEditRequestPending)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("pending withdrawal cannot be edited by the user", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectFeeLock(mock, "EDIT_1")
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE")).
			WillReturnRows(withdrawalRow(7, StatusPending, "40000", "500"))
		mock.ExpectRollback()

		_, err := SubmitEditRequest(ctx, db, paid, p, userID, 7, in)
		assert.ErrorIs(t, err, ErrNotProcessing)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reused fee reference", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectFeeLock(mock, "EDIT_1")
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE id = $1 AND user_id = $2 FOR UPDATE")).
			WillReturnRows(withdrawalRow(7, StatusProcessing, "40000", "500"))
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_edit_requests WHERE fee_reference = $1")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		_, err := SubmitEditRequest(ctx, db, paid, p, userID, 7, in)
		assert.ErrorIs(t, err, ErrEditFeeReused)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	rejections := []struct {
		name string
		v    payment.Verifier
		want error
	}{
		{"unpaid", &stubVerifier{ver: &payment.Verification{Status: "failed"}}, ErrEditFeeNotPaid},
		{"underpaid", &stubVerifier{ver: &payment.Verification{Status: "success", Amount: decimal.NewFromInt(500), UserID: userID, Purpose: payment.PurposeEditFee}}, ErrEditFeeTooSmall},
		{"someone else's payment", &stubVerifier{ver: &payment.Verification{Status: "success", Amount: decimal.NewFromInt(1000), UserID: adminID}}, payment.ErrReferenceOwner},
		{"deposit payment", &stubVerifier{ver: &payment.Verification{Status: "success", Amount: decimal.NewFromInt(1000), UserID: userID, Purpose: payment.PurposeDeposit}}, payment.ErrWrongPurpose},
		{"payment without checkout metadata", &stubVerifier{ver: &payment.Verification{Status: "success", Amount: decimal.NewFromInt(1000)}}, payment.ErrReferenceOwner},
		{"payment without a purpose", &stubVerifier{ver: &payment.Verification{Status: "success", Amount: decimal.NewFromInt(1000), UserID: userID}}, payment.ErrWrongPurpose},
		{"provider down", &stubVerifier{err: errors.New("dial tcp: timeout")}, payment.ErrProviderUnavailable},
		{"no provider", nil, payment.ErrProviderUnavailable},
	}
	for _, tc := range rejections {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)

			_, err := SubmitEditRequest(ctx, db, tc.v, p, userID, 7, in)
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestProcessEditRequest(t *testing.T) {
	ctx := context.Background()

	editRow := func(status string) *sqlmock.Rows {
		return sqlmock.NewRows(editCols).
			AddRow(3, 7, userID, "GTBank", "058", "0011223344", "Ada Obi", "1000", true, "EDIT_1", status, nil, nil, nil, now)
	}

	t.Run("approve copies bank details back to processing", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF w")).
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_edit_requests WHERE id = $1 FOR UPDATE")).
			WithArgs(int64(3)).
			WillReturnRows(editRow(EditPending))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE withdrawals SET bank_name = $2")).
			WithArgs(int64(7), "GTBank", "058", "0011223344", "Ada Obi", timeArg(now)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE withdrawal_edit_requests SET status = $2")).
			WithArgs(int64(3), EditApproved, adminID, timeArg(now), "").
			WillReturnRows(editRow(EditApproved))
		mock.ExpectCommit()

		r, err := ProcessEditRequest(ctx, db, ReviewRequest{AdminID: adminID, RequestID: 3, Approve: true}, now)
		require.NoError(t, err)
		assert.Equal(t, EditApproved, r.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reviewed request is closed", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF w")).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawal_edit_requests WHERE id = $1 FOR UPDATE")).
			WillReturnRows(editRow(EditRejected))
		mock.ExpectRollback()

		_, err := ProcessEditRequest(ctx, db, ReviewRequest{AdminID: adminID, RequestID: 3}, now)
		assert.ErrorIs(t, err, ErrEditRequestClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateDetails(t *testing.T) {
	ctx := context.Background()
	lockQuery := regexp.QuoteMeta("FROM withdrawals WHERE id = $1 FOR UPDATE")
	newBank := BankDetails{BankName: " GTBank ", BankCode: "058", AccountNumber: "9876543210", AccountName: "Ada Obi"}

	t.Run("pending withdrawal gets new details", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).WithArgs(int64(4)).WillReturnRows(withdrawalRow(4, StatusPending, "40000", "500"))
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE withdrawals SET bank_name = $2, bank_code = $3, account_number = $4, account_name = $5")).
			WithArgs(int64(4), "GTBank", "058", "9876543210", "Ada Obi").
			WillReturnRows(sqlmock.NewRows(withdrawalCols).
				AddRow(4, userID, "40000", "500", "GTBank", "058", "9876543210", "Ada Obi", StatusPending, nil, nil, nil, nil, now, now))
		mock.ExpectCommit()

		w, err := UpdateDetails(ctx, db, adminID, 4, newBank)
		require.NoError(t, err)
		assert.Equal(t, "GTBank", w.BankName)
		assert.Equal(t, "9876543210", w.AccountNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed withdrawal is final", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, true)
		mock.ExpectQuery(lockQuery).WillReturnRows(withdrawalRow(4, StatusCompleted, "40000", "500"))
		mock.ExpectRollback()

		_, err := UpdateDetails(ctx, db, adminID, 4, newBank)
		assert.ErrorIs(t, err, ErrFinalized)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-admin", func(t *testing.T) {
		db, mock := newMock(t)

		mock.ExpectBegin()
		expectAdmin(mock, false)
		mock.ExpectRollback()

		_, err := UpdateDetails(ctx, db, adminID, 4, newBank)
		assert.ErrorIs(t, err, errs.ErrNotAdmin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid account number never reaches the database", func(t *testing.T) {
		db, mock := newMock(t)

		bad := newBank
		bad.AccountNumber = "12345"
		_, err := UpdateDetails(ctx, db, adminID, 4, bad)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListForUser(t *testing.T) {
	db, mock := newMock(t)

	cols := append(append([]string{}, withdrawalCols...), "total_count")
	b := testBank()
	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE user_id = $1")).
		WithArgs(userID, 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(2, userID, "50000", "500", b.BankName, b.BankCode, b.AccountNumber, b.AccountName, StatusPending, nil, nil, nil, nil, now, now, 7).
			AddRow(1, userID, "30000", "500", b.BankName, b.BankCode, b.AccountNumber, b.AccountName, StatusCompleted, nil, nil, nil, nil, now, now, 7))

	list, total, err := ListForUser(context.Background(), db, userID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ID)
	assert.Equal(t, StatusCompleted, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllRejectsUnknownStatus(t *testing.T) {
	db, mock := newMock(t)

	_, _, err := ListAll(context.Background(), db, "paid", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetIsOwnerScoped(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM withdrawals WHERE id = $1 AND user_id = $2")).
		WithArgs(int64(9), userID).
		WillReturnRows(sqlmock.NewRows(withdrawalCols))

	_, err := Get(context.Background(), db, userID, 9)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
