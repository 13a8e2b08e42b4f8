// Package auth issues and validates sessions and owns the one-time tokens used
// for password reset and email verification.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/errs"
	"github.com/playearn/backend/internal/models"
	"github.com/playearn/backend/internal/sms"
	"github.com/playearn/backend/internal/validation"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidSignUp      = errs.Validation("invalid_signup", "please check the highlighted fields")
	ErrEmailTaken         = errs.Validation("email_taken", "an account with this email already exists")
	ErrInvalidReferral    = errs.Validation("invalid_referral_code", "referral code not found")
	ErrWeakPassword       = errs.Validation("weak_password", "password must be between 8 and 72 characters")
	ErrInvalidCredentials = errs.New(errs.KindUnauthenticated, "invalid_credentials", "invalid email or password")
	ErrInvalidToken       = errs.New(errs.KindUnauthenticated, "invalid_token", "invalid or expired session")
	ErrInvalidLink        = errs.Validation("invalid_link", "this link is invalid or has expired")
)

const (
	resetTTL  = 30 * time.Minute
	verifyTTL = 24 * time.Hour
)

// Claims are the JWT claims of a session token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Session is returned by sign-up and sign-in.
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
	IsAdmin   bool            `json:"is_admin"`
}

// Service holds the dependencies of the identity operations.
type Service struct {
	db     *sqlx.DB
	rdb    *redis.Client
	secret []byte
	expiry time.Duration
	mock   bool

	frontendURL string
}

func NewService(db *sqlx.DB, rdb *redis.Client, cfg *config.Config) *Service {
	hours := cfg.JWTExpiryHours
	if hours <= 0 {
		hours = 24
	}
	return &Service{
		db:     db,
		rdb:    rdb,
		secret: []byte(cfg.JWTSecret),
		expiry: time.Duration(hours) * time.Hour,
		mock:   cfg.MockMode,

		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// SignUpInput is the registration form.
type SignUpInput struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	FullName     string `json:"full_name" validate:"required,min=2,max=100"`
	Phone        string `json:"phone" validate:"required"`
	ReferralCode string `json:"referral_code,omitempty" validate:"omitempty,max=16"`
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// SignUp creates a profile on the free trial plan and links the referrer when
// a referral code is given.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	in.ReferralCode = strings.ToUpper(strings.TrimSpace(in.ReferralCode))
	if err := validation.Struct(in, ErrInvalidSignUp); err != nil {
		return nil, err
	}
	phone, err := sms.NormalizePhone(in.Phone)
	if err != nil {
		return nil, ErrInvalidSignUp.WithDetails(map[string]string{"phone": "must be a valid Nigerian mobile number"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var taken bool
	if err := tx.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM profiles WHERE email = $1)`, in.Email); err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	var referrerID *string
	if in.ReferralCode != "" {
		var id string
		err := tx.GetContext(ctx, &id, `SELECT id FROM profiles WHERE referral_code = $1`, in.ReferralCode)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidReferral
		}
		if err != nil {
			return nil, err
		}
		referrerID = &id
	}

	var p models.Profile
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO profiles (email, password_hash, full_name, phone, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+models.ProfileColumns,
		in.Email, string(hash), in.FullName, phone, newReferralCode(), referrerID).StructScan(&p)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if referrerID != nil {
		if _, err := tx.ExecContext(ctx, `INSERT INTO referrals (referrer_id, referred_id) VALUES ($1, $2)`, *referrerID, p.ID); err != nil {
			return nil, fmt.Errorf("insert referral: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	log.Printf("[AUTH] New user %s (%s) referred_by=%v", p.ID, p.Email, referrerID != nil)

	if _, err := s.issueOneTimeToken(ctx, "verify_email", p.ID, verifyTTL); err != nil {
		log.Printf("[AUTH] Failed to create verification token for %s: %v", p.ID, err)
	}

	return s.newSession(ctx, &p)
}

// SignIn checks the password and issues a session. Banned users are refused.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var p models.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+models.ProfileColumns+` FROM profiles WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if p.IsBanned {
		return nil, errs.ErrUserBanned
	}
	return s.newSession(ctx, &p)
}

func (s *Service) newSession(ctx context.Context, p *models.Profile) (*Session, error) {
	token, exp, err := s.IssueToken(p.ID, p.Email, time.Now())
	if err != nil {
		return nil, err
	}
	isAdmin, err := admin.IsAdmin(ctx, s.db, p.ID)
	if err != nil {
		log.Printf("[AUTH] Roster lookup failed for %s: %v", p.ID, err)
	}
	return &Session{Token: token, ExpiresAt: exp, Profile: p, IsAdmin: isAdmin}, nil
}

// IssueToken signs an HS256 session token for userID.
func (s *Service) IssueToken(userID, email string, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.expiry)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func blacklistKey(token string) string {
	return "blacklist:" + hashToken(token)
}

// Authenticate validates a bearer token and rejects signed-out tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	if s.rdb != nil {
		n, err := s.rdb.Exists(ctx, blacklistKey(token)).Result()
		if err != nil {
			log.Printf("[AUTH] Blacklist check failed: %v", err)
		} else if n > 0 {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

// SignOut blacklists token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 || s.rdb == nil {
		return nil
	}
	return s.rdb.Set(ctx, blacklistKey(token), claims.UserID, ttl).Err()
}

// Profile returns the profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := s.db.GetContext(ctx, &p, `SELECT `+models.ProfileColumns+` FROM profiles WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("profile_not_found", "user not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) issueOneTimeToken(ctx context.Context, purpose, userID string, ttl time.Duration) (string, error) {
	if s.rdb == nil {
		return "", errors.New("redis not configured")
	}
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, purpose+":"+hashToken(token), userID, ttl).Err(); err != nil {
		return "", err
	}
	if s.mock {
		log.Printf("[AUTH] MOCK %s token for %s: %s", purpose, userID, token)
	}
	return token, nil
}

// consumeOneTimeToken returns the user the token was issued to and deletes it.
func (s *Service) consumeOneTimeToken(ctx context.Context, purpose, token string) (string, error) {
	if s.rdb == nil || strings.TrimSpace(token) == "" {
		return "", ErrInvalidLink
	}
	key := purpose + ":" + hashToken(strings.TrimSpace(token))
	userID, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidLink
	}
	if err != nil {
		return "", err
	}
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrInvalidLink
	}
	return userID, nil
}

type contact struct {
	ID            string `db:"id"`
	Phone         string `db:"phone"`
	EmailVerified bool   `db:"email_verified"`
}

func (s *Service) lookupContact(ctx context.Context, email string) (*contact, error) {
	var c contact
	err := s.db.GetContext(ctx, &c, `SELECT id, phone, email_verified FROM profiles WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &c, err
}

// RequestPasswordReset sends a reset code when the email is known. Unknown
// emails succeed silently. The raw token is returned for delivery by the caller.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	c, err := s.lookupContact(ctx, email)
	if err != nil || c == nil {
		return "", err
	}
	token, err := s.issueOneTimeToken(ctx, "pwreset", c.ID, resetTTL)
	if err != nil {
		return "", err
	}
	sms.Notify(c.Phone, fmt.Sprintf("Reset your password: %s/reset-password?token=%s (expires in 30 minutes)", s.frontendURL, token))
	log.Printf("[AUTH] Password reset requested for %s", c.ID)
	return token, nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 || len(newPassword) > 72 {
		return ErrWeakPassword
	}
	userID, err := s.consumeOneTimeToken(ctx, "pwreset", token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE profiles SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, string(hash)); err != nil {
		return err
	}
	log.Printf("[AUTH] Password reset completed for %s", userID)
	return nil
}

// ResendVerification issues a fresh verification token for an unverified email.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	c, err := s.lookupContact(ctx, email)
	if err != nil || c == nil || c.EmailVerified {
		return "", err
	}
	return s.issueOneTimeToken(ctx, "verify_email", c.ID, verifyTTL)
}

// VerifyEmail consumes a verification token and marks the email verified.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	userID, err := s.consumeOneTimeToken(ctx, "verify_email", token)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE profiles SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	return err
}
