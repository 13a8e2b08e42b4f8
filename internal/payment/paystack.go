package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playearn/backend/internal/config"
	"github.com/shopspring/decimal"
)

// payment purposes carried in checkout metadata
const (
	PurposeDeposit = "deposit"
	PurposeEditFee = "edit_fee"
)

// Verification is the provider's view of one checkout reference, amounts in Naira.
type Verification struct {
	Reference       string
	Status          string
	Amount          decimal.Decimal
	Currency        string
	GatewayResponse string
	Message         string
	PaidAt          *time.Time
	Email           string
	UserID          string
	Purpose         string
}

// Succeeded reports whether the provider settled the charge.
func (v *Verification) Succeeded() bool {
	return v != nil && v.Status == "success"
}

// Verifier re-confirms a client-reported checkout reference with the provider.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// Client is a minimal Paystack API client.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewClient constructs a Paystack client. Returns nil if not configured.
func NewClient(cfg *config.Config) *Client {
	if cfg == nil || cfg.PaystackSecretKey == "" {
		return nil
	}
	timeout := time.Duration(cfg.PaystackTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.PaystackBaseURL, "/"),
		secretKey:  cfg.PaystackSecretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference       string          `json:"reference"`
		Status          string          `json:"status"`
		Amount          int64           `json:"amount"`
		Currency        string          `json:"currency"`
		GatewayResponse string          `json:"gateway_response"`
		PaidAt          *time.Time      `json:"paid_at"`
		Metadata        json.RawMessage `json:"metadata"`
		Customer        struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

type checkoutMetadata struct {
	UserID  string `json:"user_id"`
	Purpose string `json:"purpose"`
}

// Verify calls GET /transaction/verify/:reference. Transport errors and 5xx
// responses are retried up to three times; any other non-200 is final.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if c == nil {
		return nil, errors.New("paystack client not configured")
	}
	if reference == "" {
		return nil, errors.New("reference is required")
	}

	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(100+attempt*200) * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("paystack error %d: %s", resp.StatusCode, string(body))
			continue
		}

		var parsed verifyResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode verify response: %w", err)
		}
		if resp.StatusCode != http.StatusOK || !parsed.Status {
			msg := parsed.Message
			if msg == "" {
				msg = fmt.Sprintf("verification failed with status %d", resp.StatusCode)
			}
			return &Verification{Reference: reference, Status: "failed", Message: msg}, nil
		}

		return toVerification(parsed), nil
	}

	log.Printf("[PAYMENT] Verify %s exhausted retries: %v", reference, lastErr)
	return nil, lastErr
}

func toVerification(r verifyResponse) *Verification {
	v := &Verification{
		Reference:       r.Data.Reference,
		Status:          r.Data.Status,
		Amount:          KoboToNaira(r.Data.Amount),
		Currency:        r.Data.Currency,
		GatewayResponse: r.Data.GatewayResponse,
		Message:         r.Message,
		PaidAt:          r.Data.PaidAt,
		Email:           r.Data.Customer.Email,
	}
	// metadata may be an object, an empty string or absent
	var meta checkoutMetadata
	if len(r.Data.Metadata) > 0 && json.Unmarshal(r.Data.Metadata, &meta) == nil {
		v.UserID = meta.UserID
		v.Purpose = meta.Purpose
	}
	return v
}

// KoboToNaira converts the provider's minor unit.
func KoboToNaira(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// NairaToKobo converts to the provider's minor unit, truncating sub-kobo digits.
func NairaToKobo(naira decimal.Decimal) int64 {
	return naira.Shift(2).IntPart()
}

// ValidSignature checks the x-paystack-signature header: hex HMAC-SHA512 of the
// raw body keyed with the secret key.
func ValidSignature(secretKey string, body []byte, signature string) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// WebhookEvent is the envelope Paystack posts to the webhook URL.
type WebhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseChargeEvent decodes a charge.* webhook into a Verification.
func ParseChargeEvent(body []byte) (string, *Verification, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", nil, err
	}
	var wrapped verifyResponse
	wrapped.Status = true
	if err := json.Unmarshal(ev.Data, &wrapped.Data); err != nil {
		return ev.Event, nil, err
	}
	return ev.Event, toVerification(wrapped), nil
}
