package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/playearn/backend/internal/config"
	"github.com/redis/go-redis/v9"
)

// Client is a minimal SMS gateway client authenticated by API key.
type Client struct {
	baseURL          string
	apiKey           string
	senderID         string
	rdb              *redis.Client
	httpClient       *http.Client
	rateLimitSeconds int
	mock             bool
}

// Default package-level client (set from main on startup)
var Default *Client

// SetDefault sets the package Default client.
func SetDefault(c *Client) {
	Default = c
}

// NewClient constructs a gateway client. Returns nil if not configured, unless
// mock mode is on, in which case messages are only logged.
func NewClient(cfg *config.Config, rdb *redis.Client) *Client {
	if cfg == nil {
		return nil
	}
	if cfg.MockMode {
		return &Client{rdb: rdb, rateLimitSeconds: cfg.SMSRateLimitSeconds, mock: true}
	}
	if cfg.SMSBaseURL == "" || cfg.SMSAPIKey == "" {
		return nil
	}

	return &Client{
		baseURL:          strings.TrimRight(cfg.SMSBaseURL, "/"),
		apiKey:           cfg.SMSAPIKey,
		senderID:         cfg.SMSSenderID,
		rdb:              rdb,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		rateLimitSeconds: cfg.SMSRateLimitSeconds,
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	SMS     string `json:"sms"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	APIKey  string `json:"api_key"`
}

// SendSMS sends a single SMS to the given phone number.
// Returns a provider message id (if available) and an error if the operation definitively failed.
func (c *Client) SendSMS(ctx context.Context, phone string, message string) (string, error) {
	if c == nil {
		return "", errors.New("sms client not configured")
	}

	to, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	// Rate limit per phone
	if c.rdb != nil && c.rateLimitSeconds > 0 {
		key := fmt.Sprintf("sms_rate:%s", to)
		ok, err := c.rdb.SetNX(ctx, key, "1", time.Duration(c.rateLimitSeconds)*time.Second).Result()
		if err == nil && !ok {
			return "", fmt.Errorf("rate limited: %s", to)
		}
		// ignore Redis errors and proceed
	}

	if c.mock {
		log.Printf("[SMS] MOCK to=%s msg=%q", to, message)
		return "mock", nil
	}

	b, _ := json.Marshal(sendRequest{
		To:      to,
		From:    c.senderID,
		SMS:     message,
		Type:    "plain",
		Channel: "generic",
		APIKey:  c.apiKey,
	})

	// Retry loop for transient errors
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sms/send", strings.NewReader(string(b)))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < 2 {
				time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
				continue
			}
			break
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			var parsed struct {
				MessageID string `json:"message_id"`
			}
			if err := json.Unmarshal(body, &parsed); err == nil {
				return parsed.MessageID, nil
			}
			return "", nil
		}

		// For 5xx transient errors retry
		if resp.StatusCode >= 500 && attempt < 2 {
			lastErr = fmt.Errorf("sms provider error %d: %s", resp.StatusCode, string(body))
			time.Sleep(time.Duration(100+attempt*200) * time.Millisecond)
			continue
		}

		// 4xx or exhausted retries
		return "", fmt.Errorf("sms send failed: %d %s", resp.StatusCode, string(body))
	}

	if lastErr != nil {
		return "", lastErr
	}
	return "", errors.New("sms send failed")
}

// SendSMS sends an SMS using the package Default client (if set)
func SendSMS(ctx context.Context, phone, message string) (string, error) {
	if Default == nil {
		return "", errors.New("sms not configured")
	}
	return Default.SendSMS(ctx, phone, message)
}

// Notify sends best-effort in the background; failures are only logged.
func Notify(phone, message string) {
	if Default == nil || phone == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := Default.SendSMS(ctx, phone, message); err != nil {
			log.Printf("[SMS] Failed to send to %s: %v", phone, err)
		}
	}()
}
