package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"08031234567", "2348031234567", true},
		{"+234 803 123 4567", "2348031234567", true},
		{"2349061234567", "2349061234567", true},
		{"7011234567", "2347011234567", true},
		{"0803123456", "", false},
		{"06031234567", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestSendSMS(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var body sendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2348031234567", body.To)
		assert.Equal(t, "key-1", body.APIKey)
		assert.Equal(t, "PlayEarn", body.From)
		w.Write([]byte(`{"message_id":"msg-42","message":"Successfully Sent"}`))
	}))
	defer srv.Close()

	rdb, rmock := redismock.NewClientMock()
	rmock.ExpectSetNX("sms_rate:2348031234567", "1", 30*time.Second).SetVal(true)

	c := &Client{
		baseURL:          srv.URL,
		apiKey:           "key-1",
		senderID:         "PlayEarn",
		rdb:              rdb,
		httpClient:       srv.Client(),
		rateLimitSeconds: 30,
	}

	id, err := c.SendSMS(context.Background(), "0803 123 4567", "Your withdrawal was approved")
	require.NoError(t, err)
	assert.Equal(t, "msg-42", id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestSendSMSRateLimited(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	rmock.ExpectSetNX("sms_rate:2348031234567", "1", 30*time.Second).SetVal(false)

	c := &Client{rdb: rdb, rateLimitSeconds: 30, mock: true}
	_, err := c.SendSMS(context.Background(), "08031234567", "hello")
	assert.ErrorContains(t, err, "rate limited")
}

func TestNilClient(t *testing.T) {
	var c *Client
	_, err := c.SendSMS(context.Background(), "08031234567", "hello")
	assert.Error(t, err)
}
