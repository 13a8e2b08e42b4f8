package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/jmoiron/sqlx"
	"github.com/playearn/backend/internal/auth"
	"github.com/playearn/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuth map[string]string

func (f fakeAuth) Authenticate(_ context.Context, token string) (*auth.Claims, error) {
	uid, ok := f[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{UserID: uid, Email: uid + "@example.com"}, nil
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func echoUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(KeyUserID), "admin_id": c.GetString(KeyAdminID)})
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthMiddleware(fakeAuth{"good": "u1"}), echoUser)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "unauthenticated"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "unauthenticated"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, "invalid_token"},
		{"valid", "Bearer good", http.StatusOK, ""},
		{"case insensitive scheme", "bearer good", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["error"])
			} else {
				assert.Equal(t, "u1", body["user_id"])
			}
		})
	}
}

func TestBearerTokenQueryOnlyForUpgrades(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	assert.Equal(t, "", BearerToken(c))

	c.Request.Header.Set("Connection", "Upgrade")
	c.Request.Header.Set("Upgrade", "websocket")
	assert.Equal(t, "abc", BearerToken(c))
}

func TestRequireAdmin(t *testing.T) {
	db, mock := newMock(t)
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set(KeyUserID, c.Query("as")) }, RequireAdmin(db), echoUser)
	roster := regexp.QuoteMeta("FROM admin_users WHERE user_id = $1")

	mock.ExpectQuery(roster).WithArgs("boss").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?as=boss", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "boss", decode(t, w)["admin_id"])

	mock.ExpectQuery(roster).WithArgs("pleb").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin?as=pleb", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_admin", decode(t, w)["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintenanceGate(t *testing.T) {
	db, mock := newMock(t)
	rdb, rmock := redismock.NewClientMock()
	cfg := &config.Config{}
	cfg.SetPolicy(config.Policy{MaintenanceMessage: "default"})

	r := gin.New()
	r.GET("/wallet", func(c *gin.Context) { c.Set(KeyUserID, c.Query("as")) }, MaintenanceGate(db, rdb, cfg), echoUser)
	roster := regexp.QuoteMeta("FROM admin_users WHERE user_id = $1")

	rmock.ExpectGet("maintenance:state").SetVal(`{"enabled":false,"message":"default"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet?as=u1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	rmock.ExpectGet("maintenance:state").SetVal(`{"enabled":true,"message":"Back at 6pm"}`)
	mock.ExpectQuery(roster).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet?as=u1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "maintenance", body["error"])
	assert.Equal(t, "Back at 6pm", body["message"])

	rmock.ExpectGet("maintenance:state").SetVal(`{"enabled":true,"message":"Back at 6pm"}`)
	mock.ExpectQuery(roster).WithArgs("boss").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet?as=boss", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestRejectBanned(t *testing.T) {
	db, mock := newMock(t)
	rdb, rmock := redismock.NewClientMock()

	r := gin.New()
	r.POST("/store", func(c *gin.Context) { c.Set(KeyUserID, c.Query("as")) }, RejectBanned(db, rdb), echoUser)
	lookup := regexp.QuoteMeta("SELECT is_banned FROM profiles WHERE id = $1")

	// banned after sign-in: cache miss goes to the database
	rmock.ExpectGet("ban_state:u1").RedisNil()
	mock.ExpectQuery(lookup).WithArgs("u1").WillReturnRows(sqlmock.NewRows([]string{"is_banned"}).AddRow(true))
	rmock.ExpectSet("ban_state:u1", "1", time.Minute).SetVal("OK")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/store?as=u1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "user_banned", decode(t, w)["error"])

	// cached flag answers without the database
	rmock.ExpectGet("ban_state:u2").SetVal("0")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/store?as=u2", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, rmock.ExpectationsWereMet())
}
