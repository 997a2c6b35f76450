package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"estate-commission/internal/adapters/http/middleware"
	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/config"
	"estate-commission/internal/core/services"
	"estate-commission/internal/pkg/mailer"
	"estate-commission/internal/pkg/password"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type page struct {
	Data json.RawMessage `json:"data"`
	Meta struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func newTestApp(t *testing.T) (*fiber.App, *outbox) {
	t.Helper()
	password.Cost = bcrypt.MinCost
	t.Cleanup(func() { password.Cost = password.DefaultCost })

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.AutoMigrate(db))

	cfg := &config.Config{
		AppMode:    "dev",
		JWT:        config.JWTConfig{Secret: "routes-test", AccessTokenMins: 15},
		Commission: config.DefaultCommissionConfig(),
		Voucher: config.VoucherConfig{
			Prefix:       "PV",
			AutoGenerate: true,
			AutoEmail:    true,
			Template:     "plain",
			CompanyName:  "Test Realty",
		},
		Notification: config.NotificationConfig{TTL: 24 * time.Hour},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, config.NewSeeder(db, cfg, log).Run())

	box := &outbox{}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler(log)})
	Setup(app, services.NewServices(db, cfg, box, nil, log), cfg)
	return app, box
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func login(t *testing.T, app *fiber.App, username, pass string) string {
	t.Helper()
	status, env := call(t, app, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"username": username, "password": pass})
	require.Equal(t, http.StatusOK, status, env.Error)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out.AccessToken
}

func decodeID(t *testing.T, raw json.RawMessage, path ...string) uint {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &obj))
	for _, key := range path {
		var next map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(obj[key], &next))
		obj = next
	}
	var id uint
	require.NoError(t, json.Unmarshal(obj["id"], &id))
	return id
}

func TestCommissionFlow(t *testing.T) {
	app, box := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/agents", "", fiber.Map{})
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := login(t, app, "admin", "admin123456")

	// Hierarchy: seller under upline
	status, env := call(t, app, http.MethodPost, "/api/v1/agents", admin, fiber.Map{"code": "UP", "full_name": "Upline"})
	require.Equal(t, http.StatusCreated, status, env.Error)
	uplineID := decodeID(t, env.Data, "agent")

	status, env = call(t, app, http.MethodPost, "/api/v1/agents", admin, fiber.Map{
		"code":             "SELL",
		"full_name":        "Seller",
		"email":            "seller@estate.test",
		"direct_upline_id": uplineID,
		"username":         "seller",
		"password":         "password123",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	sellerID := decodeID(t, env.Data, "agent")

	seller := login(t, app, "seller", "password123")

	status, _ = call(t, app, http.MethodPost, "/api/v1/agents", seller, fiber.Map{"code": "X", "full_name": "X"})
	assert.Equal(t, http.StatusForbidden, status)

	// Listing lifecycle
	status, env = call(t, app, http.MethodPost, "/api/v1/submissions", seller, fiber.Map{
		"customer_name":    "Somsak",
		"property_address": "12 Silom Rd",
		"kind":             "sale",
		"price":            "200000",
	})
	require.Equal(t, http.StatusCreated, status, env.Error)
	subID := decodeID(t, env.Data)

	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/submit", subID), seller, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, _ = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/approve", subID), seller, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/approve", subID), admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var approval struct {
		Distribution struct {
			Records []struct {
				ShareType string          `json:"share_type"`
				Amount    decimal.Decimal `json:"amount"`
			} `json:"records"`
		} `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &approval))
	assert.Len(t, approval.Distribution.Records, 2)

	// Distributing again answers with the existing rows
	status, env = call(t, app, http.MethodPost, fmt.Sprintf("/api/v1/submissions/%d/distribute", subID), admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, "Commission already distributed", env.Message)

	// The seller sees only their own share
	status, env = call(t, app, http.MethodGet, "/api/v1/payables", seller, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var payables page
	require.NoError(t, json.Unmarshal(env.Data, &payables))
	assert.Equal(t, int64(1), payables.Meta.Total)
	var rows []struct {
		ID     uint            `json:"id"`
		Amount decimal.Decimal `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(payables.Data, &rows))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Amount.Equal(decimal.NewFromInt(5700)))
	payableID := rows[0].ID

	// Payment
	markPaid := fmt.Sprintf("/api/v1/payables/%d/mark-paid", payableID)
	status, _ = call(t, app, http.MethodPost, markPaid, admin, fiber.Map{"payment_method": "barter"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = call(t, app, http.MethodPost, markPaid, admin, fiber.Map{"payment_method": "bank_transfer", "transaction_ref": "TRX-1"})
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Len(t, box.sent, 1)

	status, _ = call(t, app, http.MethodPost, markPaid, admin, fiber.Map{"payment_method": "bank_transfer"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, env = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/payables/%d/voucher", payableID), seller, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var voucher struct {
		Number string `json:"number"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &voucher))
	assert.Regexp(t, `^PV-\d{8}-[0-9A-F]{8}$`, voucher.Number)

	status, env = call(t, app, http.MethodGet, fmt.Sprintf("/api/v1/agents/%d/summary", sellerID), seller, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var summary services.CommissionSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.True(t, summary.PaidTotal.Equal(decimal.NewFromInt(5700)))

	status, _ = call(t, app, http.MethodGet, "/api/v1/dashboard", seller, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, env = call(t, app, http.MethodGet, "/api/v1/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = call(t, app, http.MethodGet, "/api/v1/notifications", seller, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var inbox page
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	assert.Equal(t, int64(3), inbox.Meta.Total, "documents_incomplete, submission_approved, payable_paid")
}

func TestRequestErrors(t *testing.T) {
	app, _ := newTestApp(t)
	admin := login(t, app, "admin", "admin123456")

	status, _ := call(t, app, http.MethodPost, "/api/v1/auth/login", "", fiber.Map{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/agents/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/agents/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/agents", admin, fiber.Map{"full_name": "No code"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodPost, "/api/v1/payables/batch-mark-paid", admin, fiber.Map{"ids": []uint{}, "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/nowhere", admin, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/agents/1", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPut, "/api/v1/users/me/password", admin, fiber.Map{"old_password": "admin123456", "new_password": "short"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, env := call(t, app, http.MethodPut, "/api/v1/users/me/password", admin, fiber.Map{"old_password": "admin123456", "new_password": "a-longer-secret"})
	require.Equal(t, http.StatusOK, status, env.Error)
	login(t, app, "admin", "a-longer-secret")
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodGet, "/api/v1/", "", nil)
	assert.Equal(t, http.StatusOK, status)

	// The global connection is never opened here
	status, _ = call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}
