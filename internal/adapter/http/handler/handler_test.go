package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"donation-payments/internal/adapter/http/middleware"
	"donation-payments/internal/core/domain"
	"donation-payments/internal/core/ports"
	"donation-payments/internal/core/ports/mocks"
	"donation-payments/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJSONContext(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		raw = b
	default:
		raw, _ = json.Marshal(b)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID := uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username:  "asha",
		Email:     "asha@example.com",
		Password:  "correct-horse",
		Password2: "correct-horse",
	}).Return(&domain.User{ID: userID, Username: "asha", Email: "asha@example.com"}, nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": " asha ", "email": "asha@example.com", "password": "correct-horse", "password2": "correct-horse",
	})
	h.Register(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, userID.String(), data["id"])
	assert.Equal(t, "asha", data["username"])
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, userID, c.MustGet(middleware.CtxAuditUserID))
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newJSONContext(http.MethodPost, "/api/v1/auth/register", []byte("{}"))
	h.Register(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VAL_001")
}

func TestRegister_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	c, w := newJSONContext(http.MethodPost, "/", map[string]string{
		"username": "taken", "password": "password123", "password2": "password123",
	})
	h.Register(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	user := &domain.User{ID: uuid.New(), Username: "asha"}
	expiry := time.Now().Add(time.Hour)
	mockAuth.EXPECT().Login(gomock.Any(), "asha", "correct-horse").
		Return(&ports.LoginResult{Token: "jwt", Expiry: expiry, User: user}, nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "asha", "password": "correct-horse",
	})
	h.Login(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "jwt", data["access_token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
	assert.Equal(t, "asha", data["user"].(map[string]any)["username"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "asha", "wrong").Return(nil, apperror.ErrInvalidCredentials())

	c, w := newJSONContext(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "asha", "password": "wrong",
	})
	h.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAndMe_RequirePrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	c, w := newJSONContext(http.MethodPost, "/api/v1/auth/logout", nil)
	h.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newJSONContext(http.MethodGet, "/api/v1/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Payment Handler Tests ---

func TestCreateIntent_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPayment := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPayment, "pk_test_1")

	userID, donationID, paymentID := uuid.New(), uuid.New(), uuid.New()
	mockPayment.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreateIntentRequest) (*ports.CreateIntentResult, error) {
			assert.Equal(t, donationID, req.DonationID)
			require.NotNil(t, req.UserID)
			assert.Equal(t, userID, *req.UserID)
			return &ports.CreateIntentResult{PaymentID: paymentID, ClientSecret: "pi_1_secret", Amount: decimal.NewFromInt(250), Currency: "inr"}, nil
		})

	c, w := newJSONContext(http.MethodPost, "/api/v1/payments/create-intent", map[string]string{"donation_id": donationID.String()})
	c.Set(middleware.CtxPrincipal, &ports.Principal{UserID: userID})
	h.CreateIntent(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "pi_1_secret", data["clientSecret"])
	assert.Equal(t, paymentID.String(), data["paymentId"])
	assert.Equal(t, paymentID.String(), c.GetString(middleware.CtxAuditResourceID))
}

func TestCreateIntent_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewPaymentHandler(mocks.NewMockPaymentService(ctrl), "")

	for _, body := range []any{[]byte("{}"), map[string]string{"donation_id": "42"}, []byte("not json")} {
		c, w := newJSONContext(http.MethodPost, "/api/v1/payments/create-intent", body)
		c.Set(middleware.CtxPrincipal, &ports.Principal{UserID: uuid.New()})
		h.CreateIntent(c)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VAL_001")
	}
}

func TestCreateIntent_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"donation not found", apperror.ErrNotFound("Donation"), http.StatusNotFound},
		{"provider failure", apperror.ErrProvider(errors.New("timeout")), http.StatusBadGateway},
		{"database failure", apperror.ErrDatabaseError(errors.New("down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockPayment := mocks.NewMockPaymentService(ctrl)
			h := NewPaymentHandler(mockPayment, "")
			mockPayment.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newJSONContext(http.MethodPost, "/api/v1/payments/create-intent", map[string]string{"donation_id": uuid.NewString()})
			c.Set(middleware.CtxPrincipal, &ports.Principal{UserID: uuid.New()})
			h.CreateIntent(c)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestMyDonations(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPayment := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPayment, "")
	userID := uuid.New()

	mockPayment.EXPECT().ListMyDonations(gomock.Any(), userID).Return([]domain.PaymentSummary{{
		ID:            uuid.New(),
		DonationTitle: "School books",
		Amount:        decimal.RequireFromString("250"),
		Currency:      "inr",
		Status:        domain.PaymentStatusSucceeded,
		CreatedAt:     time.Now(),
	}}, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/payments/my-donations", nil)
	c.Set(middleware.CtxPrincipal, &ports.Principal{UserID: userID})
	h.MyDonations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	items := decodeData(t, w)["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "School books", item["donation_title"])
	assert.Equal(t, "250.00", item["amount"])
	assert.Equal(t, "succeeded", item["status"])
}

func TestMyDonations_EmptyIsList(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockPayment := mocks.NewMockPaymentService(ctrl)
	h := NewPaymentHandler(mockPayment, "")

	mockPayment.EXPECT().ListMyDonations(gomock.Any(), gomock.Any()).Return(nil, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/payments/my-donations", nil)
	c.Set(middleware.CtxPrincipal, &ports.Principal{UserID: uuid.New()})
	h.MyDonations(c)

	assert.JSONEq(t, `[]`, mustMarshal(t, decodeData(t, w)["items"]))
}

func TestPublishableKey(t *testing.T) {
	h := NewPaymentHandler(nil, "pk_test_abc")
	c, w := newJSONContext(http.MethodGet, "/api/v1/payments/stripe/publishable-key", nil)
	h.PublishableKey(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pk_test_abc", decodeData(t, w)["publishableKey"])
}

// --- Webhook Handler Tests ---

func TestWebhook_PassesRawBodyAndHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := mocks.NewMockReconcilerService(ctrl)
	h := NewWebhookHandler(reconciler, zerolog.Nop())
	body := []byte(`{"id":"evt_1",  "type":"payment_intent.succeeded"}`)

	reconciler.EXPECT().HandleWebhook(gomock.Any(), body, "t=1,v1=abc").
		Return(&ports.WebhookResult{EventID: "evt_1", Outcome: ports.WebhookOutcomeApplied}, nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/payments/webhook", body)
	c.Request.Header.Set(HeaderStripeSignature, "t=1,v1=abc")
	h.Handle(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWebhook_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing signature", apperror.ErrMissingSignature(), http.StatusBadRequest},
		{"bad signature", apperror.ErrInvalidSignature(errors.New("no match")), http.StatusBadRequest},
		{"database down", apperror.ErrDatabaseError(errors.New("down")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			reconciler := mocks.NewMockReconcilerService(ctrl)
			h := NewWebhookHandler(reconciler, zerolog.Nop())
			reconciler.EXPECT().HandleWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			c, w := newJSONContext(http.MethodPost, "/api/v1/payments/webhook", []byte(`{}`))
			h.Handle(c)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// --- Catalog Handler Tests ---

func TestListCategories(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogService(ctrl)
	h := NewCatalogHandler(catalog)

	catalog.EXPECT().ListCategories(gomock.Any()).Return([]domain.Category{{
		ID:        uuid.New(),
		Name:      "Education",
		Donations: []domain.Donation{{ID: uuid.New(), Title: "Books", Amount: decimal.NewFromInt(100), IsActive: true}},
	}}, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/categories", nil)
	h.ListCategories(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []struct {
			Name      string `json:"name"`
			Donations []struct {
				Amount string `json:"amount"`
			} `json:"donations"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Education", resp.Data[0].Name)
	assert.Equal(t, "100.00", resp.Data[0].Donations[0].Amount)
}

func TestGetDonation(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogService(ctrl)
	h := NewCatalogHandler(catalog)
	id := uuid.New()

	catalog.EXPECT().GetDonation(gomock.Any(), id).Return(&domain.Donation{ID: id, Title: "Books", Amount: decimal.NewFromInt(5)}, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/donations/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.GetDonation(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Books", decodeData(t, w)["title"])

	c, w = newJSONContext(http.MethodGet, "/api/v1/donations/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.GetDonation(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Admin Handler Tests ---

func TestAdmin_MarkRefunded(t *testing.T) {
	ctrl := gomock.NewController(t)
	payments := mocks.NewMockPaymentService(ctrl)
	h := NewAdminHandler(payments, nil, nil)
	a, b := uuid.New(), uuid.New()

	payments.EXPECT().MarkRefunded(gomock.Any(), []uuid.UUID{a, b}).Return(int64(1), nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/admin/payments/mark-refunded", map[string][]string{"ids": {a.String(), b.String()}})
	h.MarkRefunded(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeData(t, w)["updated"])
}

func TestAdmin_MarkRefunded_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAdminHandler(mocks.NewMockPaymentService(ctrl), nil, nil)

	c, w := newJSONContext(http.MethodPost, "/api/v1/admin/payments/mark-refunded", map[string][]string{"ids": {}})
	h.MarkRefunded(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_ReplaceDonationImage(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogService(ctrl)
	h := NewAdminHandler(nil, catalog, nil)
	id := uuid.New()
	key := "donations/new.png"

	catalog.EXPECT().ReplaceDonationImage(gomock.Any(), id, &key).Return(&domain.Donation{ID: id, ImageKey: &key}, nil)

	c, w := newJSONContext(http.MethodPut, "/api/v1/admin/donations/"+id.String()+"/image", map[string]string{"image_key": "donations/new.png"})
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.ReplaceDonationImage(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, key, decodeData(t, w)["image_key"])
}

func TestAdmin_ListStripeEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	reconciler := mocks.NewMockReconcilerService(ctrl)
	h := NewAdminHandler(nil, nil, reconciler)
	intent := "pi_1"

	reconciler.EXPECT().ListEvents(gomock.Any(), ports.StripeEventFilter{EventType: "charge.refunded", Limit: 5}).
		Return([]domain.StripeEvent{{EventID: "evt_1", EventType: "charge.refunded", PaymentIntentID: &intent}}, nil)

	c, w := newJSONContext(http.MethodGet, "/api/v1/admin/stripe-events?event_type=charge.refunded&limit=5", nil)
	h.ListStripeEvents(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evt_1")

	c, w = newJSONContext(http.MethodGet, "/api/v1/admin/stripe-events?limit=zero", nil)
	h.ListStripeEvents(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health ---

func TestHealthCheck(t *testing.T) {
	c, w := newJSONContext(http.MethodGet, "/health", nil)
	HealthCheck(staticChecker{name: "postgresql"}, staticChecker{name: "redis"})(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	c, w = newJSONContext(http.MethodGet, "/health", nil)
	HealthCheck(staticChecker{name: "postgresql"}, staticChecker{name: "redis", err: errors.New("refused")})(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
