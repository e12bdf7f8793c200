package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lc-billing-api/internal/dto"
	"github.com/noah-isme/lc-billing-api/internal/middleware"
	"github.com/noah-isme/lc-billing-api/internal/models"
	appErrors "github.com/noah-isme/lc-billing-api/pkg/errors"
)

type fakePaymentSrv struct {
	payment *models.Payment
	receipt *models.PaymentReceipt
	err     error

	lastPartial struct {
		id     string
		amount decimal.Decimal
		actor  string
	}
}

func (f *fakePaymentSrv) Get(context.Context, string) (*models.Payment, error) {
	return f.payment, f.err
}

func (f *fakePaymentSrv) List(context.Context, string, dto.PaymentFilter) ([]models.Payment, error) {
	if f.payment == nil {
		return nil, f.err
	}
	return []models.Payment{*f.payment}, f.err
}

func (f *fakePaymentSrv) MarkFullyPaid(context.Context, string, string) (*models.Payment, error) {
	return f.payment, f.err
}

func (f *fakePaymentSrv) PayPartial(_ context.Context, id string, amount decimal.Decimal, actor string) (*models.Payment, error) {
	f.lastPartial.id = id
	f.lastPartial.amount = amount
	f.lastPartial.actor = actor
	return f.payment, f.err
}

func (f *fakePaymentSrv) Refund(context.Context, string, decimal.Decimal, string) (*models.Payment, error) {
	return f.payment, f.err
}

func (f *fakePaymentSrv) CreateReceipt(context.Context, string, decimal.Decimal, string) (*models.PaymentReceipt, error) {
	return f.receipt, f.err
}

func (f *fakePaymentSrv) ListReceipts(context.Context, string) ([]models.PaymentReceipt, error) {
	return nil, f.err
}

func (f *fakePaymentSrv) ConfirmReceipt(context.Context, string, string) (*models.PaymentReceipt, error) {
	return f.receipt, f.err
}

func (f *fakePaymentSrv) RejectReceipt(context.Context, string, string) (*models.PaymentReceipt, error) {
	return f.receipt, f.err
}

type fakeGeneratorSrv struct {
	result    *dto.GenerationResult
	err       error
	lastMonth string
}

func (f *fakeGeneratorSrv) Generate(_ context.Context, _, _, rawMonth string) (*dto.GenerationResult, error) {
	f.lastMonth = rawMonth
	return f.result, f.err
}

func authedContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:         "admin-1",
		OrganizationID: "org-1",
		Role:           models.RoleAdmin,
	})
	return c, rec
}

func TestPaymentHandlerGenerateSuccess(t *testing.T) {
	generator := &fakeGeneratorSrv{result: &dto.GenerationResult{Month: "2024-09", Created: 3}}
	handler := NewPaymentHandler(&fakePaymentSrv{}, generator)

	body, _ := json.Marshal(dto.GeneratePaymentsRequest{Month: "2024-09"})
	c, rec := authedContext(t, http.MethodPost, "/payments/generate", body)

	handler.Generate(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-09", generator.lastMonth)
}

func TestPaymentHandlerGenerateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPaymentHandler(&fakePaymentSrv{}, &fakeGeneratorSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/generate", nil)

	handler.Generate(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentHandlerGenerateRejectsBadPayload(t *testing.T) {
	handler := NewPaymentHandler(&fakePaymentSrv{}, &fakeGeneratorSrv{})

	c, rec := authedContext(t, http.MethodPost, "/payments/generate", []byte("not-json"))

	handler.Generate(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentHandlerPayPartialPassesAmount(t *testing.T) {
	srv := &fakePaymentSrv{payment: &models.Payment{ID: "pay-1", Status: models.PaymentPartial}}
	handler := NewPaymentHandler(srv, &fakeGeneratorSrv{})

	body, _ := json.Marshal(dto.PayPartialRequest{Amount: decimal.RequireFromString("50000")})
	c, rec := authedContext(t, http.MethodPost, "/payments/pay-1/pay-partial", body)
	c.Params = gin.Params{{Key: "id", Value: "pay-1"}}

	handler.PayPartial(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pay-1", srv.lastPartial.id)
	assert.Equal(t, "50000", srv.lastPartial.amount.String())
	assert.Equal(t, "admin-1", srv.lastPartial.actor)
}

func TestPaymentHandlerGetTranslatesNotFound(t *testing.T) {
	srv := &fakePaymentSrv{err: appErrors.ErrNotFound}
	handler := NewPaymentHandler(srv, &fakeGeneratorSrv{})

	c, rec := authedContext(t, http.MethodGet, "/payments/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
