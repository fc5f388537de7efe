package redeem_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/holland-leasing/checkout-api/internal/payper"
	"github.com/holland-leasing/checkout-api/internal/redeem"
	"github.com/holland-leasing/checkout-api/internal/store"
)

func newRouter(svc *redeem.Service) http.Handler {
	handler := &redeem.Handler{Svc: svc}
	r := chi.NewRouter()
	r.Get("/c/{code}", handler.Redeem)
	r.Get("/redeem", handler.Redeem)
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var decoded struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	return decoded.Error.Code
}

func TestRedeemHandlerRedirects(t *testing.T) {
	cfg := baseConfig()
	cfg.AllowAmountOverride = true
	svc, vendor, _ := newService(t, cfg, "env-token")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/c/ABC123?a=750", nil)
	req.Host = "pay.example.com"
	newRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://pay.example.com/s/1", rr.Header().Get("Location"))
	require.Equal(t, 750.0, vendor.payload.CheckoutItems[0].UnitPrice)
	require.Equal(t, "CAD", vendor.payload.Currency)
}

func TestRedeemHandlerQueryForm(t *testing.T) {
	svc, vendor, _ := newService(t, baseConfig(), "env-token")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/redeem?code=ABC123&token=t2", nil)
	newRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "Bearer t2", vendor.bearer)
}

func TestRedeemHandlerQueryCodeBeatsPath(t *testing.T) {
	svc, vendor, _ := newService(t, baseConfig(), "env-token")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/c/IGNORED?code=ABC123", nil)
	newRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.EqualValues(t, 1, vendor.calls.Load())
}

func TestRedeemHandlerMissingCode(t *testing.T) {
	svc, _, _ := newService(t, nil, "env-token")

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/redeem", nil))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "missing_code", errorCode(t, rr.Body.Bytes()))
}

func TestRedeemHandlerUnknownCode(t *testing.T) {
	svc, vendor, _ := newService(t, nil, "env-token")

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/c/nope", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "code_not_found", errorCode(t, rr.Body.Bytes()))
	require.EqualValues(t, 0, vendor.calls.Load())
}

func TestRedeemHandlerMissingToken(t *testing.T) {
	svc, _, _ := newService(t, baseConfig(), "")

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/c/ABC123", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "missing_token", errorCode(t, rr.Body.Bytes()))
}

func TestRedeemHandlerBadGateway(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Set(context.Background(), "ABC123", baseConfig()))
	vendor := &countingVendor{err: payper.ErrNoRedirectURL}
	svc := &redeem.Service{Store: mem, Vendor: vendor, DefaultToken: "t", Logger: zerolog.Nop()}

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/c/ABC123", nil))

	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "bad_gateway", errorCode(t, rr.Body.Bytes()))
}

func TestRedeemHandlerForwardsVendorStatus(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Set(context.Background(), "ABC123", baseConfig()))
	vendor := &countingVendor{err: &payper.APIError{
		Status: http.StatusUnprocessableEntity,
		Body:   []byte(`{"message":"invalid currency"}`),
	}}
	svc := &redeem.Service{Store: mem, Vendor: vendor, DefaultToken: "t", Logger: zerolog.Nop()}

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/c/ABC123", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Equal(t, "redeem_failed", errorCode(t, rr.Body.Bytes()))
	require.Contains(t, rr.Body.String(), "invalid currency")
}

func TestRedeemHandlerTransportFailure(t *testing.T) {
	mem := store.NewMemory()
	require.NoError(t, mem.Set(context.Background(), "ABC123", baseConfig()))
	vendor := &countingVendor{err: errors.New("connection refused")}
	svc := &redeem.Service{Store: mem, Vendor: vendor, DefaultToken: "t", Logger: zerolog.Nop()}

	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/c/ABC123", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "redeem_failed", errorCode(t, rr.Body.Bytes()))
}

func TestVendorDetailsFallsBackToText(t *testing.T) {
	require.Equal(t, "upstream exploded", redeem.VendorDetails([]byte("upstream exploded")))
	require.Nil(t, redeem.VendorDetails(nil))
	require.Equal(t, map[string]any{"a": 1.0}, redeem.VendorDetails([]byte(`{"a":1}`)))
}
