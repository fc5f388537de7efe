package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/holland-leasing/checkout-api/internal/checkout"
	"github.com/holland-leasing/checkout-api/internal/payper"
)

type stubVendor struct {
	calls   atomic.Int32
	bearer  string
	payload payper.Payload
	err     error
}

func (v *stubVendor) CreateSession(_ context.Context, bearer string, payload payper.Payload) (*payper.Session, error) {
	v.calls.Add(1)
	v.bearer = bearer
	v.payload = payload
	if v.err != nil {
		return nil, v.err
	}
	return &payper.Session{
		URL:       "https://pay.example.com/s/1",
		SessionID: "sess_1",
		Raw:       []byte(`{"data":{"url":"https://pay.example.com/s/1","session_id":"sess_1"}}`),
	}, nil
}

func TestCheckoutGetRedirects(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor, NotifyEmail: "ops@example.com"}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout?amount=125.50&currency=cad&token=tok", nil)
	req.Host = "pay.example.com"
	h.Checkout(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://pay.example.com/s/1", rr.Header().Get("Location"))
	require.Equal(t, "Bearer tok", vendor.bearer)
	require.Equal(t, 125.50, vendor.payload.CheckoutItems[0].UnitPrice)
	require.Equal(t, "CAD", vendor.payload.Currency)
	require.Equal(t, "Holland Deposit", vendor.payload.CheckoutItems[0].Name)
	require.NotNil(t, vendor.payload.Customer.BillingInfo, "direct flow carries the billing profile")
	require.NotNil(t, vendor.payload.NotificationInfo)
}

func TestCheckoutPostReturnsJSON(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	body := `{"amount": 500, "product": "Custom Deposit", "token": "tok"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body))
	h.Checkout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		URL       string          `json:"url"`
		SessionID string          `json:"session_id"`
		Raw       json.RawMessage `json:"raw"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "https://pay.example.com/s/1", resp.URL)
	require.Equal(t, "sess_1", resp.SessionID)
	require.NotEmpty(t, resp.Raw)
	require.Equal(t, "Custom Deposit", vendor.payload.CheckoutItems[0].Name)
}

func TestCheckoutAuthorizationHeaderFallback(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout?amount=100", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	h.Checkout(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "Bearer header-token", vendor.bearer)
}

func TestCheckoutTokenParamBeatsHeader(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout?amount=100&token=param-token", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	h.Checkout(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "Bearer param-token", vendor.bearer)
}

func TestCheckoutMissingAuthorization(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	rr := httptest.NewRecorder()
	h.Checkout(rr, httptest.NewRequest(http.MethodGet, "/checkout?amount=100", nil))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Contains(t, rr.Body.String(), "missing_authorization")
	require.EqualValues(t, 0, vendor.calls.Load())
}

func TestCheckoutInvalidAmount(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	for _, amount := range []string{"", "0", "-10", "abc"} {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/checkout?amount="+amount+"&token=tok", nil)
		h.Checkout(rr, req)
		require.Equal(t, http.StatusBadRequest, rr.Code, "amount %q", amount)
		require.Contains(t, rr.Body.String(), "validation_error")
	}
	require.EqualValues(t, 0, vendor.calls.Load())
}

func TestCheckoutForwardsVendorError(t *testing.T) {
	vendor := &stubVendor{err: &payper.APIError{Status: http.StatusPaymentRequired, Body: []byte(`{"message":"declined"}`)}}
	h := &checkout.Handler{Vendor: vendor}

	rr := httptest.NewRecorder()
	h.Checkout(rr, httptest.NewRequest(http.MethodGet, "/checkout?amount=100&token=tok", nil))

	require.Equal(t, http.StatusPaymentRequired, rr.Code)
	require.Contains(t, rr.Body.String(), "checkout_failed")
	require.Contains(t, rr.Body.String(), "declined")
}

func TestCheckoutCustomReturnURLs(t *testing.T) {
	vendor := &stubVendor{}
	h := &checkout.Handler{Vendor: vendor}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/checkout?amount=100&token=tok&return_url=https://me.example.com/ok&failed_return_url=https://me.example.com/fail", nil)
	h.Checkout(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://me.example.com/ok", vendor.payload.ReturnURL)
	require.Equal(t, "https://me.example.com/fail", vendor.payload.FailedReturnURL)
}
