package redeem

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/holland-leasing/checkout-api/internal/common"
	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/payper"
)

// Handler exposes the code redemption endpoint.
type Handler struct {
	Svc           *Service
	PublicBaseURL string
}

// Redeem resolves the code from the path or query, runs the redemption flow
// and issues a 302 to the vendor's hosted checkout page.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "redeem_failed", "redeem service unavailable", nil)
		return
	}
	// The query param wins over the path segment when both are present.
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		code = strings.TrimSpace(chi.URLParam(r, "code"))
	}

	outcome, err := h.Svc.Redeem(r.Context(), Request{
		Code:           code,
		AmountOverride: r.URL.Query().Get("a"),
		Token:          r.URL.Query().Get("token"),
		BaseURL:        common.BaseURL(r, h.PublicBaseURL),
	})
	if err != nil {
		h.renderError(w, err)
		return
	}

	countSession("redeem", "ok")
	common.Redirect(w, outcome.RedirectURL)
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	countSession("redeem", "error")
	switch {
	case errors.Is(err, ErrMissingCode):
		common.JSONError(w, http.StatusBadRequest, "missing_code", "code is required", nil)
	case errors.Is(err, ErrCodeNotFound):
		common.JSONError(w, http.StatusNotFound, "code_not_found", "unknown code", nil)
	case errors.Is(err, ErrMissingToken):
		common.JSONError(w, http.StatusUnauthorized, "missing_token", "no payment credential available for this code", nil)
	case errors.Is(err, payper.ErrNoRedirectURL):
		common.JSONError(w, http.StatusBadGateway, "bad_gateway", "vendor response had no checkout url", nil)
	default:
		var apiErr *payper.APIError
		if errors.As(err, &apiErr) {
			common.JSONError(w, apiErr.Status, "redeem_failed", "vendor rejected the checkout session", VendorDetails(apiErr.Body))
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "redeem_failed", err.Error(), nil)
	}
}

func countSession(flow, result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues(flow, result).Inc()
	}
}

// VendorDetails decodes a vendor error body for the details field, falling
// back to the raw text when the vendor did not return JSON.
func VendorDetails(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	return decoded
}
