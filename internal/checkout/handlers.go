// Package checkout implements the direct checkout flow: no stored code, the
// caller supplies amount and credential themselves.
package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/holland-leasing/checkout-api/internal/common"
	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/payper"
	"github.com/holland-leasing/checkout-api/internal/redeem"
	"github.com/holland-leasing/checkout-api/internal/token"
)

// Handler exposes the direct checkout endpoint.
type Handler struct {
	Vendor         redeem.VendorClient
	MerchantNtfURL string
	NotifyEmail    string
	NotifyPhone    string
	PublicBaseURL  string
}

type checkoutBody struct {
	Amount          json.Number `json:"amount"`
	Product         string      `json:"product"`
	Currency        string      `json:"currency"`
	ReturnURL       string      `json:"return_url"`
	FailedReturnURL string      `json:"failed_return_url"`
	Token           string      `json:"token"`
}

type checkoutInput struct {
	amountRaw       string
	product         string
	currency        string
	returnURL       string
	failedReturnURL string
	token           string
}

// Checkout serves both request forms. GET reads query parameters and answers
// with a redirect; POST reads a JSON body and answers with the session URL.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Vendor == nil {
		common.JSONError(w, http.StatusInternalServerError, "checkout_failed", "checkout handler unavailable", nil)
		return
	}
	isPost := r.Method == http.MethodPost

	var in checkoutInput
	if isPost {
		var body checkoutBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			common.JSONError(w, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
			return
		}
		in = checkoutInput{
			amountRaw:       body.Amount.String(),
			product:         body.Product,
			currency:        body.Currency,
			returnURL:       body.ReturnURL,
			failedReturnURL: body.FailedReturnURL,
			token:           body.Token,
		}
	} else {
		q := r.URL.Query()
		in = checkoutInput{
			amountRaw:       q.Get("amount"),
			product:         q.Get("product"),
			currency:        q.Get("currency"),
			returnURL:       q.Get("return_url"),
			failedReturnURL: q.Get("failed_return_url"),
			token:           q.Get("token"),
		}
	}

	amount, err := parseAmount(in.amountRaw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "validation_error", "amount must be a positive number", nil)
		return
	}

	bearer, ok := token.Resolve(in.token, r.Header.Get("Authorization"))
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "missing_authorization", "provide Authorization header or token param", nil)
		return
	}

	base := common.BaseURL(r, h.PublicBaseURL)
	product := strings.TrimSpace(in.product)
	if product == "" {
		product = "Holland Deposit"
	}

	payload := payper.BuildPayload(payper.PayloadParams{
		Amount:          amount,
		Product:         product,
		Currency:        in.currency,
		ReturnURL:       defaultURL(in.returnURL, base+"/payment-return"),
		FailedReturnURL: defaultURL(in.failedReturnURL, base+"/checkout-failed"),
		MerchantNtfURL:  h.MerchantNtfURL,
		BillingProfile:  true,
		NotifyEmails:    asList(h.NotifyEmail),
		NotifyPhones:    asList(h.NotifyPhone),
	})

	session, err := h.Vendor.CreateSession(r.Context(), bearer, payload)
	if err != nil {
		h.renderError(w, err)
		return
	}
	countSession("ok")

	if !isPost {
		common.Redirect(w, session.URL)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"url":        session.URL,
		"session_id": session.SessionID,
		"raw":        json.RawMessage(session.Raw),
	})
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	countSession("error")
	if errors.Is(err, payper.ErrNoRedirectURL) {
		common.JSONError(w, http.StatusBadGateway, "bad_gateway", "vendor response had no checkout url", nil)
		return
	}
	var apiErr *payper.APIError
	if errors.As(err, &apiErr) {
		common.JSONError(w, apiErr.Status, "checkout_failed", "vendor rejected the checkout session", redeem.VendorDetails(apiErr.Body))
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "checkout_failed", err.Error(), nil)
}

func parseAmount(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, errors.New("amount is required")
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, errors.New("amount must be positive")
	}
	return amount, nil
}

func defaultURL(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func asList(value string) []string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return []string{trimmed}
	}
	return nil
}

func countSession(result string) {
	if obs.CheckoutSessionTotal != nil {
		obs.CheckoutSessionTotal.WithLabelValues("direct", result).Inc()
	}
}
