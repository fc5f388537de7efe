// Package codes exposes the admin endpoint that registers redemption codes.
package codes

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/holland-leasing/checkout-api/internal/code"
	"github.com/holland-leasing/checkout-api/internal/common"
	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/store"
)

const (
	defaultProduct  = "Holland Deposit"
	defaultCurrency = "CAD"
)

// Handler registers codes against the configuration store.
type Handler struct {
	Store         store.Store
	APIKey        string
	PublicBaseURL string
	Validate      *validator.Validate
	Logger        zerolog.Logger
	Now           func() time.Time
}

type registerRequest struct {
	Amount              float64 `json:"amount" validate:"required,gt=0"`
	Product             string  `json:"product"`
	Currency            string  `json:"currency" validate:"omitempty,len=3,alpha"`
	Token               string  `json:"token"`
	AllowAmountOverride bool    `json:"allow_amount_override"`
	Code                string  `json:"code" validate:"omitempty,alphanum,min=4,max=64"`
}

type registerResponse struct {
	Code     string           `json:"code"`
	ShortURL string           `json:"shortUrl"`
	Config   store.CodeConfig `json:"config"`
}

// Register creates (or overwrites) a code. Re-registering an existing code is
// last-write-wins; there is no optimistic concurrency control.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "internal", "code registration unavailable", nil)
		return
	}
	if !h.authorized(r) {
		countRegistration("unauthorized")
		common.JSONError(w, http.StatusUnauthorized, "unauthorized", "invalid or missing api key", nil)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		countRegistration("error")
		common.JSONError(w, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if err := h.validate(req); err != nil {
		countRegistration("error")
		if req.Amount <= 0 {
			common.JSONError(w, http.StatusBadRequest, "invalid_amount", "amount must be a positive number", nil)
			return
		}
		common.JSONError(w, http.StatusBadRequest, "validation_error", "invalid request", fieldErrors(err))
		return
	}

	codeValue := strings.TrimSpace(req.Code)
	if codeValue == "" {
		generated, err := code.Generate(code.DefaultLength)
		if err != nil {
			countRegistration("error")
			common.JSONError(w, http.StatusInternalServerError, "internal", "code generation failed", nil)
			return
		}
		codeValue = generated
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	cfg := store.CodeConfig{
		Amount:              req.Amount,
		Product:             valueOrDefault(req.Product, defaultProduct),
		Currency:            strings.ToUpper(valueOrDefault(req.Currency, defaultCurrency)),
		AllowAmountOverride: req.AllowAmountOverride,
		Token:               strings.TrimSpace(req.Token),
		CreatedAt:           now().UnixMilli(),
	}

	if err := h.Store.Set(r.Context(), codeValue, &cfg); err != nil {
		countRegistration("error")
		h.Logger.Error().Err(err).Str("code", codeValue).Msg("store code config")
		common.JSONError(w, http.StatusBadGateway, "store_unavailable", "could not persist code", nil)
		return
	}

	countRegistration("ok")
	common.JSON(w, http.StatusOK, registerResponse{
		Code:     codeValue,
		ShortURL: common.BaseURL(r, h.PublicBaseURL) + "/c/" + codeValue,
		Config:   cfg,
	})
}

// authorized performs the static API-key check. An empty configured key
// disables the check entirely.
func (h *Handler) authorized(r *http.Request) bool {
	if h.APIKey == "" {
		return true
	}
	provided := r.Header.Get("X-Api-Key")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.APIKey)) == 1
}

func (h *Handler) validate(req registerRequest) error {
	v := h.Validate
	if v == nil {
		v = validator.New()
	}
	return v.Struct(req)
}

func fieldErrors(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return fields
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func countRegistration(result string) {
	if obs.CodeRegistrationTotal != nil {
		obs.CodeRegistrationTotal.WithLabelValues(result).Inc()
	}
}
