package payper_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/holland-leasing/checkout-api/internal/payper"
)

func TestBuildPayloadCore(t *testing.T) {
	now := time.Date(2025, 3, 7, 15, 4, 5, 0, time.UTC)
	p := payper.BuildPayload(payper.PayloadParams{
		Amount:          750,
		Product:         "Deposit",
		Currency:        "cad",
		ReturnURL:       "https://pay.example.com/payment-return",
		FailedReturnURL: "https://pay.example.com/checkout-failed",
		Now:             now,
	})

	require.Equal(t, "CAD", p.Currency)
	require.Equal(t, 0.0, p.ConvenienceFee)
	require.Equal(t, "payment", p.SessionInfo.SessionType)

	require.Len(t, p.SessionInfo.SessionMethods, 2)
	require.Equal(t, "wire_transfer", p.SessionInfo.SessionMethods[0].Method)
	require.False(t, p.SessionInfo.SessionMethods[0].Preferred)
	require.Equal(t, "etransfer_request_money", p.SessionInfo.SessionMethods[1].Method)
	require.True(t, p.SessionInfo.SessionMethods[1].Preferred)

	require.Len(t, p.CheckoutItems, 1)
	item := p.CheckoutItems[0]
	require.Equal(t, "Deposit", item.Name)
	require.Equal(t, 1, item.Quantity)
	require.Equal(t, 750.0, item.UnitPrice)
	require.Equal(t, "deposit", item.SKU)
	require.Equal(t, "physical", item.ItemType)

	require.Equal(t, "https://pay.example.com/payment-return", p.ReturnURL)
	require.Equal(t, "https://pay.example.com/checkout-failed", p.FailedReturnURL)
}

func TestBuildPayloadUDFs(t *testing.T) {
	now := time.Date(2025, 3, 7, 15, 4, 5, 0, time.UTC)
	p := payper.BuildPayload(payper.PayloadParams{Amount: 100, Product: "Deposit", Now: now})

	require.Len(t, p.UDFs, 7)
	millis := fmt.Sprintf("%d", now.UnixMilli())
	require.Equal(t, "deposit_"+millis, p.UDFs[0])
	require.Equal(t, "deposit", p.UDFs[1])
	require.Equal(t, "holland_leasing", p.UDFs[2])
	require.Equal(t, millis, p.UDFs[3])
	require.Equal(t, "Holland Leasing Inc", p.UDFs[4])
	require.Equal(t, "3/7/2025", p.UDFs[5])
	require.Equal(t, "TD", p.UDFs[6])
}

func TestBuildPayloadBillingProfileToggle(t *testing.T) {
	base := payper.PayloadParams{Amount: 100, Product: "Deposit"}

	slim := payper.BuildPayload(base)
	require.Nil(t, slim.Customer.BillingInfo)
	require.Empty(t, slim.CheckoutItems[0].ImageURL)

	base.BillingProfile = true
	full := payper.BuildPayload(base)
	require.NotNil(t, full.Customer.BillingInfo)
	require.Equal(t, "Toronto", full.Customer.BillingInfo.City)
	require.NotEmpty(t, full.CheckoutItems[0].ImageURL)
}

func TestBuildPayloadNotificationInfo(t *testing.T) {
	p := payper.BuildPayload(payper.PayloadParams{Amount: 100, Product: "Deposit"})
	require.Nil(t, p.NotificationInfo)

	p = payper.BuildPayload(payper.PayloadParams{
		Amount:       100,
		Product:      "Deposit",
		NotifyEmails: []string{"ops@example.com"},
	})
	require.NotNil(t, p.NotificationInfo)
	require.Equal(t, []string{"ops@example.com"}, p.NotificationInfo.EmailAddresses)
	require.Empty(t, p.NotificationInfo.PhoneNumbers)
}

func TestBuildPayloadDefaultsCurrency(t *testing.T) {
	p := payper.BuildPayload(payper.PayloadParams{Amount: 100, Product: "Deposit", Currency: "  "})
	require.Equal(t, "CAD", p.Currency)
}

func TestBuildPayloadWallClock(t *testing.T) {
	p := payper.BuildPayload(payper.PayloadParams{Amount: 100, Product: "Deposit"})
	require.True(t, strings.HasPrefix(p.UDFs[0], "deposit_"))
	require.NotEmpty(t, p.UDFs[3])
}
