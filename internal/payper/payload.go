// Package payper assembles and submits PayPer checkout-session requests. The
// payload shape is the vendor's fixed contract; nothing here is negotiable
// except the amount, product, currency and return URLs.
package payper

import (
	"fmt"
	"strings"
	"time"
)

// Payload is the checkout-session request body.
type Payload struct {
	Customer         Customer          `json:"customer"`
	SessionInfo      SessionInfo       `json:"session_info"`
	CheckoutItems    []CheckoutItem    `json:"checkout_items"`
	ConvenienceFee   float64           `json:"convenience_fee"`
	Currency         string            `json:"currency"`
	UDFs             []string          `json:"udfs"`
	ReturnURL        string            `json:"return_url"`
	FailedReturnURL  string            `json:"failed_return_url"`
	MerchantNtfURL   string            `json:"merchant_ntf_url,omitempty"`
	NotificationInfo *NotificationInfo `json:"notification_info,omitempty"`
}

// Customer carries the placeholder customer profile the vendor requires.
type Customer struct {
	Email       string       `json:"email"`
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
}

// BillingInfo is the static billing profile sent on the direct checkout flow.
type BillingInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`
	Company   string `json:"company"`
	Phone     string `json:"phone"`
}

// SessionInfo selects the payment session type and offered methods.
type SessionInfo struct {
	SessionType    string          `json:"session_type"`
	SessionMethods []SessionMethod `json:"session_methods"`
}

// SessionMethod is one payment method option.
type SessionMethod struct {
	Method    string `json:"method"`
	Preferred bool   `json:"preferred"`
}

// CheckoutItem is a single line item priced at the resolved amount.
type CheckoutItem struct {
	Name        string  `json:"name"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	SKU         string  `json:"SKU"`
	UnitPrice   float64 `json:"unit_price"`
	ItemType    string  `json:"item_type"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// NotificationInfo routes vendor-side notifications.
type NotificationInfo struct {
	EmailAddresses []string `json:"email_addresses,omitempty"`
	PhoneNumbers   []string `json:"phone_numbers,omitempty"`
}

const (
	placeholderEmail = "placeholder@example.com"
	itemDescription  = "Secure deposit payment"
	itemSKU          = "deposit"
	itemImageURL     = "https://static.vecteezy.com/system/resources/previews/035/662/363/non_2x/luxury-car-front-view-icon-free-vector.jpg"
	companyName      = "Holland Leasing Inc"
	merchantTag      = "holland_leasing"
	bankCode         = "TD"
)

var staticBillingInfo = BillingInfo{
	FirstName: "Holland",
	LastName:  "Customer",
	Address:   "123 Main Street",
	City:      "Toronto",
	State:     "ON",
	ZipCode:   "M5V 3A8",
	Country:   "CA",
	Company:   "Holland Leasing",
	Phone:     "+14160000000",
}

// PayloadParams are the variable inputs to the payload builder.
type PayloadParams struct {
	Amount          float64
	Product         string
	Currency        string
	ReturnURL       string
	FailedReturnURL string
	MerchantNtfURL  string

	// BillingProfile attaches the static billing block and the line-item
	// image; the direct checkout flow sends these, code redemption does not.
	BillingProfile bool

	NotifyEmails []string
	NotifyPhones []string

	// Now pins the timestamp-derived udfs; the zero value uses wall clock.
	Now time.Time
}

// BuildPayload maps the params into the vendor contract. The output is
// deterministic except for the timestamp and date udfs, which track Now.
func BuildPayload(p PayloadParams) Payload {
	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	millis := now.UnixMilli()

	customer := Customer{Email: placeholderEmail}
	item := CheckoutItem{
		Name:        p.Product,
		Quantity:    1,
		Description: itemDescription,
		SKU:         itemSKU,
		UnitPrice:   p.Amount,
		ItemType:    "physical",
	}
	if p.BillingProfile {
		billing := staticBillingInfo
		customer.BillingInfo = &billing
		item.ImageURL = itemImageURL
	}

	var notification *NotificationInfo
	if len(p.NotifyEmails) > 0 || len(p.NotifyPhones) > 0 {
		notification = &NotificationInfo{
			EmailAddresses: p.NotifyEmails,
			PhoneNumbers:   p.NotifyPhones,
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "CAD"
	}

	return Payload{
		Customer: customer,
		SessionInfo: SessionInfo{
			SessionType: "payment",
			SessionMethods: []SessionMethod{
				{Method: "wire_transfer", Preferred: false},
				{Method: "etransfer_request_money", Preferred: true},
			},
		},
		CheckoutItems:  []CheckoutItem{item},
		ConvenienceFee: 0,
		Currency:       currency,
		UDFs: []string{
			fmt.Sprintf("deposit_%d", millis),
			itemSKU,
			merchantTag,
			fmt.Sprintf("%d", millis),
			companyName,
			now.Format("1/2/2006"),
			bankCode,
		},
		ReturnURL:        p.ReturnURL,
		FailedReturnURL:  p.FailedReturnURL,
		MerchantNtfURL:   p.MerchantNtfURL,
		NotificationInfo: notification,
	}
}
