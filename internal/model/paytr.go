package model

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ProviderStatusSuccess   = "success"
	ProviderStatusFailed    = "failed"
	ProviderStatusCancelled = "cancelled"
)

// ParseProviderStatus maps a provider status onto the order lifecycle.
func ParseProviderStatus(s string) (OrderStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ProviderStatusSuccess, string(OrderStatusCompleted):
		return OrderStatusCompleted, true
	case ProviderStatusFailed:
		return OrderStatusFailed, true
	case ProviderStatusCancelled, "canceled":
		return OrderStatusCancelled, true
	}
	return "", false
}

// WebhookNotification is the generic provider notification. It is not
// trusted until Token has been verified. Amount accepts a JSON number or a
// decimal string.
type WebhookNotification struct {
	OrderID   string           `json:"order_id" form:"order_id"`
	Status    string           `json:"status" form:"status"`
	PaymentID string           `json:"payment_id,omitempty" form:"payment_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty" form:"amount"`
	Currency  string           `json:"currency,omitempty" form:"currency"`
	Provider  string           `json:"provider,omitempty" form:"provider"`
	Token     string           `json:"token,omitempty" form:"token"`
}

// PaytrCallback is the form body PayTR posts to the notification URL.
type PaytrCallback struct {
	MerchantOID      string `form:"merchant_oid" json:"merchant_oid"`
	Status           string `form:"status" json:"status"`
	TotalAmount      string `form:"total_amount" json:"total_amount"`
	Hash             string `form:"hash" json:"hash"`
	FailedReasonCode string `form:"failed_reason_code" json:"failed_reason_code,omitempty"`
	FailedReasonMsg  string `form:"failed_reason_msg" json:"failed_reason_msg,omitempty"`
	TestMode         string `form:"test_mode" json:"test_mode,omitempty"`
	PaymentType      string `form:"payment_type" json:"payment_type,omitempty"`
	Currency         string `form:"currency" json:"currency,omitempty"`
	PaymentAmount    string `form:"payment_amount" json:"payment_amount,omitempty"`
}

func (c *PaytrCallback) ErrorMessage() string {
	if c.FailedReasonMsg != "" {
		return c.FailedReasonMsg
	}
	if c.FailedReasonCode != "" {
		return "Payment failed with code: " + c.FailedReasonCode
	}
	return "Payment failed for unknown reason"
}

// BasketItem is one line of the iFrame user_basket.
type BasketItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// PaymentTokenRequest is what checkout hands to the iFrame token API.
type PaymentTokenRequest struct {
	MerchantOID string
	Email       string
	UserName    string
	UserAddress string
	UserPhone   string
	UserIP      string
	Amount      decimal.Decimal
	Basket      []BasketItem
}

type PaytrTokenResponse struct {
	Status string `json:"status"`
	Token  string `json:"token"`
	Reason string `json:"reason"`
}

// PaymentToken is a usable iFrame session.
type PaymentToken struct {
	Token     string
	IframeURL string
}

// PaytrReturn is one refund line of a status query response.
type PaytrReturn struct {
	ReturnAmount string `json:"return_amount"`
	ReturnDate   string `json:"return_date"`
	ReturnType   string `json:"return_type"`
}

type PaytrStatusResponse struct {
	Status        string        `json:"status"`
	PaymentAmount string        `json:"payment_amount"`
	PaymentTotal  string        `json:"payment_total"`
	Currency      string        `json:"currency"`
	Returns       []PaytrReturn `json:"returns"`
	ErrNo         string        `json:"err_no"`
	ErrMsg        string        `json:"err_msg"`
}

// StatusResult is what the status query hands to the state machine.
type StatusResult struct {
	Status   string
	Settled  bool
	Amount   string
	Currency string
	Raw      json.RawMessage
}

// NormalizeCurrency maps provider currency codes onto ISO 4217.
func NormalizeCurrency(c string) string {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "TL", "TRY":
		return "TRY"
	case "":
		return ""
	default:
		return strings.ToUpper(strings.TrimSpace(c))
	}
}
