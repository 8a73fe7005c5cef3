package dto

import (
	"encoding/json"
	"time"
)

type CreateOrderRequest struct {
	TemplateID    string          `json:"template_id"`
	Amount        string          `json:"amount"`
	Currency      string          `json:"currency"`
	RecipientName string          `json:"recipient_name"`
	SenderName    string          `json:"sender_name"`
	Message       string          `json:"message"`
	BuyerEmail    string          `json:"buyer_email"`
	SpecialDate   *time.Time      `json:"special_date"`
	ExpiresAt     *time.Time      `json:"expires_at"`
	DesignStyle   string          `json:"design_style"`
	BgAudioURL    string          `json:"bg_audio_url"`
	TextFields    json.RawMessage `json:"text_fields"`
}

type CreateOrderResponse struct {
	OrderID      string `json:"order_id"`
	ShortID      string `json:"short_id"`
	Status       string `json:"status"`
	PaymentToken string `json:"payment_token"`
	IframeURL    string `json:"iframe_url"`
}

type OrderStatusResponse struct {
	OrderID     string     `json:"order_id"`
	ShortID     string     `json:"short_id"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	PaymentID   *string    `json:"payment_id,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	PageURL     string     `json:"page_url,omitempty"`
}

type PersonalPageResponse struct {
	ShortID       string          `json:"short_id"`
	TemplateID    string          `json:"template_id"`
	RecipientName string          `json:"recipient_name"`
	SenderName    string          `json:"sender_name"`
	Message       string          `json:"message"`
	SpecialDate   *time.Time      `json:"special_date,omitempty"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	DesignStyle   string          `json:"design_style"`
	BgAudioURL    string          `json:"bg_audio_url,omitempty"`
	TextFields    json.RawMessage `json:"text_fields,omitempty"`
}

type AdminOrderResponse struct {
	OrderStatusResponse
	Provider            string          `json:"provider"`
	TemplateID          string          `json:"template_id"`
	BuyerEmail          string          `json:"buyer_email"`
	FulfillmentAttempts int             `json:"fulfillment_attempts"`
	LastError           string          `json:"last_error,omitempty"`
	PaymentResponse     json.RawMessage `json:"payment_response,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type ReconcileResponse struct {
	Checked      int `json:"checked"`
	Completed    int `json:"completed"`
	StillPending int `json:"still_pending"`
	Repaired     int `json:"repaired"`
	Expired      int `json:"expired"`
	Errors       int `json:"errors"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
