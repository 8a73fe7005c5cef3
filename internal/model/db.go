package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Terminal statuses are sticky: no transition leaves them.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s.Terminal()
}

type Order struct {
	OrderID  string          `gorm:"primaryKey;size:64;not null"`
	Status   OrderStatus     `gorm:"size:16;index;not null"`
	Amount   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency string          `gorm:"size:8;not null"`
	Provider string          `gorm:"size:32"`
	// provider transaction id, set once settled
	PaymentID *string `gorm:"size:128"`
	// slug of the PersonalPage this order pays for, allocated at checkout
	ShortID string `gorm:"size:16;uniqueIndex;not null"`

	TemplateID    string `gorm:"size:64;not null"`
	RecipientName string `gorm:"size:255"`
	SenderName    string `gorm:"size:255"`
	Message       string `gorm:"type:text"`
	BuyerEmail    string `gorm:"size:255"`
	SpecialDate   *time.Time
	ExpiresAt     *time.Time
	DesignStyle   string `gorm:"size:32"`
	BgAudioURL    string `gorm:"size:512"`
	TextFields    datatypes.JSON

	PaymentResponse     datatypes.JSON
	FulfillmentAttempts int    `gorm:"not null;default:0"`
	LastError           string `gorm:"type:text"`
	// status polls so far; the poller serves the least recently polled first
	ReconcileAttempts int        `gorm:"not null;default:0"`
	LastReconciledAt  *time.Time `gorm:"index"`

	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// PersonalPage is the delivered product. Its existence for a short id proves
// fulfillment already ran for the owning order.
type PersonalPage struct {
	ShortID string `gorm:"primaryKey;size:16;not null"`
	OrderID string `gorm:"size:64;uniqueIndex;not null"`

	TemplateID    string `gorm:"size:64;not null"`
	RecipientName string `gorm:"size:255"`
	SenderName    string `gorm:"size:255"`
	Message       string `gorm:"type:text"`
	SpecialDate   *time.Time
	ExpiresAt     *time.Time
	DesignStyle   string `gorm:"size:32"`
	BgAudioURL    string `gorm:"size:512"`
	TextFields    datatypes.JSON
	IsActive      bool `gorm:"not null;default:true"`

	CreatedAt time.Time
}

// Live reports whether the page can still be shown at t.
func (p *PersonalPage) Live(t time.Time) bool {
	if !p.IsActive {
		return false
	}
	return p.ExpiresAt == nil || t.Before(*p.ExpiresAt)
}
