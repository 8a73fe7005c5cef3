// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/client"
	"github.com/yunusgulbuz/gizlimesaj-sub005/internal/model"
)

var dbSeq atomic.Int64

// NewTestDB opens a migrated in-memory SQLite database private to t.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := client.InitDBClient(client.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// PendingOrder returns a checkout-fresh order created at createdAt.
func PendingOrder(orderID, shortID string, createdAt time.Time) *model.Order {
	return &model.Order{
		OrderID:       orderID,
		Status:        model.OrderStatusPending,
		Amount:        decimal.RequireFromString("34.99"),
		Currency:      "TRY",
		ShortID:       shortID,
		TemplateID:    "tpl-love",
		RecipientName: "Ayşe",
		SenderName:    "Mehmet",
		Message:       "İyi ki varsın",
		BuyerEmail:    "buyer@example.com",
		DesignStyle:   "modern",
		CreatedAt:     createdAt,
	}
}

// InsertOrder stores order or fails the test.
func InsertOrder(t *testing.T, db *gorm.DB, order *model.Order) {
	t.Helper()
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("insert order %s: %v", order.OrderID, err)
	}
}
