package repository

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/grievance-portal/internal/complaint/complainttest"
	"github.com/smallbiznis/grievance-portal/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestInsertEventIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := Provide()
	ctx := context.Background()
	complaintID := int64(3)

	event := &domain.EventRecord{
		ID:              1001,
		Provider:        "stripe",
		ProviderEventID: "evt_1",
		EventType:       domain.EventTypeCheckoutCompleted,
		ComplaintID:     &complaintID,
		Payload:         datatypes.JSON(`{"id":"evt_1"}`),
		ReceivedAt:      time.Now().UTC(),
	}

	inserted, err := repo.InsertEvent(ctx, db, event)
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to succeed")
	}

	dup := *event
	dup.ID = 1002
	inserted, err = repo.InsertEvent(ctx, db, &dup)
	if err != nil {
		t.Fatalf("insert duplicate: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate insert to be skipped")
	}

	stored, err := repo.FindEvent(ctx, db, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if stored == nil || stored.ID != 1001 {
		t.Fatalf("expected stored event 1001, got %+v", stored)
	}
	if stored.ProcessedAt != nil {
		t.Fatalf("expected unprocessed event")
	}

	if err := repo.MarkProcessed(ctx, db, stored.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	stored, err = repo.FindEvent(ctx, db, "stripe", "evt_1")
	if err != nil {
		t.Fatalf("find event: %v", err)
	}
	if stored.ProcessedAt == nil {
		t.Fatalf("expected processed_at to be set")
	}

	missing, err := repo.FindEvent(ctx, db, "stripe", "evt_missing")
	if err != nil {
		t.Fatalf("find missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing event")
	}
}

func TestSucceededPaymentIsUniquePerComplaint(t *testing.T) {
	db := setupTestDB(t)
	repo := Provide()
	ctx := context.Background()
	ref := "pi_1"

	first := &domain.Payment{ComplaintID: 1, Amount: 500, Status: domain.PaymentSucceeded, TransactionID: &ref, Provider: "stripe", CreatedAt: time.Now().UTC()}
	if err := repo.InsertPayment(ctx, db, first); err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	if first.ID != 1 {
		t.Fatalf("expected serial id 1, got %d", first.ID)
	}

	second := &domain.Payment{ComplaintID: 1, Amount: 500, Status: domain.PaymentSucceeded, TransactionID: &ref, Provider: "stripe", CreatedAt: time.Now().UTC()}
	if err := repo.InsertPayment(ctx, db, second); err == nil {
		t.Fatalf("expected unique violation for second succeeded payment")
	}

	items, err := repo.ListByComplaint(ctx, db, 1)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 payment, got %d", len(items))
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := complainttest.OpenDB(t)
	// payments reference complaints 1 and 3
	for i := 0; i < 3; i++ {
		if err := db.Exec(
			`INSERT INTO complaints (content, customer_email, status, filing_fee, created_at, updated_at)
			 VALUES ('the bins were collected at 4am', 'a@example.com', 'received', 500, ?, ?)`,
			time.Now().UTC(), time.Now().UTC(),
		).Error; err != nil {
			t.Fatalf("seed complaint: %v", err)
		}
	}
	return db
}
