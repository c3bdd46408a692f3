// rassrochka-crm/internal/services/score_service_test.go
package services

import (
	"errors"
	"testing"

	"rassrochka-crm/models"
)

func TestAdjustManual(t *testing.T) {
	db := setupTestDB(t)
	scores := NewScoreService(db)

	client := models.Client{FullName: "Клиент", Score: models.DefaultClientScore}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	score, err := scores.AdjustManual(client.ID, -15, "штраф за возврат товара")
	if err != nil {
		t.Fatalf("AdjustManual: %v", err)
	}
	if score != models.DefaultClientScore-15 {
		t.Errorf("score = %d, want %d", score, models.DefaultClientScore-15)
	}

	var entry models.PaymentHistory
	if err := db.Where("client_id = ?", client.ID).First(&entry).Error; err != nil {
		t.Fatalf("history entry not found: %v", err)
	}
	// Ручная корректировка: псевдопереход score_update без ссылки на платеж.
	if entry.PaymentID != nil {
		t.Errorf("payment id = %v, want nil", *entry.PaymentID)
	}
	if entry.PreviousStatus != models.StatusScoreUpdate || entry.NewStatus != models.StatusScoreUpdate {
		t.Errorf("transition = %s -> %s, want score_update -> score_update", entry.PreviousStatus, entry.NewStatus)
	}
	if entry.ScoreChange != -15 {
		t.Errorf("score change = %d, want -15", entry.ScoreChange)
	}
	if entry.Notes != "штраф за возврат товара" {
		t.Errorf("notes = %q", entry.Notes)
	}
}

func TestAdjustManualRequiresReason(t *testing.T) {
	db := setupTestDB(t)
	scores := NewScoreService(db)

	client := models.Client{FullName: "Клиент", Score: models.DefaultClientScore}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	_, err := scores.AdjustManual(client.ID, 10, "")
	var validation ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if _, ok := validation["reason"]; !ok {
		t.Errorf("validation map %v has no reason field", validation)
	}

	// Без причины ничего не меняется.
	if got := getClientScore(t, db, client.ID); got != models.DefaultClientScore {
		t.Errorf("score = %d, want unchanged %d", got, models.DefaultClientScore)
	}
}

func TestAdjustManualClientNotFound(t *testing.T) {
	db := setupTestDB(t)
	scores := NewScoreService(db)

	_, err := scores.AdjustManual(12345, 10, "причина")
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}
