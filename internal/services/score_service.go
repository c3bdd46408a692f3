// rassrochka-crm/internal/services/score_service.go
package services

import (
	"errors"
	"fmt"
	"log/slog"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"gorm.io/gorm"
)

// ScoreService — единственная точка записи в поле clients.score.
// Каждое изменение рейтинга сопровождается записью в payment_histories
// в той же транзакции: либо зафиксируются обе, либо ни одной.
type ScoreService struct {
	db *gorm.DB
}

func NewScoreService(db *gorm.DB) *ScoreService {
	return &ScoreService{db: db}
}

// Adjust меняет рейтинг клиента на delta и добавляет строку журнала.
// Выполняется внутри транзакции вызывающего (tx): движок платежей передаёт
// сюда свою транзакцию, чтобы запись статуса, журнал и рейтинг были единым
// атомарным блоком.
//
// paymentID равен nil для корректировок уровня клиента (prev/next при этом
// должны быть models.StatusScoreUpdate).
func (s *ScoreService) Adjust(tx *gorm.DB, clientID uint, delta int, reason string, paymentID *uint, prevStatus, newStatus string) error {
	result := tx.Model(&models.Client{}).
		Where("id = ?", clientID).
		Update("score", gorm.Expr("score + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: id=%d", ErrClientNotFound, clientID)
	}

	entry := models.PaymentHistory{
		PaymentID:      paymentID,
		ClientID:       clientID,
		PreviousStatus: prevStatus,
		NewStatus:      newStatus,
		ScoreChange:    delta,
		Notes:          reason,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	return nil
}

// AdjustManual — ручная корректировка рейтинга, не привязанная к платежу.
// Оформляется псевдопереходом "score_update" с NULL вместо ID платежа.
func (s *ScoreService) AdjustManual(clientID uint, delta int, reason string) (int, error) {
	if reason == "" {
		return 0, ValidationError{"reason": "Укажите причину корректировки"}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, clientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id=%d", ErrClientNotFound, clientID)
			}
			return err
		}
		return s.Adjust(tx, clientID, delta, reason, nil, models.StatusScoreUpdate, models.StatusScoreUpdate)
	})
	if err != nil {
		return 0, wrapTxError(err)
	}

	InvalidateScoreCache(clientID)

	var score int
	if err := s.db.Model(&models.Client{}).Select("score").Where("id = ?", clientID).Scan(&score).Error; err != nil {
		return 0, wrapTxError(err)
	}
	slog.Info("Рейтинг клиента скорректирован вручную", "client_id", clientID, "delta", delta, "score", score)
	return score, nil
}

// InvalidateScoreCache сбрасывает кэш рейтинга клиента в Redis.
// Без Redis (RDB == nil) просто ничего не делает.
func InvalidateScoreCache(clientID uint) {
	if config.RDB == nil {
		return
	}
	cacheKey := fmt.Sprintf("client:%d:score", clientID)
	if err := config.RDB.Del(config.Ctx, cacheKey).Err(); err != nil {
		slog.Warn("Не удалось сбросить кэш рейтинга", "client_id", clientID, "error", err)
	}
}
