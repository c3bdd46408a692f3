// rassrochka-crm/internal/services/sweeper.go
package services

import (
	"errors"
	"log/slog"
	"time"

	"rassrochka-crm/models"
)

// SweepReport — итог одного обхода просрочек.
type SweepReport struct {
	Checked int `json:"checked"` // сколько платежей попало в выборку
	Marked  int `json:"marked"`  // сколько переведено в outstanding
	Skipped int `json:"skipped"` // статус успел измениться между выборкой и транзакцией
	Failed  int `json:"failed"`  // ошибки отдельных платежей
}

// SweepOutstanding находит все запланированные платежи с прошедшим сроком
// и переводит каждый в outstanding. Каждый платеж обрабатывается своей
// транзакцией: сбой на одном не откатывает и не останавливает остальные.
func (s *PaymentService) SweepOutstanding() (*SweepReport, error) {
	var ids []uint
	err := s.db.Model(&models.Payment{}).
		Where("status = ? AND due_date < ?", models.PaymentStatusScheduled, time.Now()).
		Order("due_date ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, wrapTxError(err)
	}

	report := SweepReport{Checked: len(ids)}
	for _, id := range ids {
		if _, err := s.MarkOutstanding(id); err != nil {
			// Платеж могли оплатить или перенести, пока шёл обход, — это
			// не сбой, просто пропускаем его.
			var invalid *InvalidTransitionError
			if errors.As(err, &invalid) || errors.Is(err, ErrPaymentNotFound) {
				report.Skipped++
				continue
			}
			report.Failed++
			slog.Error("Не удалось пометить платеж просроченным", "payment_id", id, "error", err)
			continue
		}
		report.Marked++
	}

	slog.Info("Обход просрочек завершён",
		"checked", report.Checked, "marked", report.Marked,
		"skipped", report.Skipped, "failed", report.Failed)
	return &report, nil
}

// StartSweepLoop запускает периодический обход просрочек. Используется из
// main, когда задан SWEEP_INTERVAL; останавливается вместе с процессом.
func (s *PaymentService) StartSweepLoop(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if _, err := s.SweepOutstanding(); err != nil {
				slog.Error("Обход просрочек не выполнен", "error", err)
			}
		}
	}()
}
