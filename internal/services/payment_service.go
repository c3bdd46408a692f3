// rassrochka-crm/internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"rassrochka-crm/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Предельные значения из правил начисления рейтинга.
const (
	payBaseBonus       = 10 // базовый бонус за оплату
	payEarlyBonus      = 5  // оплата раньше срока
	payOverpayBonus    = 5  // внесено больше, чем по графику
	deferPenaltyCap    = 30 // максимальный штраф за перенос
	abandonPenalty     = 50 // отказ от оплаты
	outstandingPenalty = 20 // просрочка, найденная обходом
)

// PaymentResult — итог операции жизненного цикла: обновлённый платеж,
// применённая дельта и новый рейтинг клиента.
type PaymentResult struct {
	Payment     models.Payment `json:"payment"`
	ScoreChange int            `json:"scoreChange"`
	ClientScore int            `json:"clientScore"`
}

// PaymentService — движок переходов статусов платежа. Все четыре операции
// (Pay, Defer, Abandon, MarkOutstanding) выполняются как одна транзакция:
// чтение платежа под блокировкой, запись нового статуса, строка журнала и
// изменение рейтинга клиента. Частичного применения не бывает.
type PaymentService struct {
	db     *gorm.DB
	scores *ScoreService
}

func NewPaymentService(db *gorm.DB, scores *ScoreService) *PaymentService {
	return &PaymentService{db: db, scores: scores}
}

// lockPayment читает платеж с row-level блокировкой, чтобы две параллельные
// операции над одним платежом не прошли обе. SQLite блокировок строк не
// понимает (и сериализует записи сам), поэтому FOR UPDATE добавляем только
// на Postgres.
func (s *PaymentService) lockPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	query := tx
	if tx.Dialector.Name() == "postgres" {
		query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var payment models.Payment
	if err := query.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrPaymentNotFound, id)
		}
		return nil, err
	}
	return &payment, nil
}

// finishTransition записывает новое состояние платежа, строку журнала и
// дельту рейтинга — общий хвост всех четырёх операций.
func (s *PaymentService) finishTransition(tx *gorm.DB, payment *models.Payment, prev models.PaymentStatus, delta int, note string) error {
	if err := tx.Save(payment).Error; err != nil {
		return err
	}
	paymentID := payment.ID
	return s.scores.Adjust(tx, payment.ClientID, delta, note, &paymentID, string(prev), string(payment.Status))
}

// clientScore читает текущий рейтинг клиента в рамках транзакции.
func clientScore(tx *gorm.DB, clientID uint) (int, error) {
	var score int
	err := tx.Model(&models.Client{}).Select("score").Where("id = ?", clientID).Scan(&score).Error
	return score, err
}

// Pay проводит оплату платежа.
//
// Дельта рейтинга: +10 всегда, +5 если оплачено раньше due_date,
// +5 если внесено больше суммы по графику (итого не больше +20).
func (s *PaymentService) Pay(paymentID uint, amount float64, comment string) (*PaymentResult, error) {
	if amount <= 0 {
		return nil, ValidationError{"amount": "Сумма платежа должна быть больше нуля"}
	}

	var result PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if !payment.Status.IsActive() {
			return &InvalidTransitionError{PaymentID: payment.ID, From: payment.Status, To: models.PaymentStatusCompleted}
		}

		now := time.Now()
		delta := payBaseBonus
		if now.Before(payment.DueDate) {
			delta += payEarlyBonus
		}
		if amount > payment.Amount {
			delta += payOverpayBonus
		}

		prev := payment.Status
		payment.Status = models.PaymentStatusCompleted
		payment.PaidDate = &now
		payment.PaidAmount = amount
		if comment != "" {
			payment.Comment = comment
		}

		note := fmt.Sprintf("Payment completed with amount %.2f", amount)
		if err := s.finishTransition(tx, payment, prev, delta, note); err != nil {
			return err
		}

		score, err := clientScore(tx, payment.ClientID)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, ScoreChange: delta, ClientScore: score}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	InvalidateScoreCache(result.Payment.ClientID)
	return &result, nil
}

// deferInTx применяет перенос к уже заблокированному платежу и возвращает
// применённую дельту рейтинга. Общее тело Defer и DeferTo.
func (s *PaymentService) deferInTx(tx *gorm.DB, payment *models.Payment, deferredDays int, comment string) (int, error) {
	if !payment.Status.IsActive() {
		return 0, &InvalidTransitionError{PaymentID: payment.ID, From: payment.Status, To: models.PaymentStatusDeferred}
	}

	penalty := deferredDays
	if penalty > deferPenaltyCap {
		penalty = deferPenaltyCap
	}
	delta := -penalty

	prev := payment.Status
	payment.Status = models.PaymentStatusDeferred
	// Открытый вопрос исходной системы решён в пользу календарных дней.
	payment.DueDate = payment.DueDate.AddDate(0, 0, deferredDays)
	payment.DeferredDays += deferredDays
	if comment != "" {
		payment.Comment = comment
	}

	note := fmt.Sprintf("Payment deferred for %d days", deferredDays)
	if err := s.finishTransition(tx, payment, prev, delta, note); err != nil {
		return 0, err
	}
	return delta, nil
}

// Defer переносит платеж на deferredDays дней вперёд. Платеж остаётся
// активным: его можно оплатить, перенести ещё раз или отменить.
//
// Штраф: -1 за каждый день переноса, но не больше -30.
func (s *PaymentService) Defer(paymentID uint, deferredDays int, comment string) (*PaymentResult, error) {
	if deferredDays < 0 {
		return nil, ValidationError{"deferredDays": "Число дней переноса не может быть отрицательным"}
	}

	var result PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		delta, err := s.deferInTx(tx, payment, deferredDays, comment)
		if err != nil {
			return err
		}

		score, err := clientScore(tx, payment.ClientID)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, ScoreChange: delta, ClientScore: score}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	InvalidateScoreCache(result.Payment.ClientID)
	return &result, nil
}

// DeferTo переносит платеж на конкретную дату. Число дней переноса
// вычисляется от ТЕКУЩЕГО срока платежа уже под блокировкой строки: два
// параллельных переноса на одну и ту же дату не сдвинут срок дважды —
// второй увидит уже обновлённый срок и упадёт с ошибкой валидации.
func (s *PaymentService) DeferTo(paymentID uint, date time.Time, comment string) (*PaymentResult, error) {
	var result PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}

		days := int(date.Sub(payment.DueDate).Hours() / 24)
		if days <= 0 {
			return ValidationError{"date": "Новая дата должна быть позже текущего срока платежа"}
		}

		delta, err := s.deferInTx(tx, payment, days, comment)
		if err != nil {
			return err
		}

		score, err := clientScore(tx, payment.ClientID)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, ScoreChange: delta, ClientScore: score}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	InvalidateScoreCache(result.Payment.ClientID)
	return &result, nil
}

// Abandon отмечает платеж как отказ клиента. Штраф фиксированный: -50.
func (s *PaymentService) Abandon(paymentID uint, comment string) (*PaymentResult, error) {
	var result PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if !payment.Status.IsActive() {
			return &InvalidTransitionError{PaymentID: payment.ID, From: payment.Status, To: models.PaymentStatusAbandoned}
		}

		prev := payment.Status
		payment.Status = models.PaymentStatusAbandoned
		if comment != "" {
			payment.Comment = comment
		}

		if err := s.finishTransition(tx, payment, prev, -abandonPenalty, "Payment abandoned"); err != nil {
			return err
		}

		score, err := clientScore(tx, payment.ClientID)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, ScoreChange: -abandonPenalty, ClientScore: score}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	InvalidateScoreCache(result.Payment.ClientID)
	return &result, nil
}

// MarkOutstanding переводит просроченный запланированный платеж в outstanding.
// Вызывается обходом просрочек; допустим только из scheduled и только если
// срок уже прошёл. Штраф фиксированный: -20.
func (s *PaymentService) MarkOutstanding(paymentID uint) (*PaymentResult, error) {
	var result PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		payment, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusScheduled || !payment.DueDate.Before(time.Now()) {
			return &InvalidTransitionError{PaymentID: payment.ID, From: payment.Status, To: models.PaymentStatusOutstanding}
		}

		prev := payment.Status
		payment.Status = models.PaymentStatusOutstanding

		if err := s.finishTransition(tx, payment, prev, -outstandingPenalty, "Payment marked as outstanding"); err != nil {
			return err
		}

		score, err := clientScore(tx, payment.ClientID)
		if err != nil {
			return err
		}
		result = PaymentResult{Payment: *payment, ScoreChange: -outstandingPenalty, ClientScore: score}
		return nil
	})
	if err != nil {
		return nil, wrapTxError(err)
	}

	InvalidateScoreCache(result.Payment.ClientID)
	return &result, nil
}
