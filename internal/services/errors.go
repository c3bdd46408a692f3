// rassrochka-crm/internal/services/errors.go
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"rassrochka-crm/models"
)

var (
	// ErrPaymentNotFound — платеж с указанным ID не существует.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrClientNotFound — клиент не существует (или не привязан к платежу).
	ErrClientNotFound = errors.New("client not found")
	// ErrOrderNotFound — заказ не существует.
	ErrOrderNotFound = errors.New("order not found")
	// ErrPlanNotFound — форма рассрочки не существует.
	ErrPlanNotFound = errors.New("payment plan not found")

	// ErrTransactionFailed — транзакция не зафиксировалась (блокировки, сбой
	// хранилища). Операция полностью откатилась, вызов можно повторить.
	ErrTransactionFailed = errors.New("transaction failed")
)

// InvalidTransitionError возвращается, когда запрошенная операция недопустима
// из текущего статуса платежа. Никаких изменений при этом не происходит.
type InvalidTransitionError struct {
	PaymentID uint
	From      models.PaymentStatus
	To        models.PaymentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("payment %d: invalid transition %s -> %s", e.PaymentID, e.From, e.To)
}

// ValidationError — ошибки входных данных по полям. Обработчики отдают карту
// клиенту как есть, чтобы фронтенд показал сообщения рядом с полями.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, f := range fields {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f + ": " + e[f])
	}
	return b.String()
}

// wrapTxError помечает ошибку фиксации транзакции как retryable, не теряя
// доменные ошибки, определённые выше.
func wrapTxError(err error) error {
	if err == nil {
		return nil
	}
	var invalid *InvalidTransitionError
	var validation ValidationError
	switch {
	case errors.Is(err, ErrPaymentNotFound),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrPlanNotFound),
		errors.As(err, &invalid),
		errors.As(err, &validation):
		return err
	}
	return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}
