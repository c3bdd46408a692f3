// rassrochka-crm/models/payment.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus представляет статус платежа
type PaymentStatus string

const (
	PaymentStatusScheduled   PaymentStatus = "scheduled"   // Запланированный платеж
	PaymentStatusCompleted   PaymentStatus = "completed"   // Оплаченный платеж (UI показывает как "settled")
	PaymentStatusDeferred    PaymentStatus = "deferred"    // Отложенный платеж, остаётся активным
	PaymentStatusAbandoned   PaymentStatus = "abandoned"   // Клиент отказался платить
	PaymentStatusOutstanding PaymentStatus = "outstanding" // Просроченный платеж (помечается автоматически)
)

// IsActive сообщает, допускает ли статус дальнейшие переходы.
// Активны только scheduled и deferred; completed, abandoned и outstanding —
// конечные состояния, из них движок переходов не разрешает.
func (s PaymentStatus) IsActive() bool {
	return s == PaymentStatusScheduled || s == PaymentStatusDeferred
}

// Payment представляет один платеж графика рассрочки по заказу.
type Payment struct {
	gorm.Model
	OrderID uint   `json:"orderId" gorm:"not null;index"`
	Order   *Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`

	// ClientID дублируется из заказа, чтобы движок менял рейтинг клиента
	// в той же транзакции без лишнего JOIN.
	ClientID uint    `json:"clientId" gorm:"not null;index"`
	Client   *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`

	Status PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'scheduled';index"`

	// Amount — ожидаемая сумма платежа по графику.
	Amount float64 `json:"amount" gorm:"type:numeric(12,2);not null"`

	// PaidAmount — фактически внесённая сумма. Заполняется только при оплате.
	PaidAmount float64 `json:"paidAmount" gorm:"type:numeric(12,2)"`

	DueDate  time.Time  `json:"dueDate" gorm:"not null;index"`
	PaidDate *time.Time `json:"paidDate"`

	// DeferredDays — накопленное число дней, на которое платеж переносился.
	DeferredDays int `json:"deferredDays" gorm:"not null;default:0"`

	Comment string `json:"comment"`
}

func (Payment) TableName() string { return "payments" }
