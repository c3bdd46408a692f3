// rassrochka-crm/models/payment_history.go
package models

import "time"

// StatusScoreUpdate — псевдостатус для ручной корректировки рейтинга,
// не привязанной к конкретному платежу. В таких записях
// PreviousStatus = NewStatus = "score_update", а PaymentID = NULL.
const StatusScoreUpdate = "score_update"

// PaymentHistory — журнал всех переходов статусов и изменений рейтинга.
// Записи только добавляются: ни обновлений, ни удалений нигде в коде нет.
// Сумма ScoreChange по клиенту, проигранная по порядку, всегда даёт его
// текущий Score — это главный инвариант аудита.
type PaymentHistory struct {
	ID uint `json:"id" gorm:"primaryKey"`

	// PaymentID — NULL для корректировок уровня клиента (score_update).
	PaymentID *uint    `json:"paymentId" gorm:"index"`
	Payment   *Payment `json:"payment,omitempty" gorm:"foreignKey:PaymentID"`

	ClientID uint `json:"clientId" gorm:"not null;index"`

	PreviousStatus string `json:"previousStatus" gorm:"type:varchar(20);not null"`
	NewStatus      string `json:"newStatus" gorm:"type:varchar(20);not null"`

	ScoreChange int    `json:"scoreChange" gorm:"not null"`
	Notes       string `json:"notes"`

	CreatedAt time.Time `json:"createdAt"`
}

func (PaymentHistory) TableName() string { return "payment_histories" }
