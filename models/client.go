// rassrochka-crm/models/client.go
package models

import (
	"gorm.io/gorm"
)

// DefaultClientScore — стартовый рейтинг нового клиента.
// Интерфейс отображает рейтинг по шкале 0–120, но в БД он не ограничен.
const DefaultClientScore = 100

// Client представляет клиента, покупающего товары в рассрочку.
type Client struct {
	gorm.Model
	FullName string `json:"fullName" gorm:"not null"`
	Phone    string `json:"phone"`
	IIN      string `json:"iin" gorm:"uniqueIndex"`
	Address  string `json:"address"`
	Comment  string `json:"comment"`

	// Score — рейтинг надёжности клиента. Меняется ТОЛЬКО через
	// services.ScoreService: каждое изменение сопровождается записью
	// в payment_histories. Прямых записей в это поле быть не должно.
	Score int `json:"score" gorm:"not null;default:100"`

	Orders []Order `json:"orders,omitempty" gorm:"foreignKey:ClientID"`
}

func (Client) TableName() string { return "clients" }
