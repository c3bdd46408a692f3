// rassrochka-crm/models/order.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Order описывает одну продажу в рассрочку. График платежей по заказу
// хранится отдельными записями Payment.
type Order struct {
	gorm.Model
	ClientID uint    `json:"clientId" gorm:"not null;index"`
	Client   *Client `json:"client,omitempty" gorm:"foreignKey:ClientID"`

	ProductName string  `json:"productName" gorm:"not null"`
	TotalAmount float64 `json:"totalAmount" gorm:"type:numeric(12,2);not null"`
	DownPayment float64 `json:"downPayment" gorm:"type:numeric(12,2)"`

	// PaymentPlanID — форма рассрочки, по которой сгенерирован график.
	// NULL, пока график не сгенерирован.
	PaymentPlanID *uint        `json:"paymentPlanId"`
	PaymentPlan   *PaymentPlan `json:"paymentPlan,omitempty" gorm:"foreignKey:PaymentPlanID"`

	StartDate *time.Time `json:"startDate"`
	Comment   string     `json:"comment"`

	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }
