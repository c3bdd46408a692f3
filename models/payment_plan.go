// rassrochka-crm/models/payment_plan.go
package models

import "gorm.io/gorm"

// PaymentPlan — форма рассрочки: набор траншей с формулами сумм.
// По плану и заказу генерируется график платежей (записи Payment).
type PaymentPlan struct {
	gorm.Model
	Name string `json:"name" gorm:"not null;uniqueIndex"`

	Installments []PlanInstallment `json:"installments" gorm:"foreignKey:PaymentPlanID"`
}

// PlanInstallment — один транш плана.
type PlanInstallment struct {
	gorm.Model
	PaymentPlanID uint `json:"paymentPlanId" gorm:"not null;index"`

	// Formula — выражение govaluate. Доступные параметры:
	// [Сумма], [Первоначальный взнос], [Остаток].
	// Например: "[Остаток] / 6".
	Formula string `json:"formula" gorm:"not null"`

	// MonthOffset — через сколько месяцев от даты начала заказа наступает платеж.
	MonthOffset int `json:"monthOffset" gorm:"not null"`

	// Day — число месяца, на которое назначается платеж.
	Day int `json:"day" gorm:"not null;default:1"`
}

func (PaymentPlan) TableName() string     { return "payment_plans" }
func (PlanInstallment) TableName() string { return "plan_installments" }
