// rassrochka-crm/internal/handlers/payment_plan_handler.go
package handlers

import (
	"net/http"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"github.com/gin-gonic/gin"
)

// CreatePaymentPlanRequest — форма рассрочки с траншами.
type CreatePaymentPlanRequest struct {
	Name         string `json:"name" binding:"required"`
	Installments []struct {
		Formula     string `json:"formula" binding:"required"`
		MonthOffset int    `json:"monthOffset"`
		Day         int    `json:"day"`
	} `json:"installments" binding:"required,min=1"`
}

// ListPaymentPlansHandler возвращает все формы рассрочки с траншами.
func ListPaymentPlansHandler(c *gin.Context) {
	var plans []models.PaymentPlan
	if err := config.DB.Preload("Installments").Order("name ASC").Find(&plans).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment plans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": plans})
}

// CreatePaymentPlanHandler создаёт форму рассрочки.
func CreatePaymentPlanHandler(c *gin.Context) {
	var req CreatePaymentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}

	plan := models.PaymentPlan{Name: req.Name}
	for _, inst := range req.Installments {
		day := inst.Day
		if day <= 0 {
			day = 1
		}
		plan.Installments = append(plan.Installments, models.PlanInstallment{
			Formula:     inst.Formula,
			MonthOffset: inst.MonthOffset,
			Day:         day,
		})
	}

	if err := config.DB.Create(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить форму рассрочки"})
		return
	}

	c.JSON(http.StatusCreated, plan)
}
