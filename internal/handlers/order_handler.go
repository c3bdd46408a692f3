// rassrochka-crm/internal/handlers/order_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateOrderRequest определяет структуру для создания заказа в рассрочку.
type CreateOrderRequest struct {
	ClientID    uint    `json:"clientId" binding:"required"`
	ProductName string  `json:"productName" binding:"required"`
	TotalAmount float64 `json:"totalAmount" binding:"required"`
	DownPayment float64 `json:"downPayment"`
	StartDate   string  `json:"startDate"`
	Comment     string  `json:"comment"`
}

// CreateOrderHandler создаёт заказ. График платежей генерируется отдельным
// запросом после выбора формы рассрочки.
func CreateOrderHandler(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Неверные данные: " + err.Error()})
		return
	}

	if req.TotalAmount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"totalAmount": "Сумма заказа должна быть больше нуля"}})
		return
	}
	if req.DownPayment < 0 || req.DownPayment > req.TotalAmount {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"downPayment": "Первоначальный взнос не может превышать сумму заказа"}})
		return
	}

	var client models.Client
	if err := config.DB.First(&client, req.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Клиент не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка при поиске клиента"})
		return
	}

	order := models.Order{
		ClientID:    req.ClientID,
		ProductName: req.ProductName,
		TotalAmount: req.TotalAmount,
		DownPayment: req.DownPayment,
		Comment:     req.Comment,
	}

	if req.StartDate != "" {
		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"startDate": "Неверный формат даты. Используйте YYYY-MM-DD."}})
			return
		}
		order.StartDate = &startDate
	}

	if err := config.DB.Create(&order).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить заказ"})
		return
	}

	c.JSON(http.StatusCreated, order)
}

// ListOrdersHandler возвращает пагинированный список заказов клиента.
func ListOrdersHandler(c *gin.Context) {
	var orders []models.Order
	var totalRows int64

	query := config.DB.Model(&models.Order{}).Preload("Client")

	if clientID := c.Query("client_id"); clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
		return
	}

	if err := query.Scopes(Paginate(c)).Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	if orders == nil {
		orders = make([]models.Order, 0)
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, orders, totalRows))
}

// orderIDParam извлекает ID заказа из пути. При ошибке сам пишет ответ 400.
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID заказа"})
		return 0, false
	}
	return uint(id), true
}

// GetOrderHandler возвращает заказ с графиком платежей.
func GetOrderHandler(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}

	var order models.Order
	if err := config.DB.Preload("Client").Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("payments.due_date ASC")
	}).First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Заказ не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GenerateScheduleHandler генерирует график платежей для заказа на основе
// выбранной формы рассрочки. Старые запланированные платежи удаляются,
// платежи в других статусах (оплаченные, отложенные и т.д.) не трогаем.
func GenerateScheduleHandler(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var body struct {
		PaymentPlanID uint `json:"paymentPlanId" binding:"required"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Не указана форма рассрочки"})
		return
	}

	var order models.Order
	var plan models.PaymentPlan

	// 1. Находим заказ и форму рассрочки
	if err := config.DB.First(&order, orderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Заказ не найден"})
		return
	}
	if err := config.DB.Preload("Installments").First(&plan, body.PaymentPlanID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Форма рассрочки не найдена"})
		return
	}
	if len(plan.Installments) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "В форме рассрочки нет ни одного транша"})
		return
	}

	startDate := time.Now()
	if order.StartDate != nil {
		startDate = *order.StartDate
	}

	// 2. Готовим параметры для вычисления формул
	parameters := make(map[string]interface{})
	parameters["Сумма"] = order.TotalAmount
	parameters["Первоначальный взнос"] = order.DownPayment
	parameters["Остаток"] = order.TotalAmount - order.DownPayment

	var newPayments []models.Payment

	// 3. Генерируем записи графика
	for _, installment := range plan.Installments {
		expression, err := govaluate.NewEvaluableExpression(installment.Formula)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Ошибка в формуле '%s': %v", installment.Formula, err)})
			return
		}

		result, err := expression.Evaluate(parameters)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Не удалось вычислить формулу: %v", err)})
			return
		}

		amount, ok := result.(float64)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Результат формулы не является числом"})
			return
		}

		base := startDate.AddDate(0, installment.MonthOffset, 0)
		dueDate := time.Date(base.Year(), base.Month(), installment.Day, 0, 0, 0, 0, time.UTC)

		newPayments = append(newPayments, models.Payment{
			OrderID:  order.ID,
			ClientID: order.ClientID,
			Status:   models.PaymentStatusScheduled,
			Amount:   amount,
			DueDate:  dueDate,
		})
	}

	// 4. Заменяем старый график одной транзакцией
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ? AND status = ?", order.ID, models.PaymentStatusScheduled).
			Delete(&models.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&newPayments).Error; err != nil {
			return err
		}
		return tx.Model(&order).Update("payment_plan_id", plan.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить график платежей"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "График платежей успешно сгенерирован", "payments": newPayments})
}
