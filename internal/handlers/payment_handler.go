// rassrochka-crm/internal/handlers/payment_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// PayPaymentRequest определяет структуру для входящих данных оплаты.
type PayPaymentRequest struct {
	Amount  float64 `json:"amount" binding:"required"`
	Comment string  `json:"comment"`
}

// SkipPaymentRequest — запрос на перенос платежа на новую дату.
type SkipPaymentRequest struct {
	Date    string `json:"date" binding:"required"`
	Comment string `json:"comment"`
}

// CancelPaymentRequest — запрос на отказ от платежа.
type CancelPaymentRequest struct {
	Comment string `json:"comment"`
}

// Receipt — квитанция, возвращаемая после успешной оплаты.
type Receipt struct {
	Number        string `json:"number"`
	AmountInWords string `json:"amountInWords"`
}

func paymentIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID платежа"})
		return 0, false
	}
	return uint(id), true
}

// PayPaymentHandler проводит оплату платежа: статус completed, бонус к
// рейтингу клиента, строка в журнале — всё одной транзакцией в движке.
func PayPaymentHandler(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	var req PayPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"amount": "Не указана сумма платежа"}})
		return
	}

	result, err := paymentService.Pay(id, req.Amount, req.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Квитанция: номер и сумма прописью для печатной формы.
	receipt := Receipt{
		Number:        uuid.New().String(),
		AmountInWords: num2words.Convert(int(result.Payment.PaidAmount)),
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":     result.Payment,
		"scoreChange": result.ScoreChange,
		"clientScore": result.ClientScore,
		"receipt":     receipt,
	})
}

// SkipPaymentHandler переносит платеж на указанную дату. Число дней переноса
// вычисляется как разница между текущим сроком платежа и запрошенной датой.
func SkipPaymentHandler(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	var req SkipPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"date": "Не указана новая дата платежа"}})
		return
	}

	newDate, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"date": "Неверный формат даты. Используйте YYYY-MM-DD."}})
		return
	}

	// Число дней переноса считает сам движок от актуального срока платежа,
	// уже под блокировкой строки.
	result, err := paymentService.DeferTo(id, newDate, req.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":     result.Payment,
		"scoreChange": result.ScoreChange,
		"clientScore": result.ClientScore,
	})
}

// CancelPaymentHandler отмечает платеж как отказ клиента.
func CancelPaymentHandler(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	// Тело запроса необязательно: комментарий может отсутствовать.
	var req CancelPaymentRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Неверное тело запроса"})
			return
		}
	}

	result, err := paymentService.Abandon(id, req.Comment)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment":     result.Payment,
		"scoreChange": result.ScoreChange,
		"clientScore": result.ClientScore,
	})
}

// SweepOutstandingHandler запускает обход просрочек. Эндпоинт дергается
// планировщиком (cron) или вручную из интерфейса администратора.
func SweepOutstandingHandler(c *gin.Context) {
	report, err := paymentService.SweepOutstanding()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PaymentListItem - структура для отображения данных в списке на фронтенде.
type PaymentListItem struct {
	models.Payment
	ClientFullName string `json:"clientFullName"`
	ProductName    string `json:"productName"`
}

func paymentListQuery(c *gin.Context) *gorm.DB {
	query := config.DB.Table("payments p").
		Select(`
			p.*,
			cl.full_name as client_full_name,
			o.product_name
		`).
		Joins("LEFT JOIN clients cl ON p.client_id = cl.id").
		Joins("LEFT JOIN orders o ON p.order_id = o.id").
		Where("p.deleted_at IS NULL")

	if status := c.Query("status"); status != "" {
		query = query.Where("p.status = ?", status)
	}
	if clientID := c.Query("client_id"); clientID != "" {
		query = query.Where("p.client_id = ?", clientID)
	}
	if orderID := c.Query("order_id"); orderID != "" {
		query = query.Where("p.order_id = ?", orderID)
	}
	if dueFrom := c.Query("due_from"); dueFrom != "" {
		query = query.Where("p.due_date >= ?", dueFrom)
	}
	if dueTo := c.Query("due_to"); dueTo != "" {
		query = query.Where("p.due_date <= ?", dueTo)
	}
	if search := c.Query("search"); search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(`LOWER(cl.full_name) LIKE ? OR
                             LOWER(cl.iin) LIKE ? OR
                             LOWER(o.product_name) LIKE ?`,
			searchPattern, searchPattern, searchPattern)
	}

	return query
}

// ListPaymentsHandler возвращает отфильтрованный и пагинированный список платежей.
func ListPaymentsHandler(c *gin.Context) {
	var payments []PaymentListItem
	var totalRows int64

	query := paymentListQuery(c).Order("p.due_date ASC")

	countQuery := query
	if err := countQuery.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count payments"})
		return
	}

	if err := query.Scopes(Paginate(c)).Scan(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	if payments == nil {
		payments = make([]PaymentListItem, 0)
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, payments, totalRows))
}

// GetPaymentHandler возвращает один платеж со связанным клиентом и заказом.
func GetPaymentHandler(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	var payment models.Payment
	err := config.DB.Preload("Client").Preload("Order").First(&payment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Платеж не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось получить данные платежа"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// PaymentHistoryHandler возвращает журнал переходов одного платежа.
func PaymentHistoryHandler(c *gin.Context) {
	id, ok := paymentIDParam(c)
	if !ok {
		return
	}

	var count int64
	if err := config.DB.Model(&models.Payment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Платеж не найден"})
		return
	}

	var history []models.PaymentHistory
	if err := config.DB.Where("payment_id = ?", id).Order("created_at ASC, id ASC").Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// ExportPaymentsHandler - обработчик для экспорта платежей в Excel.
func ExportPaymentsHandler(c *gin.Context) {
	var payments []PaymentListItem

	query := paymentListQuery(c).Order("p.due_date ASC")
	if err := query.Scan(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data for export"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Платежи"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)

	headers := []string{"ФИО клиента", "Товар", "Сумма", "Срок оплаты", "Статус", "Дата оплаты", "Дней переноса", "Комментарий"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, p := range payments {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), p.ClientFullName)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), p.ProductName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), p.Amount)
		if !p.DueDate.IsZero() {
			f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), p.DueDate.Format("02.01.2006"))
		}
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), string(p.Status))
		if p.PaidDate != nil {
			f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), p.PaidDate.Format("02.01.2006"))
		}
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), p.DeferredDays)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), p.Comment)
	}

	fileName := fmt.Sprintf("payments_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
