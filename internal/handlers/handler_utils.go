// rassrochka-crm/internal/handlers/handler_utils.go
package handlers

import (
	"errors"
	"net/http"

	"rassrochka-crm/config"
	"rassrochka-crm/internal/services"

	"github.com/gin-gonic/gin"
)

var (
	scoreService   *services.ScoreService
	paymentService *services.PaymentService
)

// InitServices создаёт сервисы поверх config.DB. Вызывается из main после
// подключения к БД (тесты подставляют свою БД в config.DB и вызывают то же).
func InitServices() {
	scoreService = services.NewScoreService(config.DB)
	paymentService = services.NewPaymentService(config.DB, scoreService)
}

// PaymentEngine возвращает общий движок платежей. Им же пользуется фоновый
// обход просрочки в main, чтобы не плодить второй экземпляр сервисов.
func PaymentEngine() *services.PaymentService {
	return paymentService
}

// respondServiceError переводит ошибки сервисного слоя в HTTP-ответы.
// Валидация отдаётся картой поле→сообщение, недопустимый переход — отдельным
// статусом 409, чтобы фронтенд отличал его от ошибок формы.
func respondServiceError(c *gin.Context, err error) {
	var invalid *services.InvalidTransitionError
	var validation services.ValidationError

	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Платеж не найден"})
	case errors.Is(err, services.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Клиент не найден"})
	case errors.Is(err, services.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Заказ не найден"})
	case errors.Is(err, services.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Форма рассрочки не найдена"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error":         "Операция недопустима из текущего статуса платежа",
			"currentStatus": invalid.From,
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation})
	case errors.Is(err, services.ErrTransactionFailed):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось завершить транзакцию, повторите попытку"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
	}
}
