// rassrochka-crm/internal/handlers/client_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateClientRequest определяет структуру для создания клиента.
type CreateClientRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone"`
	IIN      string `json:"iin"`
	Address  string `json:"address"`
	Comment  string `json:"comment"`
}

// AdjustScoreRequest — ручная корректировка рейтинга клиента.
type AdjustScoreRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func clientIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректный ID клиента"})
		return 0, false
	}
	return uint(id), true
}

// CreateClientHandler создаёт нового клиента со стартовым рейтингом.
func CreateClientHandler(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"fullName": "Не указано ФИО клиента"}})
		return
	}

	client := models.Client{
		FullName: req.FullName,
		Phone:    req.Phone,
		IIN:      req.IIN,
		Address:  req.Address,
		Comment:  req.Comment,
		Score:    models.DefaultClientScore,
	}

	if err := config.DB.Create(&client).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сохранить клиента"})
		return
	}

	c.JSON(http.StatusCreated, client)
}

// ListClientsHandler возвращает пагинированный список клиентов.
func ListClientsHandler(c *gin.Context) {
	var clients []models.Client
	var totalRows int64

	query := config.DB.Model(&models.Client{})

	if search := c.Query("search"); search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where(`LOWER(full_name) LIKE ? OR LOWER(iin) LIKE ? OR phone LIKE ?`,
			searchPattern, searchPattern, searchPattern)
	}
	if scoreBelow := c.Query("score_below"); scoreBelow != "" {
		query = query.Where("score < ?", scoreBelow)
	}

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count clients"})
		return
	}

	if err := query.Scopes(Paginate(c)).Order("full_name ASC").Find(&clients).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clients"})
		return
	}

	if clients == nil {
		clients = make([]models.Client, 0)
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, clients, totalRows))
}

// GetClientHandler возвращает клиента. Рейтинг сперва ищем в кэше Redis,
// при промахе читаем из БД и кладём в кэш (сбрасывается сервисом рейтинга
// при каждом изменении).
func GetClientHandler(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}

	var client models.Client
	if err := config.DB.First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Клиент не найден"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if config.RDB != nil {
		cacheKey := fmt.Sprintf("client:%d:score", id)
		cached, err := config.RDB.Get(config.Ctx, cacheKey).Result()
		if err == nil {
			if score, convErr := strconv.Atoi(cached); convErr == nil {
				client.Score = score
			}
		} else if errors.Is(err, redis.Nil) {
			config.RDB.Set(config.Ctx, cacheKey, client.Score, 0)
		}
	}

	c.JSON(http.StatusOK, client)
}

// ClientHistoryHandler возвращает полный журнал изменений рейтинга клиента:
// переходы платежей и ручные корректировки, по порядку.
func ClientHistoryHandler(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}

	var count int64
	if err := config.DB.Model(&models.Client{}).Where("id = ?", id).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Клиент не найден"})
		return
	}

	var history []models.PaymentHistory
	if err := config.DB.Where("client_id = ?", id).Order("created_at ASC, id ASC").Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch client history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

// AdjustClientScoreHandler — ручная корректировка рейтинга. Оформляется
// записью "score_update" в журнале, как и любое другое изменение рейтинга.
func AdjustClientScoreHandler(c *gin.Context) {
	id, ok := clientIDParam(c)
	if !ok {
		return
	}

	var req AdjustScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"delta": "Укажите ненулевую дельту и причину"}})
		return
	}

	score, err := scoreService.AdjustManual(id, req.Delta, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"clientScore": score})
}

// DebtorResponse - строка в списке должников.
type DebtorResponse struct {
	ClientID      uint    `json:"clientId"`
	FullName      string  `json:"fullName"`
	Phone         string  `json:"phone"`
	Score         int     `json:"score"`
	OverdueCount  int     `json:"overdueCount"`
	OverdueAmount float64 `json:"overdueAmount"`
}

// ListDebtorsHandler возвращает список должников: клиентов, у которых есть
// платежи в статусе outstanding.
func ListDebtorsHandler(c *gin.Context) {
	var debtors []DebtorResponse
	var totalRows int64

	query := config.DB.Table("clients").
		Select(`
            clients.id as client_id,
            clients.full_name,
            clients.phone,
            clients.score,
            COUNT(p.id) as overdue_count,
            COALESCE(SUM(p.amount), 0) as overdue_amount
        `).
		Joins("JOIN payments p ON p.client_id = clients.id AND p.status = ? AND p.deleted_at IS NULL", models.PaymentStatusOutstanding).
		Where("clients.deleted_at IS NULL").
		Group("clients.id, clients.full_name, clients.phone, clients.score")

	if err := query.Count(&totalRows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count debtors"})
		return
	}

	paginatedQuery := query.Scopes(Paginate(c)).Order("overdue_amount DESC")
	if err := paginatedQuery.Scan(&debtors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch debtors"})
		return
	}

	if debtors == nil {
		debtors = make([]DebtorResponse, 0)
	}

	c.JSON(http.StatusOK, CreatePaginatedResponse(c, debtors, totalRows))
}
