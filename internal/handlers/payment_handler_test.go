// rassrochka-crm/internal/handlers/payment_handler_test.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"rassrochka-crm/config"
	"rassrochka-crm/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupRouter поднимает тестовую БД и маршруты платежей без middleware
// аутентификации: здесь проверяется поведение обработчиков, не авторизация.
func setupRouter(t *testing.T) (*gorm.DB, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Client{},
		&models.Order{},
		&models.Payment{},
		&models.PaymentHistory{},
		&models.PaymentPlan{},
		&models.PlanInstallment{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	config.DB = db
	config.RDB = nil
	InitServices()

	r := gin.New()
	api := r.Group("/api")
	api.GET("/payments", ListPaymentsHandler)
	api.POST("/payments/sweep-outstanding", SweepOutstandingHandler)
	api.GET("/payments/:id", GetPaymentHandler)
	api.GET("/payments/:id/history", PaymentHistoryHandler)
	api.PUT("/payments/:id/pay", PayPaymentHandler)
	api.PUT("/payments/:id/skip", SkipPaymentHandler)
	api.PUT("/payments/:id/cancel", CancelPaymentHandler)
	api.PUT("/clients/:id/score", AdjustClientScoreHandler)
	api.GET("/orders/:id", GetOrderHandler)
	api.POST("/orders/:id/generate-schedule", GenerateScheduleHandler)
	return db, r
}

// seedIINSeq выдаёт уникальные ИИН для тестовых клиентов: на поле стоит
// уникальный индекс, и повторный пустой ИИН нарушает его.
var seedIINSeq int64

func seedPayment(t *testing.T, db *gorm.DB, amount float64, dueDate time.Time) *models.Payment {
	t.Helper()

	client := models.Client{
		FullName: "Иванов Иван",
		IIN:      fmt.Sprintf("%012d", atomic.AddInt64(&seedIINSeq, 1)),
		Score:    models.DefaultClientScore,
	}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	order := models.Order{ClientID: client.ID, ProductName: "Стиральная машина", TotalAmount: amount * 6}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	payment := models.Payment{
		OrderID:  order.ID,
		ClientID: client.ID,
		Status:   models.PaymentStatusScheduled,
		Amount:   amount,
		DueDate:  dueDate,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return &payment
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
		}
	}
	return w, parsed
}

func TestPayEndpoint(t *testing.T) {
	db, r := setupRouter(t)
	payment := seedPayment(t, db, 100, time.Now().Add(48*time.Hour))

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/pay", payment.ID), `{"amount": 100}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	if score := resp["clientScore"].(float64); score != float64(models.DefaultClientScore+15) {
		t.Errorf("clientScore = %v, want %d", score, models.DefaultClientScore+15)
	}
	paymentJSON := resp["payment"].(map[string]interface{})
	if paymentJSON["status"] != "completed" {
		t.Errorf("payment status = %v, want completed", paymentJSON["status"])
	}

	receipt := resp["receipt"].(map[string]interface{})
	if receipt["number"] == "" {
		t.Error("receipt number is empty")
	}
	if words, _ := receipt["amountInWords"].(string); words == "" {
		t.Error("amount in words is empty")
	}
}

func TestPayEndpointMissingAmount(t *testing.T) {
	db, r := setupRouter(t)
	payment := seedPayment(t, db, 100, time.Now().Add(48*time.Hour))

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/pay", payment.ID), `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	fields := resp["errors"].(map[string]interface{})
	if _, ok := fields["amount"]; !ok {
		t.Errorf("errors map %v has no amount field", fields)
	}
}

func TestPayEndpointNotFound(t *testing.T) {
	_, r := setupRouter(t)

	w, _ := doJSON(t, r, http.MethodPut, "/api/payments/9999/pay", `{"amount": 100}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestSkipEndpoint(t *testing.T) {
	db, r := setupRouter(t)
	due := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	payment := seedPayment(t, db, 100, due)

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/skip", payment.ID), `{"date": "2030-01-25"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Перенос на 15 дней: штраф -15, срок сдвинут на запрошенную дату.
	if change := resp["scoreChange"].(float64); change != -15 {
		t.Errorf("scoreChange = %v, want -15", change)
	}
	paymentJSON := resp["payment"].(map[string]interface{})
	if paymentJSON["status"] != "deferred" {
		t.Errorf("payment status = %v, want deferred", paymentJSON["status"])
	}
	if days := paymentJSON["deferredDays"].(float64); days != 15 {
		t.Errorf("deferredDays = %v, want 15", days)
	}
}

func TestSkipEndpointDateNotLater(t *testing.T) {
	db, r := setupRouter(t)
	due := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	payment := seedPayment(t, db, 100, due)

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/skip", payment.ID), `{"date": "2030-01-10"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	fields := resp["errors"].(map[string]interface{})
	if _, ok := fields["date"]; !ok {
		t.Errorf("errors map %v has no date field", fields)
	}
}

func TestSkipEndpointRepeatSameDate(t *testing.T) {
	db, r := setupRouter(t)
	due := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	payment := seedPayment(t, db, 100, due)

	w, _ := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/skip", payment.ID), `{"date": "2030-01-25"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first skip: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Повтор на ту же дату: срок уже сдвинут, второй запрос отклоняется
	// и штраф не списывается второй раз.
	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/skip", payment.ID), `{"date": "2030-01-25"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("second skip: status = %d, want 400", w.Code)
	}
	fields := resp["errors"].(map[string]interface{})
	if _, ok := fields["date"]; !ok {
		t.Errorf("errors map %v has no date field", fields)
	}

	var fresh models.Payment
	if err := db.First(&fresh, payment.ID).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if fresh.DeferredDays != 15 {
		t.Errorf("deferred days = %d, want 15", fresh.DeferredDays)
	}
	var client models.Client
	if err := db.First(&client, payment.ClientID).Error; err != nil {
		t.Fatalf("reload client: %v", err)
	}
	if client.Score != models.DefaultClientScore-15 {
		t.Errorf("client score = %d, want %d", client.Score, models.DefaultClientScore-15)
	}
}

func TestCancelEndpointTwice(t *testing.T) {
	db, r := setupRouter(t)
	payment := seedPayment(t, db, 100, time.Now())

	w, _ := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/cancel", payment.ID), `{"comment": "клиент отказался"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first cancel: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/cancel", payment.ID), "")
	if w.Code != http.StatusConflict {
		t.Fatalf("second cancel: status = %d, want 409", w.Code)
	}
	if resp["currentStatus"] != "abandoned" {
		t.Errorf("currentStatus = %v, want abandoned", resp["currentStatus"])
	}
}

func TestSweepEndpoint(t *testing.T) {
	db, r := setupRouter(t)
	seedPayment(t, db, 100, time.Now().Add(-24*time.Hour))
	seedPayment(t, db, 200, time.Now().Add(24*time.Hour))

	w, resp := doJSON(t, r, http.MethodPost, "/api/payments/sweep-outstanding", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if marked := resp["marked"].(float64); marked != 1 {
		t.Errorf("marked = %v, want 1", marked)
	}
}

func TestAdjustScoreEndpoint(t *testing.T) {
	db, r := setupRouter(t)

	client := models.Client{FullName: "Петров Петр", Score: models.DefaultClientScore}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}

	w, resp := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/clients/%d/score", client.ID), `{"delta": -10, "reason": "возврат товара"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if score := resp["clientScore"].(float64); score != float64(models.DefaultClientScore-10) {
		t.Errorf("clientScore = %v, want %d", score, models.DefaultClientScore-10)
	}

	var entry models.PaymentHistory
	if err := db.Where("client_id = ?", client.ID).First(&entry).Error; err != nil {
		t.Fatalf("history entry not found: %v", err)
	}
	if entry.NewStatus != models.StatusScoreUpdate {
		t.Errorf("new status = %s, want score_update", entry.NewStatus)
	}
}

func TestGenerateScheduleEndpoint(t *testing.T) {
	db, r := setupRouter(t)

	client := models.Client{FullName: "Сидоров", Score: models.DefaultClientScore}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	start := time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC)
	order := models.Order{
		ClientID:    client.ID,
		ProductName: "Ноутбук",
		TotalAmount: 1000,
		DownPayment: 200,
		StartDate:   &start,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}

	plan := models.PaymentPlan{
		Name: "2 месяца",
		Installments: []models.PlanInstallment{
			{Formula: "[Остаток] / 2", MonthOffset: 1, Day: 10},
			{Formula: "[Остаток] / 2", MonthOffset: 2, Day: 10},
		},
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/orders/%d/generate-schedule", order.ID),
		fmt.Sprintf(`{"paymentPlanId": %d}`, plan.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var payments []models.Payment
	if err := db.Where("order_id = ?", order.ID).Order("due_date ASC").Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(payments))
	}
	for i, p := range payments {
		if p.Amount != 400 {
			t.Errorf("payment %d amount = %.2f, want 400", i, p.Amount)
		}
		if p.Status != models.PaymentStatusScheduled {
			t.Errorf("payment %d status = %s, want scheduled", i, p.Status)
		}
	}
	wantFirst := time.Date(2030, 2, 10, 0, 0, 0, 0, time.UTC)
	if !payments[0].DueDate.Equal(wantFirst) {
		t.Errorf("first due date = %s, want %s", payments[0].DueDate, wantFirst)
	}
}

func TestGenerateScheduleRerunKeepsPaidRows(t *testing.T) {
	db, r := setupRouter(t)

	client := models.Client{FullName: "Сидоров", Score: models.DefaultClientScore}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("create client: %v", err)
	}
	start := time.Date(2030, 1, 5, 0, 0, 0, 0, time.UTC)
	order := models.Order{
		ClientID:    client.ID,
		ProductName: "Ноутбук",
		TotalAmount: 1000,
		DownPayment: 200,
		StartDate:   &start,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	plan := models.PaymentPlan{
		Name: "2 месяца",
		Installments: []models.PlanInstallment{
			{Formula: "[Остаток] / 2", MonthOffset: 1, Day: 10},
			{Formula: "[Остаток] / 2", MonthOffset: 2, Day: 10},
		},
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}

	w, _ := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/orders/%d/generate-schedule", order.ID),
		fmt.Sprintf(`{"paymentPlanId": %d}`, plan.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("first generation: status = %d, body = %s", w.Code, w.Body.String())
	}

	var payments []models.Payment
	if err := db.Where("order_id = ?", order.ID).Order("due_date ASC").Find(&payments).Error; err != nil {
		t.Fatalf("load payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments = %d, want 2", len(payments))
	}

	// Оплачиваем первый транш и перегенерируем график.
	w, _ = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/payments/%d/pay", payments[0].ID), `{"amount": 400}`)
	if w.Code != http.StatusOK {
		t.Fatalf("pay: status = %d, body = %s", w.Code, w.Body.String())
	}
	w, _ = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/orders/%d/generate-schedule", order.ID),
		fmt.Sprintf(`{"paymentPlanId": %d}`, plan.ID))
	if w.Code != http.StatusOK {
		t.Fatalf("second generation: status = %d, body = %s", w.Code, w.Body.String())
	}

	// Оплаченный платеж переживает перегенерацию, запланированные заменяются
	// новыми записями.
	var paid models.Payment
	if err := db.First(&paid, payments[0].ID).Error; err != nil {
		t.Fatalf("paid payment was deleted: %v", err)
	}
	if paid.Status != models.PaymentStatusCompleted {
		t.Errorf("paid status = %s, want completed", paid.Status)
	}

	var scheduled []models.Payment
	if err := db.Where("order_id = ? AND status = ?", order.ID, models.PaymentStatusScheduled).Find(&scheduled).Error; err != nil {
		t.Fatalf("load scheduled payments: %v", err)
	}
	if len(scheduled) != 2 {
		t.Fatalf("scheduled payments = %d, want 2", len(scheduled))
	}
	for _, p := range scheduled {
		if p.ID == payments[1].ID {
			t.Errorf("old scheduled payment %d was not replaced", p.ID)
		}
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	_, r := setupRouter(t)

	for _, id := range []string{"0", "-1", "abc"} {
		w, _ := doJSON(t, r, http.MethodGet, "/api/orders/"+id, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("id %q: status = %d, want 400", id, w.Code)
		}
	}
}

func TestPaymentEngineShared(t *testing.T) {
	setupRouter(t)

	if PaymentEngine() == nil {
		t.Fatal("PaymentEngine returned nil after InitServices")
	}
	if PaymentEngine() != paymentService {
		t.Error("PaymentEngine is not the handlers' service instance")
	}
}
