// rassrochka-crm/internal/routes/api_routes.go
package routes

import (
	"rassrochka-crm/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует все маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	{
		// --- ПЛАТЕЖИ ---
		payments := apiGroup.Group("/payments")
		{
			payments.GET("", handlers.ListPaymentsHandler)
			payments.GET("/export", handlers.ExportPaymentsHandler)
			// Обход просрочек: дергается планировщиком или вручную.
			payments.POST("/sweep-outstanding", handlers.SweepOutstandingHandler)
			payments.GET("/:id", handlers.GetPaymentHandler)
			payments.GET("/:id/history", handlers.PaymentHistoryHandler)
			payments.PUT("/:id/pay", handlers.PayPaymentHandler)
			payments.PUT("/:id/skip", handlers.SkipPaymentHandler)
			payments.PUT("/:id/cancel", handlers.CancelPaymentHandler)
		}

		// --- КЛИЕНТЫ ---
		clients := apiGroup.Group("/clients")
		{
			clients.GET("", handlers.ListClientsHandler)
			clients.POST("", handlers.CreateClientHandler)
			clients.GET("/debtors", handlers.ListDebtorsHandler)
			clients.GET("/:id", handlers.GetClientHandler)
			clients.GET("/:id/history", handlers.ClientHistoryHandler)
			clients.PUT("/:id/score", handlers.AdjustClientScoreHandler)
		}

		// --- ЗАКАЗЫ ---
		orders := apiGroup.Group("/orders")
		{
			orders.GET("", handlers.ListOrdersHandler)
			orders.POST("", handlers.CreateOrderHandler)
			orders.GET("/:id", handlers.GetOrderHandler)
			orders.POST("/:id/generate-schedule", handlers.GenerateScheduleHandler)
		}

		// --- ФОРМЫ РАССРОЧКИ ---
		plans := apiGroup.Group("/payment-plans")
		{
			plans.GET("", handlers.ListPaymentPlansHandler)
			plans.POST("", handlers.CreatePaymentPlanHandler)
		}
	}
}
