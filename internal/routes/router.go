// rassrochka-crm/internal/routes/router.go
package routes

import (
	"rassrochka-crm/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes инициализирует все маршруты приложения.
func SetupRoutes(r *gin.Engine) {
	// Публичные маршруты: вход, регистрация, выход.
	RegisterAuthRoutes(r)

	// Все API-маршруты требуют валидного токена.
	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware())
	{
		RegisterAPIRoutes(authRequired)
	}
}
