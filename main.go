// rassrochka-crm/main.go
package main

import (
	"log/slog"
	"os"
	"time"

	"rassrochka-crm/config"
	"rassrochka-crm/internal/handlers"
	"rassrochka-crm/internal/routes"
	"rassrochka-crm/models"

	"github.com/gin-gonic/gin"
)

func main() {
	config.ConnectDB()
	config.ConnectRedis()
	config.LoadJwtKey()

	err := config.DB.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Order{},
		&models.Payment{},
		&models.PaymentHistory{},
		&models.PaymentPlan{},
		&models.PlanInstallment{},
	)
	if err != nil {
		slog.Error("Ошибка миграции БД", "error", err)
		os.Exit(1)
	}

	handlers.InitServices()

	// Фоновый обход просрочек включается переменной окружения, например
	// SWEEP_INTERVAL=1h. Без неё обход запускается только через API.
	if intervalStr := os.Getenv("SWEEP_INTERVAL"); intervalStr != "" {
		interval, err := time.ParseDuration(intervalStr)
		if err != nil {
			slog.Error("Неверное значение SWEEP_INTERVAL", "value", intervalStr, "error", err)
			os.Exit(1)
		}
		handlers.PaymentEngine().StartSweepLoop(interval)
		slog.Info("Фоновый обход просрочек включён", "interval", interval)
	}

	r := gin.Default()
	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	slog.Info("Сервер запускается", "port", port)
	if err := r.Run(":" + port); err != nil {
		slog.Error("Сервер остановился с ошибкой", "error", err)
		os.Exit(1)
	}
}
