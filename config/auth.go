// rassrochka-crm/config/auth.go
package config

import (
	"log/slog"
	"os"
)

// JwtKey — секретный ключ для подписи токенов. Берётся из окружения.
var JwtKey []byte

func LoadJwtKey() {
	key := os.Getenv("JWT_KEY")
	if key == "" {
		slog.Error("Критическая ошибка: переменная окружения JWT_KEY не установлена.")
		os.Exit(1)
	}
	JwtKey = []byte(key)
}
