package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server struct {
		Port int
	}
	DB struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
	}
	JWT struct {
		SecretKey string
		ExpiresIn int // в часах
	}
	SMTP struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	Loan struct {
		GraceCount        int     // Допустимое число последовательных просрочек
		CurrencyPrecision int32   // Точность валюты в знаках после запятой
		RateMargin        float64 // Маржа к ключевой ставке, п.п.
		DefaultAnnualRate float64 // Ставка, если сервис ключевой ставки недоступен
	}
}

// NewConfig создает новый экземпляр конфигурации из переменных окружения
func NewConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	// Настройки сервера
	v.SetDefault("SERVER_PORT", 8080)

	// Настройки базы данных
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "finmate_db")

	// Настройки JWT
	v.SetDefault("JWT_SECRET_KEY", "your-secret-key-here")
	v.SetDefault("JWT_EXPIRES_IN", 24)

	// Настройки SMTP
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "your-email@gmail.com")
	v.SetDefault("SMTP_PASSWORD", "your-app-password")
	v.SetDefault("SMTP_FROM", "your-email@gmail.com")

	// Политики займов
	v.SetDefault("LOAN_GRACE_COUNT", 3)
	v.SetDefault("CURRENCY_PRECISION", 2)
	v.SetDefault("LOAN_RATE_MARGIN", 5.0)
	v.SetDefault("LOAN_DEFAULT_RATE", 12.0)

	cfg := &Config{}
	cfg.Server.Port = v.GetInt("SERVER_PORT")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetInt("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.DBName = v.GetString("DB_NAME")

	cfg.JWT.SecretKey = v.GetString("JWT_SECRET_KEY")
	cfg.JWT.ExpiresIn = v.GetInt("JWT_EXPIRES_IN")

	cfg.SMTP.Host = v.GetString("SMTP_HOST")
	cfg.SMTP.Port = v.GetInt("SMTP_PORT")
	cfg.SMTP.Username = v.GetString("SMTP_USERNAME")
	cfg.SMTP.Password = v.GetString("SMTP_PASSWORD")
	cfg.SMTP.From = v.GetString("SMTP_FROM")

	cfg.Loan.GraceCount = v.GetInt("LOAN_GRACE_COUNT")
	cfg.Loan.CurrencyPrecision = v.GetInt32("CURRENCY_PRECISION")
	cfg.Loan.RateMargin = v.GetFloat64("LOAN_RATE_MARGIN")
	cfg.Loan.DefaultAnnualRate = v.GetFloat64("LOAN_DEFAULT_RATE")

	// Нулевая точность или нулевой лимит просрочек указывают на ошибку окружения
	if cfg.Loan.CurrencyPrecision <= 0 {
		return nil, fmt.Errorf("неверная точность валюты: %d", cfg.Loan.CurrencyPrecision)
	}
	if cfg.Loan.GraceCount <= 0 {
		return nil, fmt.Errorf("неверный лимит просрочек: %d", cfg.Loan.GraceCount)
	}

	return cfg, nil
}
