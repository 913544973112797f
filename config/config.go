package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL          string
	SchedulerTokenSecret string
	ServerPort           int

	// Переопределения размеров монетных бонусов. Нулевые значения не
	// допускаются на уровне парсинга: отсутствующая переменная оставляет
	// значение по умолчанию.
	CoinRewardFirst         int
	CoinRewardSecond        int
	CoinRewardThird         int
	CoinRewardParticipation int

	// Cloudflare R2 для архива отчётов о запусках. Блок опционален:
	// пустой R2_ACCOUNT_ID отключает архивирование.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	tokenSecret := os.Getenv("SCHEDULER_TOKEN_SECRET")
	if tokenSecret == "" {
		return nil, fmt.Errorf("SCHEDULER_TOKEN_SECRET environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	cfg := &Config{
		DatabaseURL:          dbURL,
		SchedulerTokenSecret: tokenSecret,
		ServerPort:           port,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	if cfg.CoinRewardFirst, err = optionalInt("COIN_REWARD_FIRST"); err != nil {
		return nil, err
	}
	if cfg.CoinRewardSecond, err = optionalInt("COIN_REWARD_SECOND"); err != nil {
		return nil, err
	}
	if cfg.CoinRewardThird, err = optionalInt("COIN_REWARD_THIRD"); err != nil {
		return nil, err
	}
	if cfg.CoinRewardParticipation, err = optionalInt("COIN_REWARD_PARTICIPATION"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// R2Enabled сообщает, настроен ли блок объектного хранилища целиком.
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// optionalInt читает целочисленную переменную окружения; отсутствие
// переменной возвращает -1 (значение не задано).
func optionalInt(name string) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return -1, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", name, v)
	}
	return v, nil
}
