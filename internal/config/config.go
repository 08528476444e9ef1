package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PGDSN     string
	MongoURI  string
	RedisAddr string
	RabbitURL string
	HTTPAddr  string

	CSRFToken       string
	DefaultLanguage string

	ServiceChargePercent float64
	ServiceChargeEnabled bool
	ConfirmWindow        time.Duration
	CartTTL              time.Duration
	Currency             string

	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	confirmWindow, _ := time.ParseDuration(os.Getenv("ORDER_CONFIRM_WINDOW"))
	if confirmWindow == 0 {
		confirmWindow = 5 * time.Minute
	}

	cartTTL, _ := time.ParseDuration(os.Getenv("CART_TTL"))
	if cartTTL == 0 {
		cartTTL = 24 * time.Hour
	}

	serviceCharge, err := strconv.ParseFloat(os.Getenv("SERVICE_CHARGE_PERCENT"), 64)
	if err != nil {
		serviceCharge = 5
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	lang := os.Getenv("DEFAULT_LANGUAGE")
	if lang == "" {
		lang = "ru"
	}

	currency := os.Getenv("CURRENCY")
	if currency == "" {
		currency = "TMT"
	}

	return &Config{
		PGDSN:                os.Getenv("PG_DSN"),
		MongoURI:             os.Getenv("MONGO_URI"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RabbitURL:            os.Getenv("RABBIT_URL"),
		HTTPAddr:             httpAddr,
		CSRFToken:            os.Getenv("CSRF_TOKEN"),
		DefaultLanguage:      lang,
		ServiceChargePercent: serviceCharge,
		ServiceChargeEnabled: os.Getenv("SERVICE_CHARGE_ENABLED") != "false",
		ConfirmWindow:        confirmWindow,
		CartTTL:              cartTTL,
		Currency:             currency,
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
