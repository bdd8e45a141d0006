package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment     string
	HTTPPort        string
	HTTPSPort       string
	Domains         []string
	CertCacheDir    string
	LogDir          string
	MaxUploadBytes  int64
	SessionTTL      time.Duration
	CleanupInterval time.Duration

	// Audit log persistence. Empty DatabaseURL keeps the in-memory store.
	DatabaseURL string

	// Alerting. SMS alerts stay disabled unless all Twilio fields are set.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	AlertPhoneNumber string
	AlertWebhookURL  string

	// Anomaly detection thresholds. These are business knobs, not
	// statistical constants.
	ZScoreThreshold    float64
	IQRMultiplier      float64
	SeverityStdFactor  float64
	ExtremeValueFactor float64
	SpikeFactor        float64
	NullFractionCutoff float64
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		HTTPPort:        getEnv("HTTP_PORT", "8086"),
		HTTPSPort:       getEnv("HTTPS_PORT", "443"),
		Domains:         []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir:    getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		LogDir:          getEnv("LOG_DIR", "./logs"),
		MaxUploadBytes:  int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,
		SessionTTL:      time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 240)) * time.Minute,
		CleanupInterval: time.Duration(getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 30)) * time.Minute,

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
		AlertPhoneNumber: getEnv("ALERT_PHONE_NUMBER", ""),
		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),

		ZScoreThreshold:    getEnvAsFloat("ZSCORE_THRESHOLD", 3),
		IQRMultiplier:      getEnvAsFloat("IQR_MULTIPLIER", 1.5),
		SeverityStdFactor:  getEnvAsFloat("SEVERITY_STD_FACTOR", 3),
		ExtremeValueFactor: getEnvAsFloat("EXTREME_VALUE_FACTOR", 10),
		SpikeFactor:        getEnvAsFloat("SPIKE_FACTOR", 2),
		NullFractionCutoff: getEnvAsFloat("NULL_FRACTION_CUTOFF", 0.5),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
