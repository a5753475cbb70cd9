package config

import (
	"encoding/base64"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"ppcbatch/internal/shared"
	"ppcbatch/pkg/retry"
)

// Service names accepted by APIHeaders.
const (
	ServiceDataForSEO = "dataforseo"
	ServiceSerper     = "serper"
	ServiceFirecrawl  = "firecrawl"
)

// Config holds application configuration values.
type Config struct {
	Env        string `validate:"required,oneof=dev prod"`
	DataForSEO struct {
		Login    string
		Password string
	}
	Serper struct {
		APIKey string
	}
	Firecrawl struct {
		APIKey string
	}
	Retry struct {
		MaxAttempts     int     `validate:"min=1"`
		InitialDelay    float64 `validate:"min=0"` // seconds
		MaxDelay        float64 `validate:"min=0"` // seconds
		ExponentialBase float64 `validate:"min=1"`
		Jitter          bool
	}
	Batch struct {
		Size            int `validate:"min=1"`
		MaxConcurrent   int `validate:"min=1"`
		MinSearchVolume int `validate:"min=0"`
	}
	Paths struct {
		ErrorLogDir string `validate:"required"`
		StateDir    string `validate:"required"`
		DBFile      string `validate:"required"`
	}
	HTTP struct {
		Timeout    time.Duration
		StatusAddr string
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
	Telegram struct {
		Token  string
		ChatID int64
	}
	Maintenance struct {
		Schedule  string // cron expression
		Retention time.Duration
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	c.Env = getenv("ENV", "prod")
	c.DataForSEO.Login = os.Getenv("DATAFORSEO_LOGIN")
	c.DataForSEO.Password = os.Getenv("DATAFORSEO_PASSWORD")
	c.Serper.APIKey = os.Getenv("SERPER_API_KEY")
	c.Firecrawl.APIKey = os.Getenv("FIRECRAWL_API_KEY")

	c.Retry.MaxAttempts = getint("RETRY_MAX_ATTEMPTS", 3)
	c.Retry.InitialDelay = getfloat("RETRY_INITIAL_DELAY", 1.0)
	c.Retry.MaxDelay = getfloat("RETRY_MAX_DELAY", 60.0)
	c.Retry.ExponentialBase = getfloat("RETRY_EXPONENTIAL_BASE", 2.0)
	c.Retry.Jitter = getbool("RETRY_JITTER", true)

	c.Batch.Size = getint("BATCH_SIZE", 100)
	c.Batch.MaxConcurrent = getint("BATCH_MAX_CONCURRENT", 5)
	c.Batch.MinSearchVolume = getint("MIN_SEARCH_VOLUME", 10)

	c.Paths.ErrorLogDir = getenv("ERROR_LOG_DIR", "data/logs/errors")
	c.Paths.StateDir = getenv("STATE_DIR", "data/state")
	c.Paths.DBFile = getenv("DB_FILE", "data/ppcbatch.db")

	c.HTTP.Timeout = time.Duration(getint("API_TIMEOUT", 30)) * time.Second
	c.HTTP.StatusAddr = os.Getenv("STATUS_ADDR")

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = getenv("LOG_FILE", "data/logs/ppcbatch.log")

	c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Config{}, shared.NewValidation("TELEGRAM_CHAT_ID must be an integer")
		}
		c.Telegram.ChatID = id
	}

	c.Maintenance.Schedule = getenv("MAINTENANCE_SCHEDULE", "0 3 * * *")
	c.Maintenance.Retention = time.Duration(getint("RETENTION_DAYS", 28)) * 24 * time.Hour

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	if c.DataForSEO.Login != "" && c.DataForSEO.Password == "" {
		return Config{}, shared.NewValidation("DATAFORSEO_PASSWORD required when DATAFORSEO_LOGIN is set")
	}
	if c.DataForSEO.Password != "" && c.DataForSEO.Login == "" {
		return Config{}, shared.NewValidation("DATAFORSEO_LOGIN required when DATAFORSEO_PASSWORD is set")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return Config{}, shared.NewValidation("TELEGRAM_CHAT_ID required when TELEGRAM_BOT_TOKEN is set")
	}
	return c, nil
}

// RetryPolicy converts the configured knobs into an executor policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialDelay:    time.Duration(c.Retry.InitialDelay * float64(time.Second)),
		MaxDelay:        time.Duration(c.Retry.MaxDelay * float64(time.Second)),
		ExponentialBase: c.Retry.ExponentialBase,
		Jitter:          c.Retry.Jitter,
	}
}

// APIHeaders returns the request headers for the named service, or an
// auth-classified configuration error when credentials are missing. The
// resilience core never stores or validates credentials itself.
func (c Config) APIHeaders(service string) (map[string]string, error) {
	switch service {
	case ServiceDataForSEO:
		if c.DataForSEO.Login == "" || c.DataForSEO.Password == "" {
			return nil, missingCredentials(service)
		}
		auth := base64.StdEncoding.EncodeToString([]byte(c.DataForSEO.Login + ":" + c.DataForSEO.Password))
		return map[string]string{
			"Authorization": "Basic " + auth,
			"Content-Type":  "application/json",
		}, nil
	case ServiceSerper:
		if c.Serper.APIKey == "" {
			return nil, missingCredentials(service)
		}
		return map[string]string{
			"X-API-KEY":    c.Serper.APIKey,
			"Content-Type": "application/json",
		}, nil
	case ServiceFirecrawl:
		if c.Firecrawl.APIKey == "" {
			return nil, missingCredentials(service)
		}
		return map[string]string{
			"Authorization": "Bearer " + c.Firecrawl.APIKey,
			"Content-Type":  "application/json",
		}, nil
	default:
		return nil, shared.NewValidation("unknown service: " + service)
	}
}

func missingCredentials(service string) error {
	return shared.New(service+" credentials not configured", shared.CategoryAuth).
		WithSeverity(shared.SeverityHigh)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
