package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every setting read from the environment.
type Config struct {
	Port string
	Env  string

	MongoURI     string
	DBName       string
	TablePrefix  string
	StoreDriver  string
	StoreTimeout time.Duration
	StoreRetries int

	SummaryCache    string
	SummaryCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	JWTSecret         string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string

	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	NotifyEmail string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	FormBaseURL        string
	DefaultCommission  string
	CORSAllowedOrigins []string

	LogLevel    string
	LogEncoding string
}

// Load reads the .env file, when present, and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}

	return &Config{
		Port: Env("PORT", "8080"),
		Env:  Env("ENV", "production"),

		MongoURI:     mongoURI,
		DBName:       Env("DB_NAME", "commercive"),
		TablePrefix:  Env("TABLE_PREFIX", "commercive_"),
		StoreDriver:  Env("STORE_DRIVER", "mongo"),
		StoreTimeout: EnvDuration("STORE_TIMEOUT", 10*time.Second),
		StoreRetries: EnvInt("STORE_MAX_RETRIES", 3),

		SummaryCache:    Env("SUMMARY_CACHE", "store"),
		SummaryCacheTTL: EnvDuration("SUMMARY_CACHE_TTL", time.Hour),
		RedisAddr:       Env("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         EnvInt("REDIS_DB", 0),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          EnvDuration("TOKEN_TTL", 24*time.Hour),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),

		SMTPHost:    os.Getenv("SMTP_HOST"),
		SMTPPort:    EnvInt("SMTP_PORT", 2525),
		SMTPUser:    os.Getenv("SMTP_USER"),
		SMTPPass:    os.Getenv("SMTP_PASS"),
		NotifyEmail: os.Getenv("NOTIFY_EMAIL"),

		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: Env("OPENAI_BASE_URL", "https://api.openai.com/v1/"),
		OpenAIModel:   Env("OPENAI_MODEL", "gpt-3.5-turbo"),

		FormBaseURL:        Env("FORM_BASE_URL", "https://dashboard.commercive.co/affiliate-form"),
		DefaultCommission:  Env("DEFAULT_COMMISSION_RATE", "0.01"),
		CORSAllowedOrigins: EnvList("CORS_ALLOWED_ORIGINS"),

		LogLevel:    Env("LOG_LEVEL", "info"),
		LogEncoding: Env("LOG_ENCODING", "json"),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func EnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func EnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
