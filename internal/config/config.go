package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	DBMaxOpenConns     int
	DBConnMaxLifetime  time.Duration
	DBConnectTimeout   time.Duration
	DBStatementTimeout time.Duration

	RedisURL         string
	RedisDialTimeout time.Duration
	RedisIOTimeout   time.Duration

	QueueName        string
	DLQName          string
	MaxJobRetries    int
	QueuePopTimeout  time.Duration
	WorkerErrorPause time.Duration
	PolicyID         string

	LogLevel  string
	LogFormat string

	WorkerEnabled bool
	APIEnabled    bool
}

// Load reads the environment, after merging an optional .env file. Missing
// required keys and unparsable values are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          p.required("DATABASE_URL"),
		CORSAllowCredentials: p.boolean("CORS_ALLOW_CREDENTIALS", false),

		DBMaxOpenConns:     p.integer("DB_MAX_OPEN_CONNS", 10),
		DBConnMaxLifetime:  p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBConnectTimeout:   p.duration("DB_CONNECT_TIMEOUT", 5*time.Second),
		DBStatementTimeout: p.duration("DB_STATEMENT_TIMEOUT", 30*time.Second),

		RedisURL:         p.required("REDIS_URL"),
		RedisDialTimeout: p.duration("REDIS_DIAL_TIMEOUT", 3*time.Second),
		RedisIOTimeout:   p.duration("REDIS_IO_TIMEOUT", 3*time.Second),

		QueueName:        getenv("QUEUE_NAME", "document_processing_queue"),
		DLQName:          getenv("DLQ_NAME", "document_processing_dlq"),
		MaxJobRetries:    p.integer("MAX_JOB_RETRIES", 3),
		QueuePopTimeout:  p.duration("QUEUE_POP_TIMEOUT", 5*time.Second),
		WorkerErrorPause: p.duration("WORKER_ERROR_PAUSE", 2*time.Second),
		PolicyID:         getenv("POLICY_ID", "TKA_v1"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		WorkerEnabled: p.boolean("WORKER_ENABLED", true),
		APIEnabled:    p.boolean("API_ENABLED", true),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	if cfg.APIEnabled {
		cfg.JWTSecret = p.required("JWT_SECRET")
	}
	if cfg.MaxJobRetries < 1 {
		p.fail("MAX_JOB_RETRIES", "must be at least 1")
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// parser collects every problem instead of stopping at the first.
type parser struct {
	problems []string
}

func (p *parser) fail(key, msg string) {
	p.problems = append(p.problems, key+": "+msg)
}

func (p *parser) required(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		p.fail(key, "missing")
	}
	return v
}

func (p *parser) integer(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid integer %q", v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid duration %q", v))
		return def
	}
	return d
}

func (p *parser) boolean(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, fmt.Sprintf("invalid boolean %q", v))
		return def
	}
	return b
}

func (p *parser) err() error {
	if len(p.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(p.problems, "; "))
}
