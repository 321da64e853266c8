package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	LogLevel       string
	JWTSecret      string
	Admin          AdminConfig
	Redis          RedisConfig
	Signaling      SignalingConfig
	MDNS           MDNSConfig
}

// AdminConfig holds the operator credentials for the roster API.
// Participants never authenticate.
type AdminConfig struct {
	User         string
	PasswordHash string
	TokenTTL     time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Enabled reports whether the presence mirror should connect to Redis.
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

type SignalingConfig struct {
	SendBuffer     int
	MaxMessageSize int64
	PongWait       time.Duration
	WriteWait      time.Duration
}

type MDNSConfig struct {
	Enabled  bool
	Instance string
}

func Load() *Config {
	// Parse allowed origins (comma-separated)
	originsStr := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	origins := strings.Split(originsStr, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me-in-production"),
		Admin: AdminConfig{
			User:         getEnv("ADMIN_USER", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			TokenTTL:     getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "classroom"),
			TTL:      getEnvDuration("REDIS_TTL", 24*time.Hour),
		},
		Signaling: SignalingConfig{
			SendBuffer:     getEnvInt("SEND_BUFFER", 256),
			MaxMessageSize: int64(getEnvInt("MAX_MESSAGE_SIZE", 64*1024)),
			PongWait:       getEnvDuration("PONG_WAIT", 60*time.Second),
			WriteWait:      getEnvDuration("WRITE_WAIT", 10*time.Second),
		},
		MDNS: MDNSConfig{
			Enabled:  getEnvBool("MDNS_ENABLED", false),
			Instance: getEnv("MDNS_INSTANCE", "classroom-signaling"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
