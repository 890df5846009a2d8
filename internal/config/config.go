// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gurkanbulca/tasktracker/internal/database"
	"github.com/gurkanbulca/tasktracker/internal/middleware"
	"github.com/gurkanbulca/tasktracker/pkg/auth"
)

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
)

const (
	defaultAccessSecret  = "dev-access-secret-change-in-production"
	defaultRefreshSecret = "dev-refresh-secret-change-in-production"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Security SecurityConfig
	Client   ClientConfig
}

type ServerConfig struct {
	GRPCPort         string
	Environment      string
	EnableReflection bool
	AutoMigrate      bool
	// StoreBackend is "memory" or "postgres".
	StoreBackend string
	// AccountsDSN is the SQLite database holding accounts for the memory backend.
	AccountsDSN string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	AccessSecret         string
	RefreshSecret        string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// RedisConfig enables Redis backed token revocation when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SecurityConfig struct {
	MaxLoginAttempts       int
	AccountLockoutDuration time.Duration
	BcryptCost             int
	MinPasswordLength      int
	RequirePasswordUpper   bool
	RequirePasswordLower   bool
	RequirePasswordNumber  bool
	RequirePasswordSpecial bool
	// EventRetention is how long security events are kept.
	EventRetention time.Duration
}

type ClientConfig struct {
	ServerAddr      string
	SessionFile     string
	OptimisticReset bool
	ResetTimeout    time.Duration
	RequestTimeout  time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			GRPCPort:         getEnv("GRPC_PORT", "50051"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			EnableReflection: getEnvAsBool("ENABLE_REFLECTION", true),
			AutoMigrate:      getEnvAsBool("AUTO_MIGRATE", true),
			StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreBackendMemory)),
			AccountsDSN:      getEnv("ACCOUNTS_DSN", ":memory:"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "tasktracker"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			AccessSecret:         getEnv("JWT_ACCESS_SECRET", getEnv("JWT_SECRET", defaultAccessSecret)),
			RefreshSecret:        getEnv("JWT_REFRESH_SECRET", getEnv("JWT_SECRET", defaultRefreshSecret)),
			AccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", 7*24*time.Hour),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Security: SecurityConfig{
			MaxLoginAttempts:       getEnvAsInt("MAX_LOGIN_ATTEMPTS", 5),
			AccountLockoutDuration: getEnvAsDuration("ACCOUNT_LOCKOUT_DURATION", 15*time.Minute),
			BcryptCost:             getEnvAsInt("BCRYPT_COST", 0),
			MinPasswordLength:      getEnvAsInt("MIN_PASSWORD_LENGTH", 6),
			RequirePasswordUpper:   getEnvAsBool("REQUIRE_PASSWORD_UPPER", false),
			RequirePasswordLower:   getEnvAsBool("REQUIRE_PASSWORD_LOWER", false),
			RequirePasswordNumber:  getEnvAsBool("REQUIRE_PASSWORD_NUMBER", false),
			RequirePasswordSpecial: getEnvAsBool("REQUIRE_PASSWORD_SPECIAL", false),
			EventRetention:         getEnvAsDuration("SECURITY_EVENT_RETENTION", 90*24*time.Hour),
		},
		Client: ClientConfig{
			ServerAddr:      getEnv("TASKTRACKER_SERVER", "localhost:50051"),
			SessionFile:     getEnv("TASKTRACKER_SESSION_FILE", defaultSessionFile()),
			OptimisticReset: getEnvAsBool("RECURRENCE_OPTIMISTIC_RESET", false),
			ResetTimeout:    getEnvAsDuration("RESET_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
	}, nil
}

// ValidateConfig rejects settings the server cannot run with.
func (c *Config) ValidateConfig() error {
	var problems []string

	if c.Server.StoreBackend != StoreBackendMemory && c.Server.StoreBackend != StoreBackendPostgres {
		problems = append(problems, fmt.Sprintf("STORE_BACKEND must be %q or %q", StoreBackendMemory, StoreBackendPostgres))
	}
	if c.JWT.AccessTokenDuration <= 0 || c.JWT.RefreshTokenDuration <= 0 {
		problems = append(problems, "JWT token durations must be positive")
	}
	if c.Security.MaxLoginAttempts < 1 {
		problems = append(problems, "MAX_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.Security.MinPasswordLength < 1 {
		problems = append(problems, "MIN_PASSWORD_LENGTH must be at least 1")
	}

	if c.IsProduction() {
		if c.JWT.AccessSecret == defaultAccessSecret || c.JWT.RefreshSecret == defaultRefreshSecret {
			problems = append(problems, "JWT secrets must be set in production")
		}
		if c.JWT.AccessSecret == c.JWT.RefreshSecret {
			problems = append(problems, "JWT access and refresh secrets must differ in production")
		}
		if c.Server.EnableReflection {
			problems = append(problems, "gRPC reflection must be disabled in production")
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// ToDatabaseConfig converts to database config
func (c *Config) ToDatabaseConfig() database.Config {
	return database.Config{
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		DBName:   c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
	}
}

// ToPasswordPolicy converts to auth password policy
func (c *Config) ToPasswordPolicy() auth.PasswordPolicy {
	return auth.PasswordPolicy{
		MinLength:      c.Security.MinPasswordLength,
		RequireUpper:   c.Security.RequirePasswordUpper,
		RequireLower:   c.Security.RequirePasswordLower,
		RequireNumber:  c.Security.RequirePasswordNumber,
		RequireSpecial: c.Security.RequirePasswordSpecial,
	}
}

// ToValidationConfig converts to middleware validation config
func (c *Config) ToValidationConfig() *middleware.ValidationConfig {
	return middleware.DefaultValidationConfig()
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tasktracker-session.yaml"
	}
	return dir + string(os.PathSeparator) + "tasktracker" + string(os.PathSeparator) + "session.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	// Try parsing as duration string (e.g., "15m", "24h")
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}

	return defaultValue
}
