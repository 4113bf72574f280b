package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Routes   RoutesConfig
	Fare     FareConfig
	Dispatch DispatchConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // comma-separated list of allowed origins
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// NATSConfig holds event bus configuration.
type NATSConfig struct {
	URL        string
	StreamName string
}

// RoutesConfig holds route/distance provider configuration.
type RoutesConfig struct {
	GoogleAPIKey   string
	BaseURL        string // overridable for tests
	TimeoutSeconds int
}

// ClassRates holds the fare constants for one vehicle class.
type ClassRates struct {
	Base      float64
	PerKm     float64
	PerMinute float64
}

// FareConfig holds fare calculation constants.
type FareConfig struct {
	Car            ClassRates
	Moto           ClassRates
	NightSurcharge float64
	NightStartHour int    // inclusive, local to Timezone
	NightEndHour   int    // exclusive
	Timezone       string // IANA name of the reference timezone
}

// DispatchConfig holds driver search configuration.
type DispatchConfig struct {
	RadiusKm          float64
	FallbackETAMin    int
	AverageSpeedKmh   float64
	LocationTTLSecond int
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "quickride"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:        getEnv("NATS_URL", "nats://localhost:4222"),
			StreamName: getEnv("NATS_STREAM", "QUICKRIDE"),
		},
		Routes: RoutesConfig{
			GoogleAPIKey:   getEnv("GOOGLE_MAPS_API_KEY", ""),
			BaseURL:        getEnv("GOOGLE_MAPS_BASE_URL", ""),
			TimeoutSeconds: getEnvAsInt("ROUTES_TIMEOUT_SECONDS", 10),
		},
		Fare: FareConfig{
			Car: ClassRates{
				Base:      getEnvAsFloat("FARE_CAR_BASE", 10000),
				PerKm:     getEnvAsFloat("FARE_CAR_PER_KM", 9000),
				PerMinute: getEnvAsFloat("FARE_CAR_PER_MINUTE", 400),
			},
			Moto: ClassRates{
				Base:      getEnvAsFloat("FARE_MOTO_BASE", 5000),
				PerKm:     getEnvAsFloat("FARE_MOTO_PER_KM", 4000),
				PerMinute: getEnvAsFloat("FARE_MOTO_PER_MINUTE", 200),
			},
			NightSurcharge: getEnvAsFloat("FARE_NIGHT_SURCHARGE", 1.2),
			NightStartHour: getEnvAsInt("FARE_NIGHT_START_HOUR", 19),
			NightEndHour:   getEnvAsInt("FARE_NIGHT_END_HOUR", 5),
			Timezone:       getEnv("FARE_TIMEZONE", "UTC"),
		},
		Dispatch: DispatchConfig{
			RadiusKm:          getEnvAsFloat("DISPATCH_RADIUS_KM", 5),
			FallbackETAMin:    getEnvAsInt("DISPATCH_FALLBACK_ETA_MIN", 7),
			AverageSpeedKmh:   getEnvAsFloat("DISPATCH_AVG_SPEED_KMH", 30),
			LocationTTLSecond: getEnvAsInt("DISPATCH_LOCATION_TTL_SECONDS", 300),
		},
	}

	if cfg.Fare.NightSurcharge < 1.0 {
		return nil, fmt.Errorf("FARE_NIGHT_SURCHARGE must be >= 1.0, got %v", cfg.Fare.NightSurcharge)
	}
	if _, err := time.LoadLocation(cfg.Fare.Timezone); err != nil {
		return nil, fmt.Errorf("invalid FARE_TIMEZONE %q: %w", cfg.Fare.Timezone, err)
	}

	return cfg, nil
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Location resolves the configured reference timezone.
func (c *FareConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LocationTTL returns the driver location cache TTL.
func (c *DispatchConfig) LocationTTL() time.Duration {
	if c.LocationTTLSecond <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.LocationTTLSecond) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}
