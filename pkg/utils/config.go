package utils

import (
	"os"
	"strconv"
	"time"
)

// AppConfig is the service configuration shared by every binary.
type AppConfig struct {
	DataPath     string
	HTTPAddr     string
	GRPCAddr     string
	GrowthWindow int
	TopN         int
	Redis        RedisConfig
}

// RedisConfig configures the optional remote cache tier.
type RedisConfig struct {
	Enabled bool
	Addr    string
	Pass    string
	DB      int
	TTL     time.Duration
}

// LoadAppConfig reads TRIPLEBILLION_* and REDIS_* variables. Unset or
// unparsable values fall back to defaults.
func LoadAppConfig() AppConfig {
	return AppConfig{
		DataPath:     envString("TRIPLEBILLION_DATA", "RELAY_3B_DATA.csv"),
		HTTPAddr:     envString("TRIPLEBILLION_HTTP_ADDR", ":8080"),
		GRPCAddr:     envString("TRIPLEBILLION_GRPC_ADDR", ":9090"),
		GrowthWindow: envPositive("TRIPLEBILLION_GROWTH_WINDOW", 3),
		TopN:         envPositive("TRIPLEBILLION_TOP_N", 5),
		Redis:        LoadRedisConfig(),
	}
}

func LoadRedisConfig() RedisConfig {
	host := envString("REDIS_HOST", "127.0.0.1")
	port := envString("REDIS_PORT", "6379")
	return RedisConfig{
		Enabled: os.Getenv("TRIPLEBILLION_REDIS") == "true",
		Addr:    host + ":" + port,
		Pass:    os.Getenv("REDIS_PASS"),
		DB:      envInt("REDIS_DB", 0),
		TTL:     time.Duration(envInt("TRIPLEBILLION_CACHE_TTL_MINUTES", 60)) * time.Minute,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt ignores negative values as well as parse errors.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// envPositive is envInt for sizes, where zero is rejected too.
func envPositive(key string, def int) int {
	if n := envInt(key, def); n > 0 {
		return n
	}
	return def
}
