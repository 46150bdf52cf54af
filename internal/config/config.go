// Package config loads environment configuration, with an optional .env file
// for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration read from the environment. Flags in
// cmd/syncd override the endpoint and DSN values.
type Config struct {
	RPCEndpoint    string
	WSEndpoint     string
	FactoryAddress string
	DatabaseURL    string

	// Price oracle sources.
	PriceAPIURL      string
	PriceAssetID     string
	PriceFallbackURL string

	// Scan tuning.
	ScanChunkSize uint64
	ScanPacing    time.Duration
}

// Load reads configuration from the environment. A missing .env file is fine.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		RPCEndpoint:    os.Getenv("RPC_ENDPOINT"),
		WSEndpoint:     os.Getenv("WS_ENDPOINT"),
		FactoryAddress: os.Getenv("FACTORY_ADDRESS"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		PriceAPIURL:      os.Getenv("PRICE_API_URL"),
		PriceAssetID:     getEnv("PRICE_ASSET_ID", "ethereum"),
		PriceFallbackURL: os.Getenv("PRICE_FALLBACK_URL"),

		ScanChunkSize: getEnvUint("SCAN_CHUNK_SIZE", 0),
		ScanPacing:    time.Duration(getEnvUint("SCAN_PACING_MS", 200)) * time.Millisecond,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvUint(key string, defaultVal uint64) uint64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return n
}
