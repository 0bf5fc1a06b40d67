package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the simulator.
type Config struct {
	Symbol          string
	LogLevel        string
	InitialPrice    decimal.Decimal
	NumTraders      int
	NumSteps        int
	MinOrderSize    decimal.Decimal
	MaxOrderSize    decimal.Decimal
	PriceVolatility decimal.Decimal
	DepthLevels     int
	HistorySize     int
	Seed            int64
}

// Load reads an optional .env file, then configuration from environment
// variables, applies defaults, and validates values. Variables already set
// in the environment take precedence over the file. An empty envFile or a
// file that does not exist is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	initialPrice, err := getDecimal("INITIAL_PRICE", decimal.NewFromInt(100))
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_PRICE: %w", err)
	}
	if !initialPrice.IsPositive() {
		return nil, fmt.Errorf("invalid INITIAL_PRICE: must be positive, got %s", initialPrice)
	}

	numTraders, err := getInt("NUM_TRADERS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid NUM_TRADERS: %w", err)
	}
	if numTraders < 0 {
		return nil, fmt.Errorf("invalid NUM_TRADERS: must not be negative, got %d", numTraders)
	}

	numSteps, err := getInt("NUM_STEPS", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid NUM_STEPS: %w", err)
	}
	if numSteps < 0 {
		return nil, fmt.Errorf("invalid NUM_STEPS: must not be negative, got %d", numSteps)
	}

	// Size and volatility defaults mirror simulator.DefaultSizing.
	minSize, err := getDecimal("MIN_ORDER_SIZE", decimal.RequireFromString("0.1"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_ORDER_SIZE: %w", err)
	}
	if !minSize.IsPositive() {
		return nil, fmt.Errorf("invalid MIN_ORDER_SIZE: must be positive, got %s", minSize)
	}

	maxSize, err := getDecimal("MAX_ORDER_SIZE", decimal.NewFromInt(5))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ORDER_SIZE: %w", err)
	}
	if maxSize.LessThan(minSize) {
		return nil, fmt.Errorf("invalid MAX_ORDER_SIZE: %s is below MIN_ORDER_SIZE %s", maxSize, minSize)
	}

	volatility, err := getDecimal("PRICE_VOLATILITY", decimal.RequireFromString("0.05"))
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_VOLATILITY: %w", err)
	}
	if !volatility.IsPositive() || volatility.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid PRICE_VOLATILITY: must be in (0, 1), got %s", volatility)
	}

	depthLevels, err := getInt("DEPTH_LEVELS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DEPTH_LEVELS: %w", err)
	}
	if depthLevels < 1 {
		return nil, fmt.Errorf("invalid DEPTH_LEVELS: must be at least 1, got %d", depthLevels)
	}

	historySize, err := getInt("HISTORY_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid HISTORY_SIZE: %w", err)
	}
	if historySize < 1 {
		return nil, fmt.Errorf("invalid HISTORY_SIZE: must be at least 1, got %d", historySize)
	}

	seed, err := getInt64("SEED", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid SEED: %w", err)
	}

	return &Config{
		Symbol:          getStr("SYMBOL", "TOKEN/USD"),
		LogLevel:        logLevel,
		InitialPrice:    initialPrice,
		NumTraders:      numTraders,
		NumSteps:        numSteps,
		MinOrderSize:    minSize,
		MaxOrderSize:    maxSize,
		PriceVolatility: volatility,
		DepthLevels:     depthLevels,
		HistorySize:     historySize,
		Seed:            seed,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
