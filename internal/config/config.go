// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Data     DataConfig
	Server   ServerConfig
	Match    MatchConfig
	AI       AIConfig
	Exchange ExchangeConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	// BasePath is the root directory for the database, attachments, and
	// export files (default: ~/Quoteline/data).
	BasePath string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Name         string
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// MatchConfig holds the tunables for candidate-to-component matching.
// The defaults are the shipped values; every knob can be overridden so the
// scoring can be retuned without a rebuild.
type MatchConfig struct {
	// Field weights for the fuzzy score. Must sum to 1.
	WeightPartNumber   float64
	WeightManufacturer float64
	WeightName         float64

	// Score thresholds.
	MinThreshold    float64 // below this a candidate has no match (default: 0.6)
	MediumThreshold float64 // medium confidence floor (default: 0.7)
	HighThreshold   float64 // high confidence floor (default: 0.9)

	// AIAcceptFloor is the minimum model-reported confidence for an AI
	// verdict to count as a match (default: 0.85).
	AIAcceptFloor float64
}

// AIConfig holds configuration for the AI matching provider.
type AIConfig struct {
	// BaseURL of an OpenAI-compatible chat completions endpoint. Empty
	// disables the semantic tier entirely.
	BaseURL string
	APIKey  string
	Model   string
	// RequestsPerSecond caps outbound calls to the provider (default: 2).
	RequestsPerSecond float64
	Timeout           time.Duration // per-request timeout (default: 30s)
}

// ExchangeConfig holds export/import configuration.
type ExchangeConfig struct {
	// BatchSize is the number of rows per storage batch during import
	// (default: 100).
	BatchSize int
	// ExportDir is the directory for generated export bundles
	// (default: {data}/exports).
	ExportDir string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for data storage")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// AI flags
	aiBaseURL := flag.String("ai-base-url", "", "Base URL of the AI matching provider (empty disables AI matching)")
	aiModel := flag.String("ai-model", "", "Model name for AI matching")

	// Exchange flags
	batchSize := flag.String("import-batch-size", "", "Rows per storage batch during import (default: 100)")
	exportDir := flag.String("export-dir", "", "Directory for export bundles")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},

		Server: ServerConfig{
			Name: getConfigValue(*serverName, "SERVER_NAME", "Quoteline Server"),
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},

		Match: MatchConfig{
			WeightPartNumber:   getFloatConfigValue("", "MATCH_WEIGHT_PART_NUMBER", 0.5),
			WeightManufacturer: getFloatConfigValue("", "MATCH_WEIGHT_MANUFACTURER", 0.3),
			WeightName:         getFloatConfigValue("", "MATCH_WEIGHT_NAME", 0.2),
			MinThreshold:       getFloatConfigValue("", "MATCH_MIN_THRESHOLD", 0.6),
			MediumThreshold:    getFloatConfigValue("", "MATCH_MEDIUM_THRESHOLD", 0.7),
			HighThreshold:      getFloatConfigValue("", "MATCH_HIGH_THRESHOLD", 0.9),
			AIAcceptFloor:      getFloatConfigValue("", "MATCH_AI_ACCEPT_FLOOR", 0.85),
		},

		AI: AIConfig{
			BaseURL:           getConfigValue(*aiBaseURL, "AI_BASE_URL", ""),
			APIKey:            getConfigValue("", "AI_API_KEY", ""),
			Model:             getConfigValue(*aiModel, "AI_MODEL", "gpt-4o-mini"),
			RequestsPerSecond: getFloatConfigValue("", "AI_REQUESTS_PER_SECOND", 2),
		},

		Exchange: ExchangeConfig{
			BatchSize: getIntConfigValue(*batchSize, "IMPORT_BATCH_SIZE", 100),
			ExportDir: getConfigValue(*exportDir, "EXPORT_DIR", ""),
		},
	}

	// Parse server timeouts.
	readTimeoutStr := getConfigValue(*readTimeout, "SERVER_READ_TIMEOUT", "15s")
	readTimeoutDuration, err := time.ParseDuration(readTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout %q: %w", readTimeoutStr, err)
	}
	cfg.Server.ReadTimeout = readTimeoutDuration

	writeTimeoutStr := getConfigValue(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s")
	writeTimeoutDuration, err := time.ParseDuration(writeTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout %q: %w", writeTimeoutStr, err)
	}
	cfg.Server.WriteTimeout = writeTimeoutDuration

	idleTimeoutStr := getConfigValue(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s")
	idleTimeoutDuration, err := time.ParseDuration(idleTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout %q: %w", idleTimeoutStr, err)
	}
	cfg.Server.IdleTimeout = idleTimeoutDuration

	aiTimeoutStr := getConfigValue("", "AI_TIMEOUT", "30s")
	aiTimeoutDuration, err := time.ParseDuration(aiTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid AI timeout %q: %w", aiTimeoutStr, err)
	}
	cfg.AI.Timeout = aiTimeoutDuration

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Expand export dir (defaults to {data}/exports).
	if err := cfg.expandExportDir(); err != nil {
		return nil, fmt.Errorf("invalid export dir: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	weightSum := c.Match.WeightPartNumber + c.Match.WeightManufacturer + c.Match.WeightName
	if weightSum < 0.999 || weightSum > 1.001 {
		return fmt.Errorf("match field weights must sum to 1, got %v", weightSum)
	}
	if c.Match.MinThreshold > c.Match.MediumThreshold || c.Match.MediumThreshold > c.Match.HighThreshold {
		return fmt.Errorf("match thresholds must be ordered min <= medium <= high, got %v/%v/%v",
			c.Match.MinThreshold, c.Match.MediumThreshold, c.Match.HighThreshold)
	}

	if c.Exchange.BatchSize <= 0 {
		return fmt.Errorf("import batch size must be positive, got %d", c.Exchange.BatchSize)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Quoteline", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// expandExportDir expands ~ and makes the path absolute.
// Defaults to {data}/exports if not specified.
func (c *Config) expandExportDir() error {
	defaultPath := filepath.Join(c.Data.BasePath, "exports")

	expanded, err := expandPath(c.Exchange.ExportDir, defaultPath)
	if err != nil {
		return err
	}
	c.Exchange.ExportDir = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
