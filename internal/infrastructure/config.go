package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"

	PayloadHTTP = "http"
	PayloadREST = "rest"
)

type Config struct {
	Port              string        `yaml:"port"`
	StoreBackend      string        `yaml:"store_backend"`
	TableName         string        `yaml:"table_name"`
	Region            string        `yaml:"aws_region"`
	DynamoDBEndpoint  string        `yaml:"dynamodb_endpoint"`
	AuthMode          string        `yaml:"auth_mode"`
	APIKey            string        `yaml:"api_key"`
	CognitoUserPoolID string        `yaml:"cognito_user_pool_id"`
	RedisURL          string        `yaml:"redis_url"`
	StatsCacheTTL     time.Duration `yaml:"stats_cache_ttl"`
	LogLevel          string        `yaml:"log_level"`
	SeedSampleData    bool          `yaml:"seed_sample_data"`
	// LambdaPayload picks the API Gateway event shape: http (v2) or rest (v1).
	LambdaPayload string `yaml:"lambda_payload"`
}

func defaults() Config {
	return Config{
		Port:          "8080",
		StoreBackend:  BackendDynamoDB,
		AuthMode:      "none",
		StatsCacheTTL: 30 * time.Second,
		LogLevel:      "info",
		LambdaPayload: PayloadHTTP,
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file named by CONFIG_FILE, and environment variables. ENV_FILE (or
// a .env in the working directory) is loaded into the environment first.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFile() error {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                 &cfg.Port,
		"STORE_BACKEND":        &cfg.StoreBackend,
		"TABLE_NAME":           &cfg.TableName,
		"AWS_REGION":           &cfg.Region,
		"DYNAMODB_ENDPOINT":    &cfg.DynamoDBEndpoint,
		"AUTH_MODE":            &cfg.AuthMode,
		"API_KEY":              &cfg.APIKey,
		"COGNITO_USER_POOL_ID": &cfg.CognitoUserPoolID,
		"REDIS_URL":            &cfg.RedisURL,
		"LOG_LEVEL":            &cfg.LogLevel,
		"LAMBDA_PAYLOAD":       &cfg.LambdaPayload,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}
	if v := os.Getenv("STATS_CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("STATS_CACHE_TTL: %w", err)
		}
		cfg.StatsCacheTTL = ttl
	}
	if v := os.Getenv("SEED_SAMPLE_DATA"); v != "" {
		seed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SEED_SAMPLE_DATA: %w", err)
		}
		cfg.SeedSampleData = seed
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.StoreBackend) {
	case BackendMemory:
	case BackendDynamoDB:
		if c.TableName == "" {
			errs = append(errs, errors.New("TABLE_NAME is required for the dynamodb backend"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("AWS_REGION is required for the dynamodb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be dynamodb or memory, got %q", c.StoreBackend))
	}
	switch strings.ToLower(c.AuthMode) {
	case "", "none":
	case "api_key":
		if c.APIKey == "" {
			errs = append(errs, errors.New("API_KEY is required for api_key auth mode"))
		}
	case "cognito":
		if c.CognitoUserPoolID == "" {
			errs = append(errs, errors.New("COGNITO_USER_POOL_ID is required for cognito auth mode"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("AWS_REGION is required for cognito auth mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be none, api_key or cognito, got %q", c.AuthMode))
	}
	switch strings.ToLower(c.LambdaPayload) {
	case "", PayloadHTTP, PayloadREST:
	default:
		errs = append(errs, fmt.Errorf("LAMBDA_PAYLOAD must be http or rest, got %q", c.LambdaPayload))
	}
	if c.StatsCacheTTL <= 0 {
		errs = append(errs, errors.New("STATS_CACHE_TTL must be positive"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	return errors.Join(errs...)
}
