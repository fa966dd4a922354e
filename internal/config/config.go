// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hitcklife/yoryor-last-sub008/internal/core/domain"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Log         LogConfig
	Auth        AuthConfig
	RateLimiter RateLimiterConfig
}

type ServerConfig struct {
	Port string
}

type StorageConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level       string
	Development bool
}

type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
}

// Overrides é indexado por contexto (api, chat, auth, path) e depois por operação.
type Overrides map[string]map[string]domain.RuleOverride

type RateLimiterConfig struct {
	// Strict troca para a ordem checa-e-incrementa, em que requisições negadas
	// não consomem o contador.
	Strict            bool
	FailOpen          bool
	TrustProxyHeaders bool
	Overrides         Overrides
}

func Load() (Config, error) {
	_ = godotenv.Load()

	server := ServerConfig{Port: getEnv("SERVER_PORT", "8080")}

	storageType := getEnv("STORAGE_TYPE", "redis")
	if storageType != "redis" && storageType != "memory" {
		return Config{}, fmt.Errorf("invalid STORAGE_TYPE: %s", storageType)
	}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	logDevelopment, err := getBool("LOG_DEVELOPMENT", false)
	if err != nil {
		return Config{}, err
	}

	rateLimiterConfig, err := buildRateLimiterConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: server,
		Storage: StorageConfig{
			Type:  storageType,
			Redis: redisConfig,
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: logDevelopment,
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
			JWTIssuer: os.Getenv("JWT_ISSUER"),
		},
		RateLimiter: rateLimiterConfig,
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	return RedisConfig{
		Host:     host,
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func buildRateLimiterConfig() (RateLimiterConfig, error) {
	strict, err := getBool("RATE_LIMIT_STRICT", false)
	if err != nil {
		return RateLimiterConfig{}, err
	}
	failOpen, err := getBool("RATE_LIMIT_FAIL_OPEN", true)
	if err != nil {
		return RateLimiterConfig{}, err
	}
	trustProxy, err := getBool("RATE_LIMIT_TRUST_PROXY", false)
	if err != nil {
		return RateLimiterConfig{}, err
	}

	overrides := Overrides{}
	if path := strings.TrimSpace(os.Getenv("RATE_LIMIT_RULES_FILE")); path != "" {
		overrides, err = LoadRulesFile(path)
		if err != nil {
			return RateLimiterConfig{}, err
		}
	}

	envOverrides, err := ParseOverrides(os.Getenv("RATE_LIMIT_OVERRIDES"))
	if err != nil {
		return RateLimiterConfig{}, err
	}
	overrides.merge(envOverrides)

	return RateLimiterConfig{
		Strict:            strict,
		FailOpen:          failOpen,
		TrustProxyHeaders: trustProxy,
		Overrides:         overrides,
	}, nil
}

// ParseOverrides lê a lista CONTEXT.OPERATION:MAX:WINDOW_SECONDS separada por vírgulas.
func ParseOverrides(raw string) (Overrides, error) {
	raw = strings.TrimSpace(raw)
	overrides := Overrides{}
	if raw == "" {
		return overrides, nil
	}

	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("rate limit override must follow CONTEXT.OPERATION:MAX:WINDOW_SECONDS: %s", item)
		}

		context, operation, ok := strings.Cut(strings.TrimSpace(parts[0]), ".")
		if !ok || context == "" || operation == "" {
			return nil, fmt.Errorf("rate limit override must name CONTEXT.OPERATION: %s", item)
		}

		maxAttempts, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid max attempts for %s: %w", parts[0], err)
		}
		windowSeconds, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("invalid window seconds for %s: %w", parts[0], err)
		}
		if maxAttempts <= 0 || windowSeconds <= 0 {
			return nil, fmt.Errorf("rate limit override %s must have positive max attempts and window seconds", parts[0])
		}

		overrides.set(context, operation, domain.RuleOverride{
			MaxAttempts: maxAttempts,
			Window:      time.Duration(windowSeconds) * time.Second,
		})
	}

	return overrides, nil
}

type ruleFileEntry struct {
	MaxAttempts   int    `yaml:"max_attempts"`
	WindowSeconds int    `yaml:"window_seconds"`
	Message       string `yaml:"message"`
}

// LoadRulesFile lê overrides em YAML no formato contexto -> operação -> regra.
func LoadRulesFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read RATE_LIMIT_RULES_FILE: %w", err)
	}

	var file map[string]map[string]ruleFileEntry
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse RATE_LIMIT_RULES_FILE: %w", err)
	}

	overrides := Overrides{}
	for context, rules := range file {
		for operation, entry := range rules {
			overrides.set(context, operation, domain.RuleOverride{
				MaxAttempts: entry.MaxAttempts,
				Window:      time.Duration(entry.WindowSeconds) * time.Second,
				Message:     entry.Message,
			})
		}
	}

	return overrides, nil
}

// For devolve os overrides de um contexto; nil quando não há nenhum.
func (o Overrides) For(context string) map[string]domain.RuleOverride {
	return o[context]
}

func (o Overrides) set(context, operation string, override domain.RuleOverride) {
	if o[context] == nil {
		o[context] = make(map[string]domain.RuleOverride)
	}
	o[context][operation] = override
}

// merge aplica src por cima de o. Campos zerados em src mantêm o valor de o.
func (o Overrides) merge(src Overrides) {
	for context, rules := range src {
		for operation, override := range rules {
			current := o[context][operation]
			if override.MaxAttempts > 0 {
				current.MaxAttempts = override.MaxAttempts
			}
			if override.Window > 0 {
				current.Window = override.Window
			}
			if override.Message != "" {
				current.Message = override.Message
			}
			o.set(context, operation, current)
		}
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
