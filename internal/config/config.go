package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the relay server configuration.
type Config struct {
	HTTPPort    string
	LogLevel    string
	LogRequests bool

	AnthropicAPIKey string
	AnthropicModel  string
	GoogleAIAPIKey  string
	GeminiModel     string

	PerplexityAPIKey string
	PerplexityModel  string
	PerplexityURL    string

	// ModelsFile optionally points at a YAML file overriding model availability.
	ModelsFile string

	RateLimitRPS   float64
	RateLimitBurst int
}

// ClientConfig is the configuration of the relayctl client.
type ClientConfig struct {
	ServerURL string
	StateDB   string
}

var AppConfig Config

func LoadConfig() Config {
	loadDotEnv()

	AppConfig = Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "INFO"),
		LogRequests: getEnvAsBool("LOG_REQUESTS", true),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		GoogleAIAPIKey:  getEnv("GOOGLE_AI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),
		PerplexityModel:  getEnv("PERPLEXITY_MODEL", "llama-3.1-sonar-small-128k-online"),
		PerplexityURL:    getEnv("PERPLEXITY_URL", "https://api.perplexity.ai/chat/completions"),

		ModelsFile: getEnv("MODELS_FILE", ""),

		RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),
	}

	// Missing keys are not fatal: the affected backend fails per request
	// and the stream reports an error event.
	if AppConfig.AnthropicAPIKey == "" {
		log.Println("ANTHROPIC_API_KEY is not set; intent classification will fall back and claude requests will fail")
	}
	if AppConfig.GoogleAIAPIKey == "" {
		log.Println("GOOGLE_AI_API_KEY is not set; gemini requests will fail")
	}
	if AppConfig.PerplexityAPIKey == "" {
		log.Println("PERPLEXITY_API_KEY is not set; perplexity requests will fail")
	}

	return AppConfig
}

func LoadClientConfig() ClientConfig {
	loadDotEnv()

	return ClientConfig{
		ServerURL: getEnv("RELAY_SERVER_URL", "http://localhost:8080"),
		StateDB:   getEnv("RELAY_STATE_DB", "solus_state.db"),
	}
}

// Debug reports whether debug logging is enabled.
func (c Config) Debug() bool {
	return c.LogLevel == "DEBUG"
}

func loadDotEnv() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
