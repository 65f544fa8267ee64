package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// LLM Configuration
	GeminiAPIKey      string
	GrokAPIKey        string
	PerplexityAPIKey  string
	HuggingFaceAPIKey string
	OpenAIAPIKey      string
	AnthropicAPIKey   string
	OpenRouterAPIKey  string
	ProviderChain     []string // Overrides the catalogue fallback order when non-empty
	// Request shaping
	RateLimitPerMinute int
	TrustedProxies     []string // IPs or CIDRs whose X-Forwarded-For is believed
	LogDir             string
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := ""
	if supabaseURL != "" {
		jwksURL = strings.TrimRight(supabaseURL, "/") + "/auth/v1/.well-known/jwks.json"
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseDBURL:   getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		TablePrefix:     tablePrefix,
		// LLM Configuration
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GrokAPIKey:        getEnv("GROK_API_KEY", ""),
		PerplexityAPIKey:  getEnv("PERPLEXITY_API_KEY", ""),
		HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		ProviderChain:     splitList(getEnv("PROVIDER_CHAIN", "")),
		// 100 requests per 15 minutes, rounded up
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 7),
		TrustedProxies:     splitList(getEnv("TRUSTED_PROXIES", "")),
		LogDir:             getEnv("LOG_DIR", ""),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// APIKey returns the configured credential for a provider name, or "" if none is set.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "gemini":
		return c.GeminiAPIKey
	case "grok":
		return c.GrokAPIKey
	case "perplexity":
		return c.PerplexityAPIKey
	case "huggingface":
		return c.HuggingFaceAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "openrouter":
		return c.OpenRouterAPIKey
	default:
		return ""
	}
}

// HasDatabase reports whether a Postgres connection string is configured
func (c *Config) HasDatabase() bool {
	return c.SupabaseDBURL != ""
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
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
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

// splitList turns "a, b,,c" into [a b c]
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
