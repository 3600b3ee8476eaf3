package config

import (
	"fmt"
	"os"
	"strings"
	"tracklift/internal/logger"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion string `mapstructure:"GENERAL_VERSION"`
	Environment    string `mapstructure:"ENVIRONMENT"`
	ServerPort     int    `mapstructure:"SERVER_PORT"`

	DatabaseHost     string `mapstructure:"DB_HOST"`
	DatabasePort     int    `mapstructure:"DB_PORT"`
	DatabaseName     string `mapstructure:"DB_NAME"`
	DatabaseUser     string `mapstructure:"DB_USER"`
	DatabasePassword string `mapstructure:"DB_PASSWORD"`

	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	DatabaseCacheReset   int    `mapstructure:"DB_CACHE_RESET"`

	SecurityJwtSecret string `mapstructure:"SECURITY_JWT_SECRET"`

	// AnthropicAPIKey backs the tier-3 LLM extraction fallback (§4.5).
	AnthropicAPIKey string `mapstructure:"ANTHROPIC_API_KEY"`

	// ProxyPoolURLs is a comma-separated list of upstream proxy endpoints.
	ProxyPoolURLs string `mapstructure:"PROXY_POOL_URLS"`

	// SolverServiceURL and SolverAuthSecret are loaded (the secret is masked
	// when logged) but no component reads them: challenge.NewDefaultSolver
	// takes no endpoint or credential.
	SolverServiceURL  string `mapstructure:"SOLVER_SERVICE_URL"`
	SolverAuthSecret  string `mapstructure:"SOLVER_AUTH_SECRET"`

	// FetchUserAgent is loaded but not read by any component; the header
	// generator builds its identities without it.
	FetchUserAgent string `mapstructure:"FETCH_USER_AGENT"`

	// CooldownPollIntervalSeconds controls how often cmd/cooldown sweeps for
	// retry-eligible enrichment rows, expressed in seconds.
	CooldownPollIntervalSeconds int `mapstructure:"COOLDOWN_POLL_INTERVAL_SECONDS"`

	// Resolver thresholds and cool-down policy (§4.9).
	ResolverHighConfidenceThreshold float64 `mapstructure:"RESOLVER_HIGH_CONFIDENCE_THRESHOLD"`
	ResolverMediumConfidenceThreshold float64 `mapstructure:"RESOLVER_MEDIUM_CONFIDENCE_THRESHOLD"`
	ResolverGenreSimilarityThreshold  float64 `mapstructure:"RESOLVER_GENRE_SIMILARITY_THRESHOLD"`
	ResolverCooldownStrategy          string  `mapstructure:"RESOLVER_COOLDOWN_STRATEGY"`
	ResolverCooldownBaseDays          int     `mapstructure:"RESOLVER_COOLDOWN_BASE_DAYS"`
	ResolverMaxRetryAttempts          int     `mapstructure:"RESOLVER_MAX_RETRY_ATTEMPTS"`

	// External enrichment API credentials, each backing one rung of the
	// Tier 2 waterfall.
	SpotifyClientID         string `mapstructure:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret     string `mapstructure:"SPOTIFY_CLIENT_SECRET"`
	MusicBrainzUserAgent    string `mapstructure:"MUSICBRAINZ_USER_AGENT"`
	CatalogServiceURL       string `mapstructure:"CATALOG_SERVICE_URL"`
	CatalogServiceToken     string `mapstructure:"CATALOG_SERVICE_TOKEN"`
	TaggingServiceURL       string `mapstructure:"TAGGING_SERVICE_URL"`
	TaggingServiceAPIKey    string `mapstructure:"TAGGING_SERVICE_API_KEY"`
	SetlistProviderURL      string `mapstructure:"SETLIST_PROVIDER_URL"`
	SetlistProviderAPIKey   string `mapstructure:"SETLIST_PROVIDER_API_KEY"`

	// Per-source index URLs and host allow-lists for the two built-in
	// extractors (§4.5). Comma-separated for the host lists.
	DJSetIndexURL           string `mapstructure:"DJ_SET_INDEX_URL"`
	DJSetIndexAllowedHosts  string `mapstructure:"DJ_SET_INDEX_ALLOWED_HOSTS"`
	FestivalArchiveURL          string `mapstructure:"FESTIVAL_ARCHIVE_URL"`
	FestivalArchiveAllowedHosts string `mapstructure:"FESTIVAL_ARCHIVE_ALLOWED_HOSTS"`

	// GenreVocabularyCSV seeds the genre normalizer's known-vocabulary set
	// (§4.9); a comma-separated list of canonical genre tags.
	GenreVocabularyCSV string `mapstructure:"GENRE_VOCABULARY"`

	// RecognizedSourcesCSV bounds which Setlist.Source values validation
	// accepts, so a misconfigured extractor can't silently write rows under
	// an unrecognized source identifier.
	RecognizedSourcesCSV string `mapstructure:"RECOGNIZED_SOURCES"`
}

var ConfigInstance Config

var secretKeys = map[string]bool{
	"DB_PASSWORD":             true,
	"SECURITY_JWT_SECRET":     true,
	"ANTHROPIC_API_KEY":       true,
	"SOLVER_AUTH_SECRET":      true,
	"SPOTIFY_CLIENT_SECRET":   true,
	"CATALOG_SERVICE_TOKEN":   true,
	"TAGGING_SERVICE_API_KEY": true,
	"SETLIST_PROVIDER_API_KEY": true,
}

const secretMountDir = "/run/secrets"

func InitConfig() (Config, error) {
	log := logger.New("config").Function("InitConfig")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	envVars := []string{
		"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"DB_CACHE_ADDRESS", "DB_CACHE_PORT", "DB_CACHE_RESET",
		"SECURITY_JWT_SECRET", "ANTHROPIC_API_KEY", "PROXY_POOL_URLS",
		"SOLVER_SERVICE_URL", "SOLVER_AUTH_SECRET", "FETCH_USER_AGENT",
		"COOLDOWN_POLL_INTERVAL_SECONDS",
		"RESOLVER_HIGH_CONFIDENCE_THRESHOLD", "RESOLVER_MEDIUM_CONFIDENCE_THRESHOLD",
		"RESOLVER_GENRE_SIMILARITY_THRESHOLD", "RESOLVER_COOLDOWN_STRATEGY",
		"RESOLVER_COOLDOWN_BASE_DAYS", "RESOLVER_MAX_RETRY_ATTEMPTS",
		"SPOTIFY_CLIENT_ID", "SPOTIFY_CLIENT_SECRET", "MUSICBRAINZ_USER_AGENT",
		"CATALOG_SERVICE_URL", "CATALOG_SERVICE_TOKEN",
		"TAGGING_SERVICE_URL", "TAGGING_SERVICE_API_KEY",
		"SETLIST_PROVIDER_URL", "SETLIST_PROVIDER_API_KEY",
		"DJ_SET_INDEX_URL", "DJ_SET_INDEX_ALLOWED_HOSTS",
		"FESTIVAL_ARCHIVE_URL", "FESTIVAL_ARCHIVE_ALLOWED_HOSTS",
		"GENRE_VOCABULARY", "RECOGNIZED_SOURCES",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	// Secret files take precedence over env vars and the .env pair for the
	// same key, matching how orchestrated deployments mount credentials at
	// /run/secrets/<key> rather than inject them directly into the
	// environment.
	loadSecretFiles(log)

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("SECURITY_JWT_SECRET")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	log.Info("Successfully initialized config", "config", maskedConfig(config))
	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}
	return ConfigInstance, nil
}

// loadSecretFiles binds any present /run/secrets/<KEY> file as that key's
// value with viper.Set, so a mounted secret wins over both the env var and
// the .env pair for that key.
func loadSecretFiles(log logger.Logger) {
	entries, err := os.ReadDir(secretMountDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		key := strings.ToUpper(entry.Name())
		if !secretKeys[key] {
			continue
		}
		data, err := os.ReadFile(secretMountDir + "/" + entry.Name())
		if err != nil {
			log.Warn("failed to read mounted secret", "key", key, "error", err)
			continue
		}
		viper.Set(key, strings.TrimSpace(string(data)))
	}
}

func GetConfig() Config {
	return ConfigInstance
}

func validateConfig(config Config, log logger.Logger) error {
	// No HTTP API surface in this module (§1 Non-goals); ServerPort is
	// repurposed from the teacher's web-server listen port to the
	// per-worker Prometheus metrics endpoint port (§6) and defaults below.
	if config.ServerPort == 0 {
		config.ServerPort = DefaultMetricsPort
	}
	if config.DatabaseHost == "" {
		return log.Err("Fatal error: missing database host", fmt.Errorf("DB_HOST is required"))
	}

	if config.ResolverHighConfidenceThreshold == 0 {
		config.ResolverHighConfidenceThreshold = DefaultHighConfidenceThreshold
	}
	if config.ResolverMediumConfidenceThreshold == 0 {
		config.ResolverMediumConfidenceThreshold = DefaultMediumConfidenceThreshold
	}
	if config.ResolverGenreSimilarityThreshold == 0 {
		config.ResolverGenreSimilarityThreshold = DefaultGenreSimilarityThreshold
	}
	if config.ResolverCooldownStrategy == "" {
		config.ResolverCooldownStrategy = "adaptive"
	}
	if config.ResolverCooldownBaseDays == 0 {
		config.ResolverCooldownBaseDays = DefaultCooldownBaseDays
	}
	if config.ResolverMaxRetryAttempts == 0 {
		config.ResolverMaxRetryAttempts = DefaultMaxRetryAttempts
	}

	ConfigInstance = config
	return nil
}

// Resolver defaults, applied when a deployment leaves the corresponding
// env var unset (§4.9).
const (
	DefaultHighConfidenceThreshold   = 0.85
	DefaultMediumConfidenceThreshold = 0.70
	DefaultGenreSimilarityThreshold  = 0.85
	DefaultCooldownBaseDays          = 90
	DefaultMaxRetryAttempts          = 5
	DefaultMetricsPort               = 9090
)

// maskedConfig returns a copy of config with every secret-bearing field
// redacted, safe to pass to a structured logger.
func maskedConfig(config Config) Config {
	masked := config
	masked.DatabasePassword = maskSecret(config.DatabasePassword)
	masked.SecurityJwtSecret = maskSecret(config.SecurityJwtSecret)
	masked.AnthropicAPIKey = maskSecret(config.AnthropicAPIKey)
	masked.SolverAuthSecret = maskSecret(config.SolverAuthSecret)
	masked.SpotifyClientSecret = maskSecret(config.SpotifyClientSecret)
	masked.CatalogServiceToken = maskSecret(config.CatalogServiceToken)
	masked.TaggingServiceAPIKey = maskSecret(config.TaggingServiceAPIKey)
	masked.SetlistProviderAPIKey = maskSecret(config.SetlistProviderAPIKey)
	return masked
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "***"
}
