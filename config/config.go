package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type JWTConfig struct {
	SecretKey string `mapstructure:"secretKey"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"apiKey"`
	TextModel         string        `mapstructure:"textModel"`
	VisionModel       string        `mapstructure:"visionModel"`
	EmbeddingModel    string        `mapstructure:"embeddingModel"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// RecommendationConfig tunes the route recommender.
type RecommendationConfig struct {
	UseAI               bool    `mapstructure:"useAI"`
	DefaultRadiusKm     float64 `mapstructure:"defaultRadiusKm"`
	CandidateLimit      int     `mapstructure:"candidateLimit"`
	RerankCandidates    int     `mapstructure:"rerankCandidates"`
	ImageMatchThreshold float64 `mapstructure:"imageMatchThreshold"`
	RAGTopK             int     `mapstructure:"ragTopK"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Disabled bool          `mapstructure:"disabled"`
}

type CacheConfig struct {
	EmbeddingTTL    time.Duration `mapstructure:"embeddingTTL"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

type Config struct {
	Mode         string `mapstructure:"mode"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Observability struct {
		ServiceName string `mapstructure:"serviceName"`
		MetricsPort string `mapstructure:"metricsPort"`
	} `mapstructure:"observability"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	RateLimit      RateLimitConfig      `mapstructure:"rateLimit"`
	Cache          CacheConfig          `mapstructure:"cache"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"mode":                            "APP_ENV",
	"gemini.apiKey":                   "GOOGLE_GEMINI_API_KEY",
	"recommendation.useAI":            "USE_AI_ROUTE_RECOMMENDATION",
	"jwt.secretKey":                   "JWT_SECRET_KEY",
	"repositories.postgres.host":      "POSTGRES_HOST",
	"repositories.postgres.port":      "POSTGRES_PORT",
	"repositories.postgres.username":  "POSTGRES_USER",
	"repositories.postgres.password":  "POSTGRES_PASSWORD",
	"repositories.postgres.db":        "POSTGRES_DB",
	"server.HTTPPort":                 "HTTP_PORT",
	"observability.metricsPort":       "METRICS_PORT",
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&config)
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}

func applyDefaults(c *Config) {
	if c.Recommendation.DefaultRadiusKm <= 0 {
		c.Recommendation.DefaultRadiusKm = 15.0
	}
	if c.Recommendation.CandidateLimit <= 0 {
		c.Recommendation.CandidateLimit = 50
	}
	if c.Recommendation.RerankCandidates <= 0 {
		c.Recommendation.RerankCandidates = 20
	}
	if c.Recommendation.ImageMatchThreshold <= 0 {
		c.Recommendation.ImageMatchThreshold = 0.6
	}
	if c.Recommendation.RAGTopK <= 0 {
		c.Recommendation.RAGTopK = 20
	}
	if c.Cache.EmbeddingTTL <= 0 {
		c.Cache.EmbeddingTTL = 30 * time.Minute
	}
	if c.Cache.CleanupInterval <= 0 {
		c.Cache.CleanupInterval = 10 * time.Minute
	}
}
