package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting of the server.
type Config struct {
	// Server
	Port string

	// Pipeline limits
	MaxSegments      int
	SceneConcurrency int
	MaxRunningJobs   int

	// Per-stage timeouts
	NarrationTimeout time.Duration
	SceneTimeout     time.Duration
	ComposeTimeout   time.Duration

	// Composition
	FFmpegPath string

	// Speech backend
	TTSEndpoint string

	// Gemini API
	GeminiAPIKeys []string
	GeminiModel   string

	// Redis (optional submission queue bridge)
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase (optional artifact archive)
	ArchiveEnabled     bool
	SupabaseURL        string
	SupabaseServiceKey string
	ArchiveBucket      string
}

var globalConfig *Config

// LoadConfig - load settings from .env / environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	globalConfig = &Config{
		Port: getEnv("PORT", "8080"),

		MaxSegments:      getEnvInt("MAX_SEGMENTS", 12),
		SceneConcurrency: getEnvInt("SCENE_CONCURRENCY", 2),
		MaxRunningJobs:   getEnvInt("MAX_RUNNING_JOBS", 2),

		NarrationTimeout: getEnvDuration("NARRATION_TIMEOUT", 120*time.Second),
		SceneTimeout:     getEnvDuration("SCENE_TIMEOUT", 90*time.Second),
		ComposeTimeout:   getEnvDuration("COMPOSE_TIMEOUT", 300*time.Second),

		FFmpegPath: getEnv("FFMPEG_PATH", "ffmpeg"),

		TTSEndpoint: getEnv("TTS_ENDPOINT", ""),

		GeminiAPIKeys: splitKeys(getEnv("GEMINI_API_KEYS", os.Getenv("GEMINI_API_KEY"))),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   getEnvBool("REDIS_USE_TLS", false),

		ArchiveEnabled:     getEnvBool("ARCHIVE_ENABLED", false),
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", "videos"),
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Limits: segments=%d, scene concurrency=%d, running jobs=%d",
		globalConfig.MaxSegments, globalConfig.SceneConcurrency, globalConfig.MaxRunningJobs)
	log.Printf("   Redis bridge: %v, Supabase archive: %v",
		globalConfig.RedisEnabled, globalConfig.ArchiveEnabled)

	return globalConfig, nil
}

// GetConfig - fetch the loaded configuration
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// SetConfigForTests installs a config without touching the environment.
func SetConfigForTests(c *Config) {
	globalConfig = c
}

// validate - reject settings the pipeline cannot run with
func (c *Config) validate() error {
	if c.MaxSegments <= 0 {
		return fmt.Errorf("MAX_SEGMENTS must be positive")
	}
	if c.SceneConcurrency <= 0 {
		return fmt.Errorf("SCENE_CONCURRENCY must be positive")
	}
	if c.MaxRunningJobs <= 0 {
		return fmt.Errorf("MAX_RUNNING_JOBS must be positive")
	}
	if c.RedisEnabled && c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required when REDIS_ENABLED is set")
	}
	if c.ArchiveEnabled {
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required when ARCHIVE_ENABLED is set")
		}
		if c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_KEY is required when ARCHIVE_ENABLED is set")
		}
	}
	return nil
}

// getEnv - environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitKeys - comma-separated API key list, blanks removed
func splitKeys(raw string) []string {
	keys := []string{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// GetRedisAddr - Redis connection string
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
