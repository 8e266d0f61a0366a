package versequiz

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration shared by the commands
type Config struct {
	Port       string
	DBPath     string
	CorpusPath string
	SessionKey string
	SeedBook   string
	Points     int
	Redis      RedisConfig
	OpenAIKey  string
	Verbose    bool
}

// LoadConfig reads configuration from the environment, loading a .env file first if
// one exists
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		VerboseLog("No .env file found, using environment variables")
	}

	return &Config{
		Port:       getEnvOrDefault("PORT", "8180"),
		DBPath:     getEnvOrDefault("VERSEQUIZ_DB", "./versequiz.db"),
		CorpusPath: getEnvOrDefault("VERSEQUIZ_CORPUS", "./data/corpus.json"),
		SessionKey: getEnvOrDefault("SESSION_KEY", "versequiz-session-secret-key-change-in-production"),
		SeedBook:   getEnvOrDefault("VERSEQUIZ_SEED_BOOK", "Genesis"),
		Points:     getEnvInt("VERSEQUIZ_POINTS", DefaultPoints),
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PWD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		Verbose:   getEnvBool("VERSEQUIZ_VERBOSE", false),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
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
	if err != nil {
		logf("Ignoring %s=%q: not a number", key, value)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		logf("Ignoring %s=%q: not a boolean", key, value)
		return defaultValue
	}
	return b
}
