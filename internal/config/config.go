package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env  string
	Port string

	JWTSecret      string
	JWTExpireHours int

	// Users allowed to export, import and reset the whole document.
	AdminUserIDs []string

	// Document storage
	StorageBackend  string // file | sqlite | redis
	StoragePath     string
	StorageKey      string
	PersistDebounce time.Duration

	RedisURL  string
	RedisPass string
	RedisDB   int

	SimulateDelayMin time.Duration
	SimulateDelayMax time.Duration

	// Remote sessions (client side of the edge function)
	EdgeURL string

	// Edge function
	WorkerPort             string
	GitHubToken            string
	GitHubOwner            string
	GitHubRepo             string
	GitHubRef              string
	GitHubAPIURL           string
	WorkflowPath           string
	WorkflowFile           string
	GitHubReturnRunDetails bool
	WebhookSecret          string
	DefaultRDPUser         string
	DefaultRDPPassword     string
}

func Load() (*Config, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecret(32)
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Tokens will not survive restarts.")
	}

	jwtHours, err := getEnvInt("JWT_EXPIRE_HOURS", 24*7)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	debounceMs, err := getEnvInt("PERSIST_DEBOUNCE_MS", 220)
	if err != nil {
		return nil, err
	}
	delayMin, err := getEnvInt("SIMULATE_DELAY_MIN_MS", 900)
	if err != nil {
		return nil, err
	}
	delayMax, err := getEnvInt("SIMULATE_DELAY_MAX_MS", 1400)
	if err != nil {
		return nil, err
	}
	if delayMax < delayMin {
		return nil, fmt.Errorf("SIMULATE_DELAY_MAX_MS (%d) must be >= SIMULATE_DELAY_MIN_MS (%d)", delayMax, delayMin)
	}
	returnRunDetails, err := getEnvBool("GITHUB_RETURN_RUN_DETAILS", false)
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnv("STORAGE_BACKEND", "file"))
	switch backend {
	case "file", "sqlite", "redis":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}

	cfg := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		JWTSecret:      jwtSecret,
		JWTExpireHours: jwtHours,

		AdminUserIDs: getEnvList("ADMIN_USER_IDS"),

		StorageBackend:  backend,
		StoragePath:     getEnv("STORAGE_PATH", "data"),
		StorageKey:      getEnv("STORAGE_KEY", "cloudvps_app_v3"),
		PersistDebounce: time.Duration(debounceMs) * time.Millisecond,

		RedisURL:  os.Getenv("REDIS_URL"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		RedisDB:   redisDB,

		SimulateDelayMin: time.Duration(delayMin) * time.Millisecond,
		SimulateDelayMax: time.Duration(delayMax) * time.Millisecond,

		EdgeURL: strings.TrimRight(os.Getenv("EDGE_URL"), "/"),

		WorkerPort:             getEnv("WORKER_PORT", "8787"),
		GitHubToken:            os.Getenv("GITHUB_TOKEN"),
		GitHubOwner:            os.Getenv("GITHUB_OWNER"),
		GitHubRepo:             os.Getenv("GITHUB_REPO"),
		GitHubRef:              getEnv("GITHUB_REF", "main"),
		GitHubAPIURL:           strings.TrimRight(getEnv("GITHUB_API_URL", "https://api.github.com"), "/"),
		WorkflowPath:           getEnv("WORKFLOW_PATH", ".github/workflows/WindowsRDP.yml"),
		WorkflowFile:           getEnv("WORKFLOW_FILE", "WindowsRDP.yml"),
		GitHubReturnRunDetails: returnRunDetails,
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		DefaultRDPUser:         getEnv("DEFAULT_RDP_USER", "Admin"),
		DefaultRDPPassword:     getEnv("DEFAULT_RDP_PASSWORD", "Window@123456"),
	}

	if backend == "redis" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_URL")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func generateSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + strconv.Itoa(length)))
	}
	return hex.EncodeToString(bytes)
}
