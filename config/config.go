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

// Extractor names accepted by the EXTRACTOR setting.
const (
	ExtractorYtdlp      = "ytdlp"
	ExtractorSoundCloud = "soundcloud"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAllowedDomains  = "soundcloud.com"
	DefaultMaxFileMB       = 45
	DefaultDownloadTimeout = 180 * time.Second
	DefaultUserCooldown    = 20 * time.Second
	DefaultMaxQueueSize    = 7
)

// BotConfig holds all configuration values for the Telegram bot
type BotConfig struct {
	Token    string // Telegram bot token
	APIID    int    // Telegram API ID
	APIHash  string // Telegram API Hash
	LogLevel string // Logging level (INFO, WARN, ERROR, FATAL)

	AllowedDomains  []string      // Domains track downloads are permitted from
	RequiredChannel string        // Channel the user must be subscribed to ("" disables the gate)
	MaxFileMB       int           // Upper bound for uploaded audio files, in megabytes
	DownloadTimeout time.Duration // Per-request download deadline
	UserCooldown    time.Duration // Minimum interval between requests from one user
	MaxQueueSize    int           // Bound on pending download requests

	DownloadDir      string // Scratch directory for per-request temp dirs ("" means os.TempDir)
	CacheFile        string // bbolt file for the uploaded-audio cache
	Extractor        string // "ytdlp" or "soundcloud"
	SoundCloudClient string // api-v2 client id, required for the soundcloud extractor
}

// LoadConfig loads and validates the bot configuration from environment variables
// Returns a BotConfig struct or an error if validation fails
func LoadConfig() (*BotConfig, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// Create and use environment validator
	validator := NewEnvValidator()

	// Validate required environment variables
	if err := validator.ValidateRequired(); err != nil {
		return nil, fmt.Errorf("environment validation failed: %w", err)
	}

	// Get API credentials
	apiID, apiHash, err := validator.GetAPICredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to get API credentials: %w", err)
	}

	// Get bot token
	token := validator.GetBotToken()
	if token == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required but not set")
	}

	// Get log level with default
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO" // Default log level
	}

	maxFileMB, err := intEnv("MAX_FILE_MB", DefaultMaxFileMB)
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := secondsEnv("DOWNLOAD_TIMEOUT_SEC", DefaultDownloadTimeout)
	if err != nil {
		return nil, err
	}

	userCooldown, err := secondsEnv("USER_COOLDOWN_SEC", DefaultUserCooldown)
	if err != nil {
		return nil, err
	}

	maxQueueSize, err := intEnv("MAX_QUEUE_SIZE", DefaultMaxQueueSize)
	if err != nil {
		return nil, err
	}

	extractor := strings.ToLower(strings.TrimSpace(os.Getenv("EXTRACTOR")))
	if extractor == "" {
		extractor = ExtractorYtdlp
	}

	cacheFile := os.Getenv("CACHE_FILE")
	if cacheFile == "" {
		cacheFile = "upload_cache.db"
	}

	config := &BotConfig{
		Token:    token,
		APIID:    apiID,
		APIHash:  apiHash,
		LogLevel: logLevel,

		AllowedDomains:  parseDomainList(os.Getenv("ALLOWED_DOMAINS")),
		RequiredChannel: strings.TrimSpace(os.Getenv("REQUIRED_CHANNEL")),
		MaxFileMB:       maxFileMB,
		DownloadTimeout: downloadTimeout,
		UserCooldown:    userCooldown,
		MaxQueueSize:    maxQueueSize,

		DownloadDir:      os.Getenv("DOWNLOAD_DIR"),
		CacheFile:        cacheFile,
		Extractor:        extractor,
		SoundCloudClient: strings.TrimSpace(os.Getenv("SOUNDCLOUD_CLIENT_ID")),
	}

	return config, nil
}

// Validate performs additional validation on the loaded configuration
func (c *BotConfig) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("bot token cannot be empty")
	}

	if c.APIID <= 0 {
		return fmt.Errorf("API ID must be a positive integer, got: %d", c.APIID)
	}

	if c.APIHash == "" {
		return fmt.Errorf("API hash cannot be empty")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
		"FATAL": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s. Valid levels are: DEBUG, INFO, WARN, ERROR, FATAL", c.LogLevel)
	}

	if len(c.AllowedDomains) == 0 {
		return fmt.Errorf("allowed domain list cannot be empty")
	}

	if c.MaxFileMB <= 0 {
		return fmt.Errorf("MAX_FILE_MB must be a positive integer, got: %d", c.MaxFileMB)
	}

	if c.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive, got: %v", c.DownloadTimeout)
	}

	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be a positive integer, got: %d", c.MaxQueueSize)
	}

	// The channel gate accepts '@username' or a '-100...' channel ID, same
	// convention as the Bot API.
	if c.RequiredChannel != "" &&
		!strings.HasPrefix(c.RequiredChannel, "@") &&
		!strings.HasPrefix(c.RequiredChannel, "-100") {
		return fmt.Errorf("REQUIRED_CHANNEL must be '@username' or a '-100...' channel ID, got: %s", c.RequiredChannel)
	}

	switch c.Extractor {
	case ExtractorYtdlp:
	case ExtractorSoundCloud:
		if c.SoundCloudClient == "" {
			return fmt.Errorf("SOUNDCLOUD_CLIENT_ID is required when EXTRACTOR=soundcloud")
		}
	default:
		return fmt.Errorf("invalid extractor: %s. Valid extractors are: %s, %s",
			c.Extractor, ExtractorYtdlp, ExtractorSoundCloud)
	}

	return nil
}

// MaxFileBytes returns the upload size limit in bytes.
func (c *BotConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) * 1024 * 1024
}

// parseDomainList splits a comma-separated domain list, trimming whitespace
// and lowercasing entries. An empty input yields the default list.
func parseDomainList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultAllowedDomains
	}

	var domains []string
	for _, entry := range strings.Split(raw, ",") {
		domain := strings.ToLower(strings.TrimSpace(entry))
		if domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}

// intEnv reads an integer environment variable with a default.
func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer, got: %s", name, raw)
	}
	return value, nil
}

// secondsEnv reads a duration expressed in whole seconds with a default.
func secondsEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer number of seconds, got: %s", name, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}
