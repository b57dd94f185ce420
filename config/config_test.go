package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid configuration",
			envVars: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
				"API_ID":    "12345",
				"API_HASH":  "abcdef123456",
				"LOG_LEVEL": "INFO",
			},
			expectError: false,
		},
		{
			name: "valid configuration with defaults",
			envVars: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
				"API_ID":    "12345",
				"API_HASH":  "abcdef123456",
			},
			expectError: false,
		},
		{
			name: "missing BOT_TOKEN",
			envVars: map[string]string{
				"API_ID":   "12345",
				"API_HASH": "abcdef123456",
			},
			expectError: true,
			errorMsg:    "environment validation failed",
		},
		{
			name: "invalid API_ID",
			envVars: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
				"API_ID":    "not_a_number",
				"API_HASH":  "abcdef123456",
			},
			expectError: true,
			errorMsg:    "environment validation failed",
		},
		{
			name: "invalid MAX_FILE_MB",
			envVars: map[string]string{
				"BOT_TOKEN":   "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
				"API_ID":      "12345",
				"API_HASH":    "abcdef123456",
				"MAX_FILE_MB": "lots",
			},
			expectError: true,
			errorMsg:    "MAX_FILE_MB must be a valid integer",
		},
		{
			name: "invalid DOWNLOAD_TIMEOUT_SEC",
			envVars: map[string]string{
				"BOT_TOKEN":            "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11",
				"API_ID":               "12345",
				"API_HASH":             "abcdef123456",
				"DOWNLOAD_TIMEOUT_SEC": "3m",
			},
			expectError: true,
			errorMsg:    "DOWNLOAD_TIMEOUT_SEC must be a valid integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}

			config, err := LoadConfig()

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
					return
				}
				if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error message to contain %q, got %q", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("expected no error but got: %v", err)
					return
				}
				if config == nil {
					t.Errorf("expected config but got nil")
					return
				}

				if config.Token != tt.envVars["BOT_TOKEN"] {
					t.Errorf("expected token %q, got %q", tt.envVars["BOT_TOKEN"], config.Token)
				}
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("BOT_TOKEN", "123456:ABC")
	os.Setenv("API_ID", "12345")
	os.Setenv("API_HASH", "abcdef123456")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}

	if config.LogLevel != "INFO" {
		t.Errorf("expected default log level INFO, got %q", config.LogLevel)
	}
	if len(config.AllowedDomains) != 1 || config.AllowedDomains[0] != "soundcloud.com" {
		t.Errorf("expected default domains [soundcloud.com], got %v", config.AllowedDomains)
	}
	if config.MaxFileMB != DefaultMaxFileMB {
		t.Errorf("expected default max file size %d, got %d", DefaultMaxFileMB, config.MaxFileMB)
	}
	if config.DownloadTimeout != DefaultDownloadTimeout {
		t.Errorf("expected default download timeout %v, got %v", DefaultDownloadTimeout, config.DownloadTimeout)
	}
	if config.UserCooldown != DefaultUserCooldown {
		t.Errorf("expected default cooldown %v, got %v", DefaultUserCooldown, config.UserCooldown)
	}
	if config.MaxQueueSize != DefaultMaxQueueSize {
		t.Errorf("expected default queue size %d, got %d", DefaultMaxQueueSize, config.MaxQueueSize)
	}
	if config.Extractor != ExtractorYtdlp {
		t.Errorf("expected default extractor %q, got %q", ExtractorYtdlp, config.Extractor)
	}
	if config.RequiredChannel != "" {
		t.Errorf("expected channel gate disabled by default, got %q", config.RequiredChannel)
	}
	if config.CacheFile != "upload_cache.db" {
		t.Errorf("expected default cache file, got %q", config.CacheFile)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	os.Clearenv()
	os.Setenv("BOT_TOKEN", "123456:ABC")
	os.Setenv("API_ID", "12345")
	os.Setenv("API_HASH", "abcdef123456")
	os.Setenv("ALLOWED_DOMAINS", "soundcloud.com, Snd.sc")
	os.Setenv("MAX_FILE_MB", "20")
	os.Setenv("DOWNLOAD_TIMEOUT_SEC", "60")
	os.Setenv("USER_COOLDOWN_SEC", "5")
	os.Setenv("MAX_QUEUE_SIZE", "3")
	os.Setenv("REQUIRED_CHANNEL", "@mychannel")
	os.Setenv("EXTRACTOR", "SoundCloud")
	os.Setenv("SOUNDCLOUD_CLIENT_ID", "client123")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error but got: %v", err)
	}

	if len(config.AllowedDomains) != 2 || config.AllowedDomains[1] != "snd.sc" {
		t.Errorf("expected lowercased trimmed domains, got %v", config.AllowedDomains)
	}
	if config.MaxFileMB != 20 {
		t.Errorf("expected max file size 20, got %d", config.MaxFileMB)
	}
	if config.DownloadTimeout != 60*time.Second {
		t.Errorf("expected download timeout 60s, got %v", config.DownloadTimeout)
	}
	if config.UserCooldown != 5*time.Second {
		t.Errorf("expected cooldown 5s, got %v", config.UserCooldown)
	}
	if config.MaxQueueSize != 3 {
		t.Errorf("expected queue size 3, got %d", config.MaxQueueSize)
	}
	if config.RequiredChannel != "@mychannel" {
		t.Errorf("expected required channel @mychannel, got %q", config.RequiredChannel)
	}
	if config.Extractor != ExtractorSoundCloud {
		t.Errorf("expected soundcloud extractor, got %q", config.Extractor)
	}
	if config.SoundCloudClient != "client123" {
		t.Errorf("expected client id client123, got %q", config.SoundCloudClient)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("expected overridden config to validate, got: %v", err)
	}
}

func TestBotConfig_Validate(t *testing.T) {
	validConfig := func() *BotConfig {
		return &BotConfig{
			Token:           "123456:ABC",
			APIID:           12345,
			APIHash:         "abcdef123456",
			LogLevel:        "INFO",
			AllowedDomains:  []string{"soundcloud.com"},
			MaxFileMB:       45,
			DownloadTimeout: 180 * time.Second,
			UserCooldown:    20 * time.Second,
			MaxQueueSize:    7,
			Extractor:       ExtractorYtdlp,
		}
	}

	tests := []struct {
		name     string
		modify   func(*BotConfig)
		errorMsg string
	}{
		{
			name:   "valid config",
			modify: func(c *BotConfig) {},
		},
		{
			name:     "empty token",
			modify:   func(c *BotConfig) { c.Token = "" },
			errorMsg: "bot token cannot be empty",
		},
		{
			name:     "zero API ID",
			modify:   func(c *BotConfig) { c.APIID = 0 },
			errorMsg: "API ID must be a positive integer",
		},
		{
			name:     "empty API hash",
			modify:   func(c *BotConfig) { c.APIHash = "" },
			errorMsg: "API hash cannot be empty",
		},
		{
			name:     "invalid log level",
			modify:   func(c *BotConfig) { c.LogLevel = "VERBOSE" },
			errorMsg: "invalid log level",
		},
		{
			name:     "no allowed domains",
			modify:   func(c *BotConfig) { c.AllowedDomains = nil },
			errorMsg: "allowed domain list cannot be empty",
		},
		{
			name:     "non-positive file limit",
			modify:   func(c *BotConfig) { c.MaxFileMB = 0 },
			errorMsg: "MAX_FILE_MB must be a positive integer",
		},
		{
			name:     "non-positive timeout",
			modify:   func(c *BotConfig) { c.DownloadTimeout = 0 },
			errorMsg: "download timeout must be positive",
		},
		{
			name:     "non-positive queue size",
			modify:   func(c *BotConfig) { c.MaxQueueSize = 0 },
			errorMsg: "MAX_QUEUE_SIZE must be a positive integer",
		},
		{
			name:     "malformed required channel",
			modify:   func(c *BotConfig) { c.RequiredChannel = "mychannel" },
			errorMsg: "REQUIRED_CHANNEL must be",
		},
		{
			name:   "channel ID form accepted",
			modify: func(c *BotConfig) { c.RequiredChannel = "-1001234567890" },
		},
		{
			name:     "unknown extractor",
			modify:   func(c *BotConfig) { c.Extractor = "wget" },
			errorMsg: "invalid extractor",
		},
		{
			name:     "soundcloud extractor without client id",
			modify:   func(c *BotConfig) { c.Extractor = ExtractorSoundCloud },
			errorMsg: "SOUNDCLOUD_CLIENT_ID is required",
		},
		{
			name: "soundcloud extractor with client id",
			modify: func(c *BotConfig) {
				c.Extractor = ExtractorSoundCloud
				c.SoundCloudClient = "client123"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(config)

			err := config.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("expected no error but got: %v", err)
				}
				return
			}

			if err == nil {
				t.Errorf("expected error containing %q but got none", tt.errorMsg)
				return
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error to contain %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestBotConfig_MaxFileBytes(t *testing.T) {
	config := &BotConfig{MaxFileMB: 45}
	if got := config.MaxFileBytes(); got != 45*1024*1024 {
		t.Errorf("expected %d bytes, got %d", 45*1024*1024, got)
	}
}

func TestParseDomainList(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", []string{"soundcloud.com"}},
		{"  ", []string{"soundcloud.com"}},
		{"soundcloud.com", []string{"soundcloud.com"}},
		{"SoundCloud.com, snd.sc ,", []string{"soundcloud.com", "snd.sc"}},
	}

	for _, tt := range tests {
		got := parseDomainList(tt.input)
		if len(got) != len(tt.expected) {
			t.Errorf("parseDomainList(%q): expected %v, got %v", tt.input, tt.expected, got)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("parseDomainList(%q): expected %v, got %v", tt.input, tt.expected, got)
				break
			}
		}
	}
}
