package config

import (
	"os"
	"strings"
	"testing"
)

func clearCredentialEnv() {
	os.Unsetenv("BOT_TOKEN")
	os.Unsetenv("API_ID")
	os.Unsetenv("API_HASH")
}

func TestEnvValidator_ValidateRequired(t *testing.T) {
	validator := NewEnvValidator()

	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name: "complete credentials",
			env: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl",
				"API_ID":    "12345",
				"API_HASH":  "0123456789abcdef",
			},
		},
		{
			name: "token absent",
			env: map[string]string{
				"API_ID":   "12345",
				"API_HASH": "0123456789abcdef",
			},
			wantErr: "[BOT_TOKEN]",
		},
		{
			name: "api id absent",
			env: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl",
				"API_HASH":  "0123456789abcdef",
			},
			wantErr: "[API_ID]",
		},
		{
			name: "api hash absent",
			env: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl",
				"API_ID":    "12345",
			},
			wantErr: "[API_HASH]",
		},
		{
			name:    "nothing set",
			env:     map[string]string{},
			wantErr: "[BOT_TOKEN API_ID API_HASH]",
		},
		{
			name: "api id is not numeric",
			env: map[string]string{
				"BOT_TOKEN": "123456:ABC-DEF1234ghIkl",
				"API_ID":    "twelve",
				"API_HASH":  "0123456789abcdef",
			},
			wantErr: "invalid API_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv()
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			err := validator.ValidateRequired()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ValidateRequired() returned unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateRequired() should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidateRequired() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvValidator_GetBotToken(t *testing.T) {
	validator := NewEnvValidator()

	clearCredentialEnv()
	if got := validator.GetBotToken(); got != "" {
		t.Errorf("GetBotToken() with no env = %q, want empty", got)
	}

	t.Setenv("BOT_TOKEN", "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11")
	if got := validator.GetBotToken(); got != "123456:ABC-DEF1234ghIkl-zyx57W2v1u123ew11" {
		t.Errorf("GetBotToken() = %q", got)
	}
}

func TestEnvValidator_GetAPICredentials(t *testing.T) {
	validator := NewEnvValidator()

	tests := []struct {
		name     string
		apiID    string
		apiHash  string
		wantID   int
		wantHash string
		wantErr  string
	}{
		{
			name:     "valid pair",
			apiID:    "12345",
			apiHash:  "0123456789abcdef",
			wantID:   12345,
			wantHash: "0123456789abcdef",
		},
		{
			name:    "id unset",
			apiHash: "0123456789abcdef",
			wantErr: "API_ID environment variable is not set",
		},
		{
			name:    "hash unset",
			apiID:   "12345",
			wantErr: "API_HASH environment variable is not set",
		},
		{
			name:    "id is not an integer",
			apiID:   "twelve",
			apiHash: "0123456789abcdef",
			wantErr: "API_ID must be a valid integer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearCredentialEnv()
			if tt.apiID != "" {
				t.Setenv("API_ID", tt.apiID)
			}
			if tt.apiHash != "" {
				t.Setenv("API_HASH", tt.apiHash)
			}

			apiID, apiHash, err := validator.GetAPICredentials()

			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("GetAPICredentials() should have failed")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("GetAPICredentials() error = %q, want it to mention %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetAPICredentials() returned unexpected error: %v", err)
			}
			if apiID != tt.wantID || apiHash != tt.wantHash {
				t.Errorf("GetAPICredentials() = (%d, %q), want (%d, %q)", apiID, apiHash, tt.wantID, tt.wantHash)
			}
		})
	}
}
