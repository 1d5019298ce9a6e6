package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the process configuration loaded once at startup. Credentials
// are pulled from the environment so they never live in the JSON file.
type Config struct {
	ListenAddress string `json:"listen_address"`
	CallbackURL   string `json:"callback_url"`

	OfficeName string `json:"office_name"`
	DoctorName string `json:"doctor_name"`

	Voice    string `json:"voice"`
	Language string `json:"language"`

	GatherTimeoutSeconds int `json:"gather_timeout_seconds"`
	AITimeoutSeconds     int `json:"ai_timeout_seconds"`
	StoreTTLMinutes      int `json:"store_ttl_minutes"`

	AIModel   string `json:"ai_model"`
	AIBaseURL string `json:"ai_base_url"`

	TelnyxBaseURL string `json:"telnyx_base_url"`

	LogLevel  string `json:"log_level"`
	LogPretty bool   `json:"log_pretty"`

	// Filled from the environment at load time.
	OpenAIAPIKey string `json:"-"`
	TelnyxAPIKey string `json:"-"`
}

// LoadConfig reads the main configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "./configs/config.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error decoding config JSON: %w", err)
	}

	if config.ListenAddress == "" {
		config.ListenAddress = ":8080"
	}
	if config.Voice == "" {
		config.Voice = "alice"
	}
	if config.Language == "" {
		config.Language = "es-MX"
	}
	if config.GatherTimeoutSeconds <= 0 {
		config.GatherTimeoutSeconds = 10
	}
	if config.AITimeoutSeconds <= 0 {
		config.AITimeoutSeconds = 5
	}
	if config.StoreTTLMinutes <= 0 {
		config.StoreTTLMinutes = 30
	}
	if config.AIModel == "" {
		config.AIModel = "gpt-3.5-turbo"
	}
	if config.AIBaseURL == "" {
		config.AIBaseURL = "https://api.openai.com"
	}
	if config.TelnyxBaseURL == "" {
		config.TelnyxBaseURL = "https://api.telnyx.com"
	}

	config.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	config.TelnyxAPIKey = os.Getenv("TELNYX_API_KEY")

	return &config, nil
}
