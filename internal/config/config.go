package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Docs    DocsConfig
	History HistoryConfig
	Store   StoreConfig
	Log     LogConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	AnalysisModel string `mapstructure:"analysis_model"`
}

// DocsConfig holds the document service configuration. The per-document
// API key never lives here; it arrives with each request.
type DocsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// HistoryConfig controls how much conversation history is injected
// into agent prompts.
type HistoryConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxMessages   int  `mapstructure:"max_messages"`
	IncludeSystem bool `mapstructure:"include_system"`
}

// StoreConfig holds the request-log store configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml and GRIDCHAT_* env vars
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("gridchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("llm.model", "mistral-small")
	viper.SetDefault("llm.analysis_model", "mistral-small")
	viper.SetDefault("docs.base_url", "https://docs.getgrist.com/api")
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.max_messages", 5)
	viper.SetDefault("history.include_system", false)
	viper.SetDefault("store.path", "requests.db")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus env vars cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
