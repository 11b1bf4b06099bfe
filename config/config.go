package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the talent matching system
type Config struct {
	General       GeneralConfig       `mapstructure:"general"`
	Server        ServerConfig        `mapstructure:"server"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Negotiation   NegotiationConfig   `mapstructure:"negotiation"`
	Orchestration OrchestrationConfig `mapstructure:"orchestration"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configuration
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai-compatible endpoints only for now
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries cannot be negative")
	}
	return nil
}

// NegotiationConfig controls the candidate/recruiter engine
type NegotiationConfig struct {
	MaxRounds        int `mapstructure:"max_rounds"`
	MaxPlanningTurns int `mapstructure:"max_planning_turns"`
}

// Normalize applies defaults for unset negotiation values.
func (n NegotiationConfig) Normalize() NegotiationConfig {
	if n.MaxRounds <= 0 {
		n.MaxRounds = 10
	}
	if n.MaxPlanningTurns <= 0 {
		n.MaxPlanningTurns = 2
	}
	return n
}

// OrchestrationConfig controls the sourcing planner/executor/observer loop
type OrchestrationConfig struct {
	MaxTurns       int `mapstructure:"max_turns"`
	MaxStepRetries int `mapstructure:"max_step_retries"`
}

// Normalize applies defaults for unset orchestration values.
func (o OrchestrationConfig) Normalize() OrchestrationConfig {
	if o.MaxTurns <= 0 {
		o.MaxTurns = 10
	}
	if o.MaxStepRetries <= 0 {
		o.MaxStepRetries = 3
	}
	return o
}

// ToolsConfig contains settings for dispatcher-registered tools
type ToolsConfig struct {
	JDFetch JDFetchConfig `mapstructure:"jd_fetch"`
	Search  SearchConfig  `mapstructure:"search"`
}

// JDFetchConfig controls the job posting fetch tool
type JDFetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// SearchConfig controls the resume search tool
type SearchConfig struct {
	MaxResults int `mapstructure:"max_results"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("llm.temperature", 1.0)
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.max_retries", 3)
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("negotiation.max_rounds", 10)
	viper.SetDefault("negotiation.max_planning_turns", 2)
	viper.SetDefault("orchestration.max_turns", 10)
	viper.SetDefault("orchestration.max_step_retries", 3)
	viper.SetDefault("tools.jd_fetch.timeout", 15*time.Second)
	viper.SetDefault("tools.jd_fetch.max_chars", 20000)
	viper.SetDefault("tools.search.max_results", 10)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("TALENTMATCH")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (TALENTMATCH_*)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Negotiation = config.Negotiation.Normalize()
	config.Orchestration = config.Orchestration.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}
