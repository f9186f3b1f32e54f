package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	SQLite       SQLiteConfig
	Redis        RedisConfig
	LLM          LLMConfig
	Orchestrator OrchestratorConfig
	Logging      LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int
}

type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
}

type OrchestratorConfig struct {
	AgentTypes          []string
	ConfidenceThreshold float64
	Tolerance           float64
	RiskAgentTypes      []string
	RiskKeywords        []string
	Adjacency           map[string][]string
	MaxVerifiers        int
	QueueSize           int
	Workers             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/canna-agent")

	viper.SetEnvPrefix("CANNA_AGENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)

	viper.SetDefault("sqlite.path", "./data/cannagent.db")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cacheTTL", 3600)

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.timeoutSec", 60)

	viper.SetDefault("orchestrator.agentTypes", []string{
		"compliance", "patent", "operations", "formulation", "sourcing", "marketing",
	})
	viper.SetDefault("orchestrator.confidenceThreshold", 80.0)
	viper.SetDefault("orchestrator.tolerance", 15.0)
	viper.SetDefault("orchestrator.riskAgentTypes", []string{"compliance", "patent"})
	viper.SetDefault("orchestrator.riskKeywords", []string{
		"lawsuit", "litigation", "liability", "recall", "fda", "dea",
		"class action", "warning letter", "seizure", "injunction",
	})
	viper.SetDefault("orchestrator.adjacency", map[string][]string{
		"compliance":  {"marketing", "operations"},
		"patent":      {"marketing", "formulation"},
		"formulation": {"compliance", "patent"},
		"marketing":   {"compliance", "operations"},
		"operations":  {"compliance", "sourcing"},
		"sourcing":    {"operations", "compliance"},
	})
	viper.SetDefault("orchestrator.maxVerifiers", 2)
	viper.SetDefault("orchestrator.queueSize", 256)
	viper.SetDefault("orchestrator.workers", 4)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
