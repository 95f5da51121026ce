package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/visionarydirector/concierge"
	"github.com/visionarydirector/concierge/internal/gateway"
	"github.com/visionarydirector/concierge/internal/handlers"
	"github.com/visionarydirector/concierge/internal/logging"
	"github.com/visionarydirector/concierge/internal/services"
	"github.com/visionarydirector/concierge/internal/waitlist"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	provider(logger *slog.Logger) (gateway.Provider, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port string `yaml:"port"`
	// PersonaFile replaces the built-in concierge persona with the content of the file.
	PersonaFile    string         `yaml:"personaFile"`
	ThinkingBudget int            `yaml:"thinkingBudget"`
	ShareURL       string         `yaml:"shareURL"`
	ViewTTL        time.Duration  `yaml:"viewTTL"`
	Waitlist       waitlistConfig `yaml:"waitlist"`
	Log            logging.Config `yaml:"log"`
	LLM            llmConfig      `yaml:"-"`
}

type waitlistConfig struct {
	// Store is either "log", which only logs submissions, or "bolt".
	Store string        `yaml:"store"`
	Path  string        `yaml:"path"`
	Delay time.Duration `yaml:"delay"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string                 `yaml:"apiKey"`
	BaseURL       string                 `yaml:"baseURL"`
	Parameters    services.LLMParameters `yaml:"parameters"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	Endpoint      string `yaml:"endpoint"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort  = "8080"
	appDirName   = "concierge"
	cfgFileName  = "config.yaml"
	waitlistFile = "waitlist.db"

	waitlistStoreLog  = "log"
	waitlistStoreBolt = "bolt"
)

func defaultConfig() config {
	return config{
		Port:           defaultPort,
		ThinkingBudget: gateway.DefaultThinkingBudget,
		ViewTTL:        handlers.DefaultViewTTL,
		Waitlist: waitlistConfig{
			Store: waitlistStoreLog,
			Delay: waitlist.DefaultDelay,
		},
		LLM: &geminiConfig{BaseLLMConfig: BaseLLMConfig{Provider: "gemini"}},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	type plain config
	rawConfig := struct {
		plain `yaml:",inline"`
		LLM   map[string]any `yaml:"llm"`
	}{plain: plain(*c)}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	llm := c.LLM
	*c = config(rawConfig.plain)
	c.LLM = llm

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

// configDir returns the directory holding the config file and the waitlist store.
func configDir() (string, error) {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, appDirName), nil
}

// loadConfig reads the config file at path. An empty path reads the default location, where a missing
// file is not an error: the concierge then runs on defaults and credentials from the environment.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return config{}, err
		}
		path = filepath.Join(dir, cfgFileName)
	}

	cfgFile, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

// persona returns the system instruction given to every gateway.
func (c config) persona() (string, error) {
	if c.PersonaFile == "" {
		return concierge.DefaultPersona, nil
	}
	b, err := os.ReadFile(c.PersonaFile)
	if err != nil {
		return "", fmt.Errorf("error reading persona file: %w", err)
	}
	return string(b), nil
}

// waitlistPath returns the bbolt file of the waitlist ledger.
func (c config) waitlistPath() (string, error) {
	if c.Waitlist.Path != "" {
		return c.Waitlist.Path, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, waitlistFile), nil
}

// The provider constructors below never fail on a missing credential: the gateway reports it as a
// configuration error on the first message, so the landing page itself still renders.

func (g geminiConfig) provider(logger *slog.Logger) (gateway.Provider, error) {
	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	return services.NewGemini(apiKey, g.Model, logger), nil
}

func (o openAIConfig) provider(logger *slog.Logger) (gateway.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, o.Parameters, logger), nil
}

func (o openRouterConfig) provider(logger *slog.Logger) (gateway.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	return services.NewOpenRouter(apiKey, o.Endpoint, o.Model, logger), nil
}

func (o ollamaConfig) provider(logger *slog.Logger) (gateway.Provider, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	ollama, err := services.NewOllama(host, o.Model, logger)
	if err != nil {
		return nil, err
	}
	return ollama, nil
}

func (a anthropicConfig) provider(logger *slog.Logger) (gateway.Provider, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Endpoint, a.Model, a.MaxTokens, logger), nil
}
