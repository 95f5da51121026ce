package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/visionarydirector/concierge"
	"github.com/visionarydirector/concierge/internal/gateway"
	"github.com/visionarydirector/concierge/internal/handlers"
	"github.com/visionarydirector/concierge/internal/models"
	"github.com/visionarydirector/concierge/internal/services"
	"github.com/visionarydirector/concierge/internal/waitlist"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != defaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, defaultPort)
	}
	if cfg.ThinkingBudget != gateway.DefaultThinkingBudget {
		t.Errorf("ThinkingBudget = %d, want %d", cfg.ThinkingBudget, gateway.DefaultThinkingBudget)
	}
	if cfg.ViewTTL != handlers.DefaultViewTTL {
		t.Errorf("ViewTTL = %v, want %v", cfg.ViewTTL, handlers.DefaultViewTTL)
	}
	if cfg.Waitlist.Store != waitlistStoreLog {
		t.Errorf("Waitlist.Store = %q, want %q", cfg.Waitlist.Store, waitlistStoreLog)
	}
	if _, ok := cfg.LLM.(*geminiConfig); !ok {
		t.Errorf("LLM = %T, want *geminiConfig", cfg.LLM)
	}
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("relies on XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want defaults", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, defaultPort)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("loadConfig() error = nil, want error for a missing explicit file")
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
thinkingBudget: 0
shareURL: https://example.com
viewTTL: 10m
waitlist:
  store: bolt
  path: /tmp/waitlist.db
  delay: 250ms
log:
  level: debug
  format: text
llm:
  provider: anthropic
  model: claude-sonnet
  maxTokens: 2048
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.ThinkingBudget != 0 {
		t.Errorf("ThinkingBudget = %d, want 0", cfg.ThinkingBudget)
	}
	if cfg.ShareURL != "https://example.com" {
		t.Errorf("ShareURL = %q", cfg.ShareURL)
	}
	if cfg.ViewTTL != 10*time.Minute {
		t.Errorf("ViewTTL = %v, want 10m", cfg.ViewTTL)
	}
	if cfg.Waitlist.Store != waitlistStoreBolt || cfg.Waitlist.Path != "/tmp/waitlist.db" {
		t.Errorf("Waitlist = %+v", cfg.Waitlist)
	}
	if cfg.Waitlist.Delay != 250*time.Millisecond {
		t.Errorf("Waitlist.Delay = %v, want 250ms", cfg.Waitlist.Delay)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}

	llm, ok := cfg.LLM.(*anthropicConfig)
	if !ok {
		t.Fatalf("LLM = %T, want *anthropicConfig", cfg.LLM)
	}
	if llm.Model != "claude-sonnet" || llm.MaxTokens != 2048 {
		t.Errorf("LLM = %+v", llm)
	}
}

func TestLoadConfigProviders(t *testing.T) {
	tests := []struct {
		name    string
		llm     string
		check   func(t *testing.T, llm llmConfig)
		wantErr bool
	}{
		{
			name: "gemini",
			llm:  "provider: gemini\n  model: gemini-2.5-flash\n  apiKey: key",
			check: func(t *testing.T, llm llmConfig) {
				c, ok := llm.(*geminiConfig)
				if !ok || c.Model != "gemini-2.5-flash" || c.APIKey != "key" {
					t.Errorf("LLM = %#v", llm)
				}
			},
		},
		{
			name: "openai",
			llm:  "provider: openai\n  model: gpt-4.1\n  baseURL: http://localhost:1234/v1\n  parameters:\n    temperature: 0.5",
			check: func(t *testing.T, llm llmConfig) {
				c, ok := llm.(*openAIConfig)
				if !ok || c.Model != "gpt-4.1" || c.BaseURL != "http://localhost:1234/v1" {
					t.Fatalf("LLM = %#v", llm)
				}
				if c.Parameters.Temperature == nil || *c.Parameters.Temperature != 0.5 {
					t.Errorf("Parameters.Temperature = %v, want 0.5", c.Parameters.Temperature)
				}
			},
		},
		{
			name: "openrouter",
			llm:  "provider: openrouter\n  model: google/gemini-2.5-pro\n  endpoint: http://localhost/api",
			check: func(t *testing.T, llm llmConfig) {
				c, ok := llm.(*openRouterConfig)
				if !ok || c.Model != "google/gemini-2.5-pro" || c.Endpoint != "http://localhost/api" {
					t.Errorf("LLM = %#v", llm)
				}
			},
		},
		{
			name: "ollama",
			llm:  "provider: ollama\n  model: llama3\n  host: http://localhost:11434",
			check: func(t *testing.T, llm llmConfig) {
				c, ok := llm.(*ollamaConfig)
				if !ok || c.Model != "llama3" || c.Host != "http://localhost:11434" {
					t.Errorf("LLM = %#v", llm)
				}
			},
		},
		{
			name:    "unknown provider",
			llm:     "provider: acme\n  model: x",
			wantErr: true,
		},
		{
			name:    "missing provider",
			llm:     "model: x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, "llm:\n  "+tt.llm+"\n"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("loadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg.LLM)
			}
		})
	}
}

func TestProviders(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")

	base := func(provider, model string) BaseLLMConfig {
		return BaseLLMConfig{Provider: provider, Model: model}
	}

	tests := []struct {
		name    string
		llm     llmConfig
		wantErr bool
	}{
		{name: "gemini without key", llm: geminiConfig{BaseLLMConfig: base("gemini", "")}},
		{name: "openai", llm: openAIConfig{BaseLLMConfig: base("openai", "gpt-4.1")}},
		{name: "openai without model", llm: openAIConfig{BaseLLMConfig: base("openai", "")}, wantErr: true},
		{name: "openrouter", llm: openRouterConfig{BaseLLMConfig: base("openrouter", "m")}},
		{name: "openrouter without model", llm: openRouterConfig{BaseLLMConfig: base("openrouter", "")}, wantErr: true},
		{name: "ollama without host", llm: ollamaConfig{BaseLLMConfig: base("ollama", "llama3")}},
		{name: "ollama invalid host", llm: ollamaConfig{BaseLLMConfig: base("ollama", "llama3"), Host: "http://[::1"}, wantErr: true},
		{name: "anthropic", llm: anthropicConfig{BaseLLMConfig: base("anthropic", "claude"), MaxTokens: 1024}},
		{name: "anthropic without max tokens", llm: anthropicConfig{BaseLLMConfig: base("anthropic", "claude")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := tt.llm.provider(discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("provider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && provider == nil {
				t.Error("provider() = nil, want a provider")
			}
		})
	}
}

func TestMissingCredentialSurfacesOnFirstMessage(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg := defaultConfig()
	gateways, err := newGatewayFactory(cfg, discardLogger())
	if err != nil {
		t.Fatalf("newGatewayFactory() error = %v, want startup to succeed", err)
	}

	gw, ok := gateways().(*gateway.Gateway)
	if !ok {
		t.Fatalf("gateway = %T, want *gateway.Gateway", gateways())
	}
	if err := gw.EnsureSession(context.Background()); !errors.Is(err, gateway.ErrConfiguration) {
		t.Errorf("EnsureSession() error = %v, want configuration error", err)
	}
}

func TestPersona(t *testing.T) {
	cfg := defaultConfig()
	persona, err := cfg.persona()
	if err != nil {
		t.Fatal(err)
	}
	if persona != concierge.DefaultPersona {
		t.Error("persona() did not return the built-in persona")
	}

	path := filepath.Join(t.TempDir(), "persona.md")
	if err := os.WriteFile(path, []byte("Be brief."), 0600); err != nil {
		t.Fatal(err)
	}
	cfg.PersonaFile = path
	if persona, err = cfg.persona(); err != nil || persona != "Be brief." {
		t.Errorf("persona() = %q, %v, want the file content", persona, err)
	}

	cfg.PersonaFile = filepath.Join(t.TempDir(), "missing.md")
	if _, err := cfg.persona(); err == nil {
		t.Error("persona() error = nil, want error for a missing file")
	}
}

func TestNewRecorder(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		check   func(t *testing.T, r waitlist.Recorder)
		wantErr bool
	}{
		{
			name:  "log",
			store: waitlistStoreLog,
			check: func(t *testing.T, r waitlist.Recorder) {
				if _, ok := r.(waitlist.LogRecorder); !ok {
					t.Errorf("recorder = %T, want waitlist.LogRecorder", r)
				}
			},
		},
		{
			name:  "bolt",
			store: waitlistStoreBolt,
			check: func(t *testing.T, r waitlist.Recorder) {
				if _, ok := r.(services.BoltDB); !ok {
					t.Errorf("recorder = %T, want services.BoltDB", r)
				}
			},
		},
		{
			name:    "unknown",
			store:   "postgres",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Waitlist.Store = tt.store
			cfg.Waitlist.Path = filepath.Join(t.TempDir(), "nested", "waitlist.db")

			r, closeRecorder, err := newRecorder(cfg, discardLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("newRecorder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer closeRecorder()
			tt.check(t, r)
		})
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []models.WaitlistEntry
}

func (m *memoryRecorder) Record(_ context.Context, entry models.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

func TestJoinWaitlist(t *testing.T) {
	rec := &memoryRecorder{}
	form := waitlist.NewForm(rec, waitlist.WithDelay(time.Millisecond), waitlist.WithLogger(discardLogger()))

	var out bytes.Buffer
	if err := joinWaitlist(context.Background(), &out, form, "Ada", "ada@example.com"); err != nil {
		t.Fatalf("joinWaitlist() error = %v", err)
	}
	if !strings.Contains(out.String(), "on the list!") {
		t.Errorf("output = %q, want confirmation", out.String())
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.entries) != 1 || rec.entries[0].Email != "ada@example.com" {
		t.Errorf("entries = %+v, want the submitted entry", rec.entries)
	}
}

func TestJoinWaitlistBlank(t *testing.T) {
	form := waitlist.NewForm(&memoryRecorder{}, waitlist.WithLogger(discardLogger()))

	if err := joinWaitlist(context.Background(), io.Discard, form, "Ada", " "); err == nil {
		t.Error("joinWaitlist() error = nil, want error for a blank email")
	}
}

func TestJoinWaitlistCanceled(t *testing.T) {
	form := waitlist.NewForm(&memoryRecorder{}, waitlist.WithDelay(time.Hour), waitlist.WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := joinWaitlist(ctx, io.Discard, form, "Ada", "ada@example.com"); err != context.Canceled {
		t.Errorf("joinWaitlist() error = %v, want %v", err, context.Canceled)
	}
}

func TestPrintEntries(t *testing.T) {
	var out bytes.Buffer
	if err := printEntries(&out, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "empty") {
		t.Errorf("output = %q, want empty notice", out.String())
	}

	out.Reset()
	err := printEntries(&out, []models.WaitlistEntry{
		{Name: "Ada", Email: "ada@example.com", SubmittedAt: time.Now()},
		{Name: "Grace", Email: "grace@example.com", SubmittedAt: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"NAME", "ada@example.com", "Grace"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}
}
