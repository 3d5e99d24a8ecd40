package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/helpathands/shiftline/pkg/provider/llm"
	llmmock "github.com/helpathands/shiftline/pkg/provider/llm/mock"
)

const minimalYAML = `
site:
  base_url: https://hahs-vic3495.ezaango.app
  username: admin@example.com
  password: hunter2
mail:
  host: smtp.example.com
  sender: bot@example.com
  collector: rostering@example.com
llm:
  provider: openai
  api_key: sk-test
  large_model: gpt-4o
stt:
  endpoint: wss://api.deepgram.com/v1/listen
tts:
  server_url: http://localhost:5002
`

func TestLoadFromReader_MinimalWithDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Site.Service != "ezaango" {
		t.Errorf("site service = %q", cfg.Site.Service)
	}
	if cfg.Site.LoginURL != "https://hahs-vic3495.ezaango.app/login" {
		t.Errorf("login url = %q", cfg.Site.LoginURL)
	}
	if cfg.Site.LandingURL != "https://hahs-vic3495.ezaango.app/dashboard" {
		t.Errorf("landing url = %q", cfg.Site.LandingURL)
	}
	if cfg.LLM.SmallModel != "gpt-4o" {
		t.Errorf("small model = %q, want the large model", cfg.LLM.SmallModel)
	}
	if !cfg.Site.SiteHeadless() {
		t.Error("headless should default to true")
	}
}

func TestLoadFromReader_UnknownKeyRejected(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(minimalYAML + "\nsomething_else: 1\n"))
	if err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
server:
  log_level: loud
llm:
  provider: openai
`))
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	for _, want := range []string{
		"server.log_level",
		"site.base_url",
		"mail.host",
		"llm.large_model",
		"stt.endpoint",
		"tts.server_url",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s:\n%v", want, err)
		}
	}
}

func TestValidate_TodayOverride(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader(minimalYAML + "\ntoday_override: 2025-12-16\n")); err != nil {
		t.Errorf("valid today_override rejected: %v", err)
	}
	if _, err := LoadFromReader(strings.NewReader(minimalYAML + "\ntoday_override: 16-12-2025\n")); err == nil {
		t.Error("site-format today_override accepted, want YYYY-MM-DD only")
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(minimalYAML + `
server:
  tls:
    cert_file: /etc/ssl/cert.pem
`))
	if err == nil || !strings.Contains(err.Error(), "server.tls") {
		t.Errorf("half-configured TLS accepted: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestRegistry_CreateLLM(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var gotModel string
	reg.RegisterLLM("scripted", func(cfg LLMConfig, model string) (llm.Provider, error) {
		gotModel = model
		return &llmmock.Provider{Replies: []string{"ok"}}, nil
	})

	p, err := reg.CreateLLM(LLMConfig{Provider: "scripted"}, "small-1")
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if gotModel != "small-1" {
		t.Errorf("factory model = %q, want small-1", gotModel)
	}
	if reply, err := p.Complete(context.Background(), nil); err != nil || reply != "ok" {
		t.Errorf("provider reply = %q, %v", reply, err)
	}

	if _, err := reg.CreateLLM(LLMConfig{Provider: "nope"}, "m"); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("unknown provider err = %v, want ErrProviderNotRegistered", err)
	}
}
