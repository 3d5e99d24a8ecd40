package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown YAML keys are rejected so typos surface at
// boot instead of as silently ignored settings.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Site.Service == "" {
		cfg.Site.Service = "ezaango"
	}
	if cfg.Site.BaseURL != "" {
		if cfg.Site.LoginURL == "" {
			cfg.Site.LoginURL = cfg.Site.BaseURL + "/login"
		}
		if cfg.Site.LandingURL == "" {
			cfg.Site.LandingURL = cfg.Site.BaseURL + "/dashboard"
		}
	}
	if cfg.LLM.SmallModel == "" {
		cfg.LLM.SmallModel = cfg.LLM.LargeModel
	}
}

// Validate checks that cfg is coherent, returning a joined error listing
// every failure found.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !cfg.Server.LogLevel.IsValid() {
		fail("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel)
	}
	if cfg.Server.TLS != nil && (cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "") {
		fail("server.tls requires both cert_file and key_file")
	}

	if cfg.Site.BaseURL == "" {
		fail("site.base_url is required")
	}
	if cfg.Site.Username == "" || cfg.Site.Password == "" {
		fail("site.username and site.password are required")
	}

	if cfg.Mail.Host == "" {
		fail("mail.host is required")
	}
	if cfg.Mail.Sender == "" {
		fail("mail.sender is required")
	}
	if cfg.Mail.Collector == "" {
		fail("mail.collector is required")
	}
	if cfg.Mail.Port < 0 || cfg.Mail.Port > 65535 {
		fail("mail.port %d is out of range", cfg.Mail.Port)
	}

	if cfg.LLM.Provider == "" {
		fail("llm.provider is required")
	}
	if cfg.LLM.LargeModel == "" {
		fail("llm.large_model is required")
	}

	if cfg.STT.Endpoint == "" {
		fail("stt.endpoint is required")
	}
	if cfg.STT.SilenceTimeout < 0 || cfg.STT.MaxPhrase < 0 {
		fail("stt timeouts must not be negative")
	}

	if cfg.TTS.ServerURL == "" {
		fail("tts.server_url is required")
	}

	if cfg.TodayOverride != "" {
		if _, err := time.Parse("2006-01-02", cfg.TodayOverride); err != nil {
			fail("today_override %q is not a YYYY-MM-DD date", cfg.TodayOverride)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
