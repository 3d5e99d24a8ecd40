// Package config provides the configuration schema, loader, and LLM provider
// registry for the shiftline server.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration, typically loaded from a YAML file via
// [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Site   SiteConfig   `yaml:"site"`
	Mail   MailConfig   `yaml:"mail"`
	LLM    LLMConfig    `yaml:"llm"`
	STT    STTConfig    `yaml:"stt"`
	TTS    TTSConfig    `yaml:"tts"`

	// CookieDir holds cached rostering-site sessions. Empty disables the
	// cache and every lookup logs in from scratch.
	CookieDir string `yaml:"cookie_dir"`

	// TodayOverride pins "today" for date reasoning, as YYYY-MM-DD.
	// Intended for rehearsals and tests; leave empty in production.
	TodayOverride string `yaml:"today_override"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the webhook server listens on.
	// Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`

	// TLS enables HTTPS when set.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM paths for serving HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SiteConfig describes the rostering site and the credentials for it.
type SiteConfig struct {
	// BaseURL is the site root, e.g. "https://hahs-vic3495.ezaango.app".
	BaseURL string `yaml:"base_url"`

	// Service names the site in cookie jar files. Default "ezaango".
	Service string `yaml:"service"`

	// LoginURL and LandingURL default to BaseURL + "/login" and
	// BaseURL + "/dashboard".
	LoginURL   string `yaml:"login_url"`
	LandingURL string `yaml:"landing_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TOTPSecret enables the two-factor step when non-empty.
	TOTPSecret string `yaml:"totp_secret"`

	// Selector overrides for non-standard site skins. Zero values use the
	// defaults built into the browse and workflow packages.
	UsernameSelector    string `yaml:"username_selector"`
	PasswordSelector    string `yaml:"password_selector"`
	SubmitSelector      string `yaml:"submit_selector"`
	TwoFASelector       string `yaml:"twofa_selector"`
	TwoFASubmitSelector string `yaml:"twofa_submit_selector"`

	// Headless runs the browser without a window. Default true; set false
	// only when debugging the site flow interactively.
	Headless *bool `yaml:"headless"`
}

// MailConfig configures the SMTP relay that carries cancellation requests.
type MailConfig struct {
	Host string `yaml:"host"`

	// Port defaults to 587 (STARTTLS). 465 selects implicit TLS.
	Port int `yaml:"port"`

	// Sender is the From address and the SMTP auth identity.
	Sender   string `yaml:"sender"`
	Password string `yaml:"password"`

	// Collector receives the cancellation request emails.
	Collector string `yaml:"collector"`

	// Subject overrides the default cancellation subject line.
	Subject string `yaml:"subject"`
}

// LLMConfig selects and configures the chat-completion backend. Provider
// names are resolved through the [Registry].
type LLMConfig struct {
	// Provider is a registered backend name, e.g. "openai" or "ollama".
	Provider string `yaml:"provider"`

	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`

	// LargeModel drives the conversation; SmallModel handles date
	// reasoning. SmallModel defaults to LargeModel.
	LargeModel string `yaml:"large_model"`
	SmallModel string `yaml:"small_model"`
}

// STTConfig configures the streaming transcription backend.
type STTConfig struct {
	// Endpoint is the websocket URL of the transcription service.
	Endpoint string `yaml:"endpoint"`

	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`

	// SilenceTimeout closes a phrase after this much quiet. Default 5s.
	SilenceTimeout time.Duration `yaml:"silence_timeout"`

	// MaxPhrase force-flushes a phrase after this long. Default 15s.
	MaxPhrase time.Duration `yaml:"max_phrase"`
}

// TTSConfig configures speech synthesis and playback.
type TTSConfig struct {
	// ServerURL is the Coqui-compatible synthesis endpoint.
	ServerURL string `yaml:"server_url"`

	// Device is the ALSA output device; empty uses the system default.
	Device   string `yaml:"device"`
	Language string `yaml:"language"`
	Speaker  string `yaml:"speaker"`
}

// SiteHeadless resolves the Headless pointer, defaulting to true.
func (s SiteConfig) SiteHeadless() bool {
	return s.Headless == nil || *s.Headless
}
