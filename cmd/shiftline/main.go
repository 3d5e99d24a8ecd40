// Command shiftline runs the voice-call shift assistant: a webhook server
// that answers support-line calls, converses with rostered staff about their
// shifts, and emails cancellation requests to the rostering team.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/helpathands/shiftline/internal/app"
	"github.com/helpathands/shiftline/internal/browse"
	"github.com/helpathands/shiftline/internal/chat"
	"github.com/helpathands/shiftline/internal/config"
	"github.com/helpathands/shiftline/internal/convo"
	"github.com/helpathands/shiftline/internal/datereason"
	"github.com/helpathands/shiftline/internal/health"
	"github.com/helpathands/shiftline/internal/notify"
	"github.com/helpathands/shiftline/internal/observe"
	"github.com/helpathands/shiftline/internal/resilience"
	"github.com/helpathands/shiftline/internal/webhook"
	"github.com/helpathands/shiftline/internal/workflow"
	"github.com/helpathands/shiftline/pkg/provider/llm"
	"github.com/helpathands/shiftline/pkg/provider/llm/anyllm"
	"github.com/helpathands/shiftline/pkg/provider/llm/openai"
	"github.com/helpathands/shiftline/pkg/provider/stt"
	"github.com/helpathands/shiftline/pkg/provider/stt/wsstream"
	"github.com/helpathands/shiftline/pkg/provider/tts/coqui"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "shiftline: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "shiftline: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	slog.Info("shiftline starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"site", cfg.Site.BaseURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "shiftline"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// Chat-completion backends: the large model converses, the small one
	// reasons about dates.
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	largeBackend, err := reg.CreateLLM(cfg.LLM, cfg.LLM.LargeModel)
	if err != nil {
		slog.Error("failed to build conversation model", "err", err)
		return 1
	}
	smallBackend, err := reg.CreateLLM(cfg.LLM, cfg.LLM.SmallModel)
	if err != nil {
		slog.Error("failed to build date-reasoning model", "err", err)
		return 1
	}
	largeLLM := resilience.GuardLLM("conversation", largeBackend)
	smallLLM := resilience.GuardLLM("datereason", smallBackend)

	wf, err := buildWorkflow(cfg, smallLLM)
	if err != nil {
		slog.Error("failed to build shift workflow", "err", err)
		return 1
	}

	manager := app.NewManager(sessionBuilder(cfg, largeLLM, wf, metrics),
		app.WithMetrics(metrics))

	// HTTP surface: telephony webhooks, operator status, probes, metrics.
	mux := http.NewServeMux()
	webhook.New(manager, logger).Register(mux)
	health.New(llmChecker(smallLLM)).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server ready, press Ctrl+C to shut down")
		if cfg.Server.TLS != nil {
			serveErr <- server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Error("session shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// registerBuiltinProviders wires the chat-completion backends that ship with
// shiftline. "openai" talks to the hosted API through the official SDK; the
// remaining names go through any-llm-go, which covers local Ollama servers
// and the other hosted APIs with one client.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(cfg config.LLMConfig, model string) (llm.Provider, error) {
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(cfg.APIKey, model, opts...)
	})

	reg.RegisterLLM("ollama", func(cfg config.LLMConfig, model string) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		return anyllm.NewOllama(model, opts...)
	})

	for _, name := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(name, func(cfg config.LLMConfig, model string) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if cfg.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
			}
			if cfg.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
			}
			return anyllm.New(name, model, opts...)
		})
	}
}

// buildWorkflow assembles the rostering-site pipeline shared by every call.
func buildWorkflow(cfg *config.Config, smallLLM llm.Provider) (*workflow.Workflow, error) {
	reasonOpts := []datereason.Option{}
	if cfg.TodayOverride != "" {
		today, err := time.Parse("2006-01-02", cfg.TodayOverride)
		if err != nil {
			return nil, fmt.Errorf("parse today_override: %w", err)
		}
		slog.Warn("date reasoning pinned by today_override", "today", cfg.TodayOverride)
		reasonOpts = append(reasonOpts, datereason.WithToday(today))
	}
	reasoner := datereason.New(smallLLM, reasonOpts...)

	mailer, err := notify.NewSMTP(notify.SMTPConfig{
		Host:      cfg.Mail.Host,
		Port:      cfg.Mail.Port,
		Sender:    cfg.Mail.Sender,
		Password:  cfg.Mail.Password,
		Collector: cfg.Mail.Collector,
	})
	if err != nil {
		return nil, err
	}

	factory := func(ctx context.Context) (browse.Session, error) {
		return browse.NewDriver(ctx, browse.WithHeadless(cfg.Site.SiteHeadless()))
	}

	wfOpts := []workflow.Option{}
	if cfg.CookieDir != "" {
		store, err := browse.NewCookieStore(cfg.CookieDir)
		if err != nil {
			return nil, err
		}
		wfOpts = append(wfOpts, workflow.WithCookieStore(store))
	}

	return workflow.New(workflow.Config{
		BaseURL: cfg.Site.BaseURL,
		Site: browse.SiteConfig{
			Service:             cfg.Site.Service,
			LoginURL:            cfg.Site.LoginURL,
			LandingURL:          cfg.Site.LandingURL,
			UsernameSelector:    cfg.Site.UsernameSelector,
			PasswordSelector:    cfg.Site.PasswordSelector,
			SubmitSelector:      cfg.Site.SubmitSelector,
			TwoFASelector:       cfg.Site.TwoFASelector,
			TwoFASubmitSelector: cfg.Site.TwoFASubmitSelector,
		},
		Credentials: browse.Credentials{
			Username:   cfg.Site.Username,
			Password:   cfg.Site.Password,
			TOTPSecret: cfg.Site.TOTPSecret,
		},
		EmailSubject: cfg.Mail.Subject,
	}, factory, reasoner, mailer, wfOpts...)
}

// sessionBuilder returns the per-call factory the session manager uses. Each
// call gets its own transcriber, synthesizer, chat history, and conversation
// core; the workflow is shared.
func sessionBuilder(cfg *config.Config, largeLLM llm.Provider, wf *workflow.Workflow, metrics *observe.Metrics) app.Builder {
	return func(callID, callerPhone string) (*app.Session, error) {
		var sttOpts []wsstream.Option
		if cfg.STT.APIKey != "" {
			sttOpts = append(sttOpts, wsstream.WithAPIKey(cfg.STT.APIKey))
		}
		if cfg.STT.Model != "" {
			sttOpts = append(sttOpts, wsstream.WithModel(cfg.STT.Model))
		}
		if cfg.STT.SampleRate > 0 {
			sttOpts = append(sttOpts, wsstream.WithSampleRate(cfg.STT.SampleRate))
		}
		transcriber, err := wsstream.New(cfg.STT.Endpoint, stt.Config{
			SilenceTimeout: cfg.STT.SilenceTimeout,
			MaxPhrase:      cfg.STT.MaxPhrase,
			Language:       cfg.STT.Language,
		}, sttOpts...)
		if err != nil {
			return nil, err
		}

		var ttsOpts []coqui.Option
		if cfg.TTS.Language != "" {
			ttsOpts = append(ttsOpts, coqui.WithLanguage(cfg.TTS.Language))
		}
		if cfg.TTS.Speaker != "" {
			ttsOpts = append(ttsOpts, coqui.WithSpeaker(cfg.TTS.Speaker))
		}
		synth, err := coqui.New(cfg.TTS.ServerURL, cfg.TTS.Device, ttsOpts...)
		if err != nil {
			_ = transcriber.Close()
			return nil, err
		}

		core := convo.New(chat.New(largeLLM, convo.SystemPrompt), wf, callerPhone)
		return app.NewSession(app.SessionConfig{
			CallID:      callID,
			CallerPhone: callerPhone,
			Transcriber: transcriber,
			Synth:       synth,
			Core:        core,
			Metrics:     metrics,
		})
	}
}

// llmChecker probes the date-reasoning model with a one-token completion.
func llmChecker(p llm.Provider) health.Checker {
	return health.Checker{
		Name: "llm",
		Check: func(ctx context.Context) error {
			_, err := p.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: "ping"}})
			return err
		},
	}
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
