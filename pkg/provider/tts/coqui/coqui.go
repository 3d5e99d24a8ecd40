// Package coqui provides a tts.Synthesizer backed by a locally-running Coqui
// TTS server (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET
// /api/tts with URL query parameters; the WAV response is piped to the ALSA
// playback device named at construction time.
//
// When the named device cannot be opened, playback falls back to the
// platform default device with a logged warning, so a misconfigured device
// name degrades audio routing rather than silencing the call.
//
// Typical usage:
//
//	s, err := coqui.New("http://localhost:5002", "plughw:CARD=Device,DEV=0",
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	err = s.Speak(ctx, "One moment while I look that up.")
package coqui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/helpathands/shiftline/pkg/provider/tts"
)

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Synthesizer)(nil)

const (
	defaultLanguage = "en"
	defaultTimeout  = 30 * time.Second
	apiTTSEndpoint  = "/api/tts"
)

// Option is a functional option for configuring a Synthesizer.
type Option func(*Synthesizer)

// WithLanguage sets the language code sent to the TTS server (e.g., "en").
// Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Synthesizer) {
		s.language = lang
	}
}

// WithSpeaker sets the speaker ID for multi-speaker models. Single-speaker
// models need none.
func WithSpeaker(id string) Option {
	return func(s *Synthesizer) {
		s.speakerID = id
	}
}

// WithTimeout sets the per-request HTTP timeout for calls to the TTS server.
// Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		s.httpClient.Timeout = d
	}
}

// WithLogger sets the logger used for playback fallback warnings.
// Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) {
		s.log = log
	}
}

// WithPlayer overrides the playback function. The function receives the
// complete WAV payload and must block until playback finishes. Intended for
// tests and for platforms without aplay.
func WithPlayer(play func(ctx context.Context, wav []byte) error) Option {
	return func(s *Synthesizer) {
		s.play = play
	}
}

// Synthesizer implements tts.Synthesizer backed by a Coqui TTS server and an
// ALSA playback device. It is safe for concurrent use, though callers
// normally serialize Speak per call leg.
type Synthesizer struct {
	serverURL  string
	device     string
	language   string
	speakerID  string
	httpClient *http.Client
	log        *slog.Logger

	play func(ctx context.Context, wav []byte) error
}

// New creates a Synthesizer targeting the TTS server at serverURL (e.g.,
// "http://localhost:5002"). device is the ALSA device name to play on; empty
// selects the platform default.
func New(serverURL, device string, opts ...Option) (*Synthesizer, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	s := &Synthesizer{
		serverURL: strings.TrimRight(serverURL, "/"),
		device:    device,
		language:  defaultLanguage,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.play == nil {
		s.play = s.playALSA
	}
	return s, nil
}

// Speak synthesizes text on the server and plays the result to completion.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	wav, err := s.synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("coqui: synthesize: %w", err)
	}
	if err := s.play(ctx, wav); err != nil {
		return fmt.Errorf("coqui: playback: %w", err)
	}
	return nil
}

// Close implements tts.Synthesizer. The HTTP client holds no persistent
// resources, so Close only exists to satisfy the interface.
func (s *Synthesizer) Close() error { return nil }

// synthesize issues GET /api/tts and returns the WAV response body.
func (s *Synthesizer) synthesize(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("text", text)
	if s.speakerID != "" {
		q.Set("speaker_id", s.speakerID)
	}
	if s.language != "" {
		q.Set("language_id", s.language)
	}

	reqURL := s.serverURL + apiTTSEndpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

// playALSA pipes the WAV payload to aplay. It tries the configured device
// first and falls back to the default device when the named one fails.
func (s *Synthesizer) playALSA(ctx context.Context, wav []byte) error {
	if s.device != "" {
		err := runAplay(ctx, s.device, wav)
		if err == nil || ctx.Err() != nil {
			return err
		}
		s.log.Warn("playback on configured device failed, falling back to default",
			"device", s.device, "error", err)
	}
	return runAplay(ctx, "", wav)
}

func runAplay(ctx context.Context, device string, wav []byte) error {
	args := []string{"-q"}
	if device != "" {
		args = append(args, "-D", device)
	}
	cmd := exec.CommandContext(ctx, "aplay", args...)
	cmd.Stdin = bytes.NewReader(wav)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("aplay: %s: %w", msg, err)
		}
		return fmt.Errorf("aplay: %w", err)
	}
	return nil
}
