// Package wsstream provides an stt.Transcriber backed by a streaming
// transcription server speaking the Deepgram-style WebSocket protocol
// (binary audio frames in, JSON "Results" events out). It works against
// api.deepgram.com as well as self-hosted compatible servers.
//
// The server's final segments are aggregated into utterances locally: a
// phrase completes after a configurable gap of silence, or when it reaches
// the hard duration cap.
package wsstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/helpathands/shiftline/pkg/provider/stt"
)

const (
	defaultModel      = "nova-3"
	defaultSampleRate = 16000
)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithAPIKey sets the token sent in the Authorization header.
func WithAPIKey(key string) Option {
	return func(t *Transcriber) {
		t.apiKey = key
	}
}

// WithModel sets the server-side model (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(t *Transcriber) {
		t.model = model
	}
}

// WithSampleRate sets the audio sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) {
		t.sampleRate = rate
	}
}

// Transcriber implements stt.Transcriber over a streaming WebSocket server.
type Transcriber struct {
	endpoint   string
	apiKey     string
	model      string
	sampleRate int
	cfg        stt.Config

	conn  *websocket.Conn
	audio chan []byte
	done  chan error

	mu      sync.Mutex
	paused  bool
	pending phrase
	timer   *time.Timer

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// phrase accumulates final segments until the silence timeout or the
// duration cap flushes it as one utterance.
type phrase struct {
	text       strings.Builder
	confSum    float64
	segments   int
	start      time.Duration
	end        time.Duration
	hasContent bool
}

// New creates a Transcriber that will connect to the given WebSocket
// endpoint (e.g., "wss://api.deepgram.com/v1/listen"). Zero values in cfg
// select the stt package defaults.
func New(endpoint string, cfg stt.Config, opts ...Option) (*Transcriber, error) {
	if endpoint == "" {
		return nil, errors.New("wsstream: endpoint must not be empty")
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = stt.DefaultSilenceTimeout
	}
	if cfg.MaxPhrase <= 0 {
		cfg.MaxPhrase = stt.DefaultMaxPhrase
	}

	t := &Transcriber{
		endpoint:   endpoint,
		model:      defaultModel,
		sampleRate: defaultSampleRate,
		cfg:        cfg,
		audio:      make(chan []byte, 256),
		done:       make(chan error, 1),
		closed:     make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

// Start dials the server and begins delivering utterances to onUtterance.
// It returns once the stream is established.
func (t *Transcriber) Start(ctx context.Context, onUtterance func(stt.Utterance)) error {
	if onUtterance == nil {
		return errors.New("wsstream: onUtterance must not be nil")
	}

	wsURL, err := t.buildURL()
	if err != nil {
		return fmt.Errorf("wsstream: build URL: %w", err)
	}

	headers := http.Header{}
	if t.apiKey != "" {
		headers.Set("Authorization", "Token "+t.apiKey)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("wsstream: dial: %w", err)
	}
	t.conn = conn

	t.wg.Add(2)
	go t.readLoop(ctx, onUtterance)
	go t.writeLoop(ctx)
	return nil
}

// SendAudio queues a PCM audio chunk for delivery to the server.
func (t *Transcriber) SendAudio(chunk []byte) error {
	select {
	case <-t.closed:
		return errors.New("wsstream: transcriber is closed")
	default:
	}
	select {
	case t.audio <- chunk:
		return nil
	case <-t.closed:
		return errors.New("wsstream: transcriber is closed")
	}
}

// Done implements stt.Transcriber.
func (t *Transcriber) Done() <-chan error { return t.done }

// Pause suppresses utterance delivery. The stream keeps running; segments
// received while paused are discarded.
func (t *Transcriber) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = true
	t.pending = phrase{}
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Resume re-enables utterance delivery.
func (t *Transcriber) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = false
}

// Close terminates the stream. Safe to call more than once.
func (t *Transcriber) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.conn != nil {
			_ = t.conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"CloseStream"}`))
		}
		t.mu.Lock()
		if t.timer != nil {
			t.timer.Stop()
		}
		t.mu.Unlock()
		t.wg.Wait()
		if t.conn != nil {
			t.conn.Close(websocket.StatusNormalClosure, "transcriber closed")
		}
		select {
		case t.done <- nil:
		default:
		}
		close(t.done)
	})
	return nil
}

func (t *Transcriber) buildURL() (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", t.model)
	if t.cfg.Language != "" {
		q.Set("language", t.cfg.Language)
	}
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("sample_rate", strconv.Itoa(t.sampleRate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serverResponse is the JSON structure of a Results event.
type serverResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Start   float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// writeLoop reads from the audio channel and sends binary messages.
func (t *Transcriber) writeLoop(ctx context.Context) {
	defer t.wg.Done()
	for {
		select {
		case chunk := <-t.audio:
			if err := t.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-t.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop receives Results events and folds final segments into phrases.
func (t *Transcriber) readLoop(ctx context.Context, onUtterance func(stt.Utterance)) {
	defer t.wg.Done()

	for {
		_, msg, err := t.conn.Read(ctx)
		if err != nil {
			t.flush(onUtterance)
			select {
			case <-t.closed:
			case <-ctx.Done():
			default:
				select {
				case t.done <- fmt.Errorf("wsstream: read: %w", err):
				default:
				}
			}
			return
		}

		var resp serverResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Type != "Results" || !resp.IsFinal {
			continue
		}
		if len(resp.Channel.Alternatives) == 0 {
			continue
		}
		alt := resp.Channel.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}

		t.appendSegment(text, alt.Confidence, resp.Start, resp.Duration, onUtterance)
	}
}

// appendSegment adds one final segment to the pending phrase and arms the
// silence timer. The phrase flushes when the timer fires or when it reaches
// the duration cap.
func (t *Transcriber) appendSegment(text string, conf, start, dur float64, onUtterance func(stt.Utterance)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paused {
		return
	}

	segStart := time.Duration(start * float64(time.Second))
	segEnd := segStart + time.Duration(dur*float64(time.Second))

	if !t.pending.hasContent {
		t.pending.start = segStart
	} else {
		t.pending.text.WriteByte(' ')
	}
	t.pending.text.WriteString(text)
	t.pending.confSum += conf
	t.pending.segments++
	t.pending.end = segEnd
	t.pending.hasContent = true

	if t.pending.end-t.pending.start >= t.cfg.MaxPhrase {
		u, ok := t.takePendingLocked()
		t.mu.Unlock()
		if ok {
			onUtterance(u)
		}
		t.mu.Lock()
		return
	}

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.cfg.SilenceTimeout, func() {
		t.mu.Lock()
		u, ok := t.takePendingLocked()
		t.mu.Unlock()
		if ok {
			onUtterance(u)
		}
	})
}

// takePendingLocked drains the pending phrase as one utterance. The second
// return is false when there is nothing to deliver or delivery is paused.
// onUtterance must be invoked without holding mu: handlers call Pause from
// inside the callback.
func (t *Transcriber) takePendingLocked() (stt.Utterance, bool) {
	defer func() { t.pending = phrase{} }()
	if !t.pending.hasContent || t.paused {
		return stt.Utterance{}, false
	}
	u := stt.Utterance{
		Text:     strings.TrimSpace(t.pending.text.String()),
		Start:    t.pending.start,
		Duration: t.pending.end - t.pending.start,
	}
	if t.pending.segments > 0 {
		u.Confidence = t.pending.confSum / float64(t.pending.segments)
	}
	return u, u.Text != ""
}

// flush delivers any pending phrase on stream end.
func (t *Transcriber) flush(onUtterance func(stt.Utterance)) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	u, ok := t.takePendingLocked()
	t.mu.Unlock()
	if ok {
		onUtterance(u)
	}
}

var _ stt.Transcriber = (*Transcriber)(nil)
