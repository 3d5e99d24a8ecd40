package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/helpathands/shiftline/internal/app"
	"github.com/helpathands/shiftline/internal/chat"
	"github.com/helpathands/shiftline/internal/convo"
	"github.com/helpathands/shiftline/internal/workflow"
	llmmock "github.com/helpathands/shiftline/pkg/provider/llm/mock"
	sttmock "github.com/helpathands/shiftline/pkg/provider/stt/mock"
	ttsmock "github.com/helpathands/shiftline/pkg/provider/tts/mock"
)

type noShifts struct{}

func (noShifts) Lookup(context.Context, string, string) (*workflow.Result, error) {
	return nil, errors.New("no roster in this test")
}

func (noShifts) SubmitCancellation(context.Context, workflow.Staff, workflow.Shift, string) error {
	return errors.New("no roster in this test")
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	build := func(callID, callerPhone string) (*app.Session, error) {
		core := convo.New(
			chat.New(&llmmock.Provider{Replies: []string{"You: hello."}, RepeatLast: true}, convo.SystemPrompt),
			noShifts{}, callerPhone)
		return app.NewSession(app.SessionConfig{
			CallID:      callID,
			CallerPhone: callerPhone,
			Transcriber: sttmock.NewTranscriber(),
			Synth:       &ttsmock.Synthesizer{},
			Core:        core,
		})
	}
	manager := app.NewManager(build)
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	mux := http.NewServeMux()
	New(manager, nil).Register(mux)
	return mux
}

func post(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestCallStarted_HappyPath(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	rec := post(mux, "/webhook/call-started", `{"call_id":"abc123","from":"+61431256441"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "success" || resp["call_id"] != "abc123" || resp["caller_phone"] != "+61431256441" {
		t.Errorf("response = %v", resp)
	}
}

func TestCallStarted_EchoesEmptyCallerPhone(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	rec := post(mux, "/webhook/call-started", `{"call_id":"anon1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	phone, ok := resp["caller_phone"]
	if !ok || phone != "" {
		t.Errorf("caller_phone = %q (present %v), want empty string", phone, ok)
	}
}

func TestCallStarted_MissingCallID(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	for name, body := range map[string]string{
		"empty object": `{}`,
		"blank id":     `{"call_id":""}`,
		"not json":     `{{{`,
	} {
		if rec := post(mux, "/webhook/call-started", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestCallStarted_DuplicateIsConflict(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	if rec := post(mux, "/webhook/call-started", `{"call_id":"dup"}`); rec.Code != http.StatusOK {
		t.Fatalf("first start = %d", rec.Code)
	}
	if rec := post(mux, "/webhook/call-started", `{"call_id":"dup"}`); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate start = %d, want 409", rec.Code)
	}
}

func TestCallEnded_UnknownIsNotFound(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	if rec := post(mux, "/webhook/call-ended", `{"call_id":"ghost"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCallLifecycle_StartEndStatus(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	if rec := post(mux, "/webhook/call-started", `{"call_id":"life1","from":"0431256441"}`); rec.Code != http.StatusOK {
		t.Fatalf("start = %d", rec.Code)
	}

	rec := get(mux, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var st statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ActiveSessions != 1 || len(st.Sessions) != 1 {
		t.Fatalf("status = %+v, want one session", st)
	}
	if st.Sessions[0].CallID != "life1" {
		t.Errorf("call id = %q", st.Sessions[0].CallID)
	}
	if st.Sessions[0].StartedAt.IsZero() {
		t.Error("started_at is zero")
	}

	rec = post(mux, "/webhook/call-ended", `{"call_id":"life1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("end = %d", rec.Code)
	}
	var ended map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&ended); err != nil {
		t.Fatalf("decode end: %v", err)
	}
	if ended["status"] != "success" {
		t.Errorf("end response = %v, want status success", ended)
	}

	rec = get(mux, "/status")
	st = statusResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ActiveSessions != 0 {
		t.Errorf("active after end = %d, want 0", st.ActiveSessions)
	}

	// Ending the same call again is a 404, not idempotent success.
	if rec := post(mux, "/webhook/call-ended", `{"call_id":"life1"}`); rec.Code != http.StatusNotFound {
		t.Errorf("second end = %d, want 404", rec.Code)
	}
}

func TestSessionIsolation_TwoCalls(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	for _, id := range []string{"iso-a", "iso-b"} {
		if rec := post(mux, "/webhook/call-started", `{"call_id":"`+id+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("start %s = %d", id, rec.Code)
		}
	}

	// Ending one call leaves the other untouched.
	if rec := post(mux, "/webhook/call-ended", `{"call_id":"iso-a"}`); rec.Code != http.StatusOK {
		t.Fatalf("end iso-a = %d", rec.Code)
	}

	var st statusResponse
	rec := get(mux, "/status")
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ActiveSessions != 1 || st.Sessions[0].CallID != "iso-b" {
		t.Fatalf("status = %+v, want only iso-b", st)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t)
	if rec := get(mux, "/webhook/call-started"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET call-started = %d, want 405", rec.Code)
	}
	if rec := post(mux, "/status", `{}`); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}
