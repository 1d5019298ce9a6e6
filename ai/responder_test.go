package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/logger"
	"github.com/consultorio-rincon/voice-frontdesk/types"
)

func testOffice() config.Office {
	return config.DefaultMenu().Office
}

func TestRespondSuccess(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("wrong path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("wrong auth header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"  Claro, la ayudo con su cita.  "}}]}`))
	}))
	defer srv.Close()

	r := NewOpenAIResponder("test-key", "gpt-3.5-turbo", srv.URL, time.Second, testOffice(), logger.Nop())

	history := []types.Turn{
		{Role: types.RoleAssistant, Text: "¿En qué puedo ayudarle?"},
		{Role: types.RoleCaller, Text: "quiero una cita"},
	}
	text, err := r.Respond(context.Background(), history, "para mañana")
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if text != "Claro, la ayudo con su cita." {
		t.Errorf("reply not trimmed: %q", text)
	}

	// system + 2 history turns + the new utterance
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].Role != "system" {
		t.Errorf("first message should be the system prompt, got %q", got.Messages[0].Role)
	}
	if got.Messages[2].Role != "user" || got.Messages[2].Content != "quiero una cita" {
		t.Errorf("caller turn mapped wrong: %+v", got.Messages[2])
	}
	if got.Messages[3].Content != "para mañana" {
		t.Errorf("utterance missing: %+v", got.Messages[3])
	}
}

func TestRespondUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewOpenAIResponder("k", "", srv.URL, time.Second, testOffice(), logger.Nop())

	_, err := r.Respond(context.Background(), nil, "hola")
	var aerr *AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if aerr.Status != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", aerr.Status)
	}
}

func TestRespondTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer srv.Close()

	r := NewOpenAIResponder("k", "", srv.URL, 50*time.Millisecond, testOffice(), logger.Nop())

	start := time.Now()
	_, err := r.Respond(context.Background(), nil, "hola")
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var aerr *AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("expected AdapterError, got %v", err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Errorf("timeout not enforced, took %v", time.Since(start))
	}
}

func TestRespondEmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"   "}}]}`))
	}))
	defer srv.Close()

	r := NewOpenAIResponder("k", "", srv.URL, time.Second, testOffice(), logger.Nop())

	_, err := r.Respond(context.Background(), nil, "hola")
	var aerr *AdapterError
	if !errors.As(err, &aerr) {
		t.Fatalf("blank completion should be an AdapterError, got %v", err)
	}
}
