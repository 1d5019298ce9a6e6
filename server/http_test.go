package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/consultorio-rincon/voice-frontdesk/calendar"
	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/dialogue"
	"github.com/consultorio-rincon/voice-frontdesk/handlers"
	"github.com/consultorio-rincon/voice-frontdesk/logger"
	"github.com/consultorio-rincon/voice-frontdesk/session"
	"github.com/consultorio-rincon/voice-frontdesk/texml"
)

func newTestServer(t *testing.T) (*httptest.Server, *calendar.Book) {
	t.Helper()
	log := logger.Nop()
	cfg := &config.Config{
		ListenAddress: ":0",
		DoctorName:    "Dra. Dolores Remedios del Rincón",
		Voice:         "alice",
		Language:      "es-MX",
	}
	menu := config.DefaultMenu()
	store := session.NewStore(time.Minute, log)
	book := calendar.NewBook(log)
	policy := dialogue.NewPolicy(menu, nil, 10, log)
	composer := texml.NewComposer(
		texml.Voice{Name: cfg.Voice, Language: cfg.Language},
		"https://clinic.example.com/webhook",
		menu.TimeoutWarning,
		menu.HandoffLine,
	)
	pipe := handlers.NewPipeline(cfg, menu, store, policy, book, nil, composer, log)
	srv := httptest.NewServer(New(cfg, pipe, book, log).Router())
	t.Cleanup(srv.Close)
	return srv, book
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("wrong health body: %v", body)
	}
}

func TestRootIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "Dolores Remedios del Rincón") {
		t.Errorf("identity should name the doctor: %s", raw)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "frontdesk_") {
		t.Errorf("expected frontdesk metrics in exposition:\n%.400s", raw)
	}
}

func TestWebhookRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(
		srv.URL+"/webhook",
		"application/x-www-form-urlencoded",
		strings.NewReader("From=%2B526621112233&To=%2B526624920537&CallSid=CA1"),
	)
	if err != nil {
		t.Fatalf("POST /webhook failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/xml" {
		t.Errorf("expected markup reply, got %q", ct)
	}
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "<Response>") || !strings.Contains(string(raw), "<Gather") {
		t.Errorf("expected a gather document:\n%s", raw)
	}
}

func TestWebhookNeverErrorsToProvider(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, tc := range []struct{ contentType, body string }{
		{"application/json", ""},
		{"application/json", "{broken"},
		{"text/plain", "ping"},
	} {
		resp, err := http.Post(srv.URL+"/webhook", tc.contentType, strings.NewReader(tc.body))
		if err != nil {
			t.Fatalf("POST failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("body %q: expected 200, got %d", tc.body, resp.StatusCode)
		}
	}
}

func TestAppointmentsEndpoint(t *testing.T) {
	srv, book := newTestServer(t)

	resp, err := http.Post(
		srv.URL+"/webhook",
		"application/json",
		strings.NewReader(`{"type":"function-call","call_id":"c1","data":{"name":"schedule_appointment","arguments":{
			"patient_name":"Juan","phone":"5551","reason":"control","date":"2024-01-15","time":"09:00"}}}`),
	)
	if err != nil {
		t.Fatalf("booking through webhook failed: %v", err)
	}
	resp.Body.Close()

	if len(book.Appointments()) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(book.Appointments()))
	}

	resp, err = http.Get(srv.URL + "/appointments")
	if err != nil {
		t.Fatalf("GET /appointments failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Appointments []calendar.Appointment `json:"appointments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding appointments: %v", err)
	}
	if len(body.Appointments) != 1 || body.Appointments[0].PatientName != "Juan" {
		t.Errorf("wrong appointments listing: %+v", body.Appointments)
	}
}
