package webhook

import (
	"errors"
	"net/url"
	"testing"

	"github.com/consultorio-rincon/voice-frontdesk/types"
)

func TestNormalizeTelnyxJSON(t *testing.T) {
	body := []byte(`{
		"data": {
			"event_type": "call.speech.gathered",
			"payload": {
				"from": "+526621112233",
				"to": "+526624920537",
				"call_control_id": "v3:abc123",
				"speech": {"text": "quiero agendar una cita"}
			}
		}
	}`)

	ev, err := Normalize("application/json", body, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventSpeechRecognized {
		t.Errorf("expected speech-recognized, got %s", ev.Kind)
	}
	if ev.SpeechText != "quiero agendar una cita" {
		t.Errorf("wrong speech text: %q", ev.SpeechText)
	}
	if ev.Caller != "+526621112233" {
		t.Errorf("wrong caller: %q", ev.Caller)
	}
	if ev.Raw["call_control_id"] != "v3:abc123" {
		t.Errorf("call_control_id not carried through raw: %v", ev.Raw)
	}
}

func TestNormalizeJSONEventTable(t *testing.T) {
	tests := []struct {
		name string
		body string
		want types.EventKind
	}{
		{"telnyx initiated", `{"data":{"event_type":"call.initiated","payload":{"from":"+52"}}}`, types.EventCallInitiated},
		{"telnyx answered", `{"data":{"event_type":"call.answered","payload":{"from":"+52"}}}`, types.EventCallAnswered},
		{"telnyx hangup", `{"data":{"event_type":"call.hangup","payload":{"from":"+52"}}}`, types.EventCallEnded},
		{"telnyx dtmf", `{"data":{"event_type":"call.dtmf.received","payload":{"from":"+52","digit":"1"}}}`, types.EventDTMFDigits},
		{"vapi started", `{"type":"call-started","call_id":"c1"}`, types.EventCallInitiated},
		{"vapi ended", `{"type":"call-ended","call_id":"c1"}`, types.EventCallEnded},
		{"vapi speech", `{"type":"speech-end","call_id":"c1","transcript":"hola"}`, types.EventSpeechRecognized},
		{"unmapped", `{"data":{"event_type":"call.recording.saved"}}`, types.EventUnknown},
		{"no event field", `{"foo":"bar"}`, types.EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Normalize("application/json", []byte(tt.body), nil)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if ev.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, ev.Kind)
			}
		})
	}
}

func TestNormalizeVapiFunctionCall(t *testing.T) {
	body := []byte(`{
		"type": "function-call",
		"call_id": "call_42",
		"data": {
			"name": "schedule_appointment",
			"arguments": {"patient_name": "Juan Pérez", "phone": "+521234"}
		}
	}`)

	ev, err := Normalize("application/json", body, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventFunctionInvocation {
		t.Fatalf("expected function-invocation, got %s", ev.Kind)
	}
	if ev.FunctionName != "schedule_appointment" {
		t.Errorf("wrong function name: %q", ev.FunctionName)
	}
	if ev.FunctionArgs["patient_name"] != "Juan Pérez" {
		t.Errorf("wrong arguments: %v", ev.FunctionArgs)
	}
	if ev.ProviderCallID != "call_42" {
		t.Errorf("wrong provider call id: %q", ev.ProviderCallID)
	}
}

func TestNormalizeFormDigits(t *testing.T) {
	body := []byte("From=%2B526621112233&To=%2B526624920537&CallSid=CA123&Digits=1")

	ev, err := Normalize("application/x-www-form-urlencoded", body, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventDTMFDigits {
		t.Fatalf("expected dtmf-digits, got %s", ev.Kind)
	}
	if ev.Digits != "1" {
		t.Errorf("wrong digits: %q", ev.Digits)
	}
	if ev.Caller != "+526621112233" {
		t.Errorf("wrong caller: %q", ev.Caller)
	}
	if ev.ProviderCallID != "CA123" {
		t.Errorf("wrong call sid: %q", ev.ProviderCallID)
	}
}

func TestNormalizeFormGreetingTrigger(t *testing.T) {
	body := []byte("From=%2B520000&To=%2B529999&CallSid=CA9")

	ev, err := Normalize("application/x-www-form-urlencoded", body, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventCallInitiated {
		t.Errorf("no digits and no indicator should be call-initiated, got %s", ev.Kind)
	}
}

func TestNormalizeFormSpeechAndCompleted(t *testing.T) {
	ev, err := Normalize("application/x-www-form-urlencoded", []byte("From=%2B520000&SpeechResult=primera+vez"), nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventSpeechRecognized || ev.SpeechText != "primera vez" {
		t.Errorf("expected speech event, got %s %q", ev.Kind, ev.SpeechText)
	}

	ev, err = Normalize("application/x-www-form-urlencoded", []byte("From=%2B520000&CallStatus=completed"), nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if ev.Kind != types.EventCallEnded {
		t.Errorf("expected call-ended, got %s", ev.Kind)
	}
}

func TestNormalizePlainTextNeverFails(t *testing.T) {
	ev, err := Normalize("text/plain", []byte("some opaque provider ping"), url.Values{"From": {"+521"}})
	if err != nil {
		t.Fatalf("plain text must not fail: %v", err)
	}
	if ev.Kind != types.EventUnknown {
		t.Errorf("expected unknown, got %s", ev.Kind)
	}
	if ev.Raw["body"] != "some opaque provider ping" {
		t.Errorf("raw passthrough missing: %v", ev.Raw)
	}
	if ev.Caller != "+521" {
		t.Errorf("query caller not picked up: %q", ev.Caller)
	}
}

func TestNormalizeEmptyBody(t *testing.T) {
	_, err := Normalize("application/json", nil, nil)
	if !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestNormalizeMalformedJSON(t *testing.T) {
	_, err := Normalize("application/json", []byte("{not json"), nil)
	var malformed *MalformedPayloadError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedPayloadError, got %v", err)
	}
}
