package texml

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/consultorio-rincon/voice-frontdesk/types"
)

func newTestComposer() *Composer {
	return NewComposer(
		Voice{Name: "alice", Language: "es-MX"},
		"https://clinic.example.com/webhook",
		"¿Sigue ahí?",
		"Gracias por llamar.",
	)
}

func TestComposeGatherDocument(t *testing.T) {
	c := newTestComposer()

	out, err := c.Compose(types.DialogueAction{
		SpokenText:     "Presione 1 para agendar una cita.",
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: 10,
	}, DialectMarkup)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if out.ContentType != "application/xml" {
		t.Errorf("wrong content type: %q", out.ContentType)
	}

	body := string(out.Body)
	for _, want := range []string{
		"<Response>",
		"Presione 1 para agendar una cita.",
		`input="dtmf"`,
		`numDigits="1"`,
		`timeout="10"`,
		`action="https://clinic.example.com/webhook"`,
		`method="POST"`,
		"¿Sigue ahí?",
		"Gracias por llamar.",
		"<Hangup",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("document missing %q:\n%s", want, body)
		}
	}

	// The no-input closing must come after the gather so it only plays on
	// fall-through.
	if strings.Index(body, "Gracias por llamar.") < strings.Index(body, "</Gather>") {
		t.Errorf("closing say must follow the gather:\n%s", body)
	}
}

func TestComposeSpeechGatherOmitsNumDigits(t *testing.T) {
	c := newTestComposer()

	out, err := c.Compose(types.DialogueAction{
		SpokenText:     "¿Cuál es su nombre completo?",
		Input:          types.InputSpeech,
		TimeoutSeconds: 10,
	}, DialectMarkup)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	body := string(out.Body)
	if !strings.Contains(body, `input="speech"`) {
		t.Errorf("expected speech gather:\n%s", body)
	}
	if strings.Contains(body, "numDigits") {
		t.Errorf("speech gather must not constrain digits:\n%s", body)
	}
}

func TestComposeTerminalHangsUp(t *testing.T) {
	c := newTestComposer()

	out, err := c.Compose(types.DialogueAction{
		SpokenText: "Hasta luego.",
		Terminal:   true,
	}, DialectMarkup)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	body := string(out.Body)
	if strings.Contains(body, "<Gather") {
		t.Errorf("terminal document must not gather:\n%s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Errorf("terminal document must hang up:\n%s", body)
	}
}

func TestComposeEscapesMarkup(t *testing.T) {
	c := newTestComposer()

	out, err := c.Compose(types.DialogueAction{
		SpokenText: `Cita para <Juan & "María">`,
		Terminal:   true,
	}, DialectMarkup)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	body := string(out.Body)
	if strings.Contains(body, "<Juan") {
		t.Errorf("unescaped angle bracket leaked into the document:\n%s", body)
	}
	if !strings.Contains(body, "&lt;Juan &amp;") {
		t.Errorf("expected escaped text:\n%s", body)
	}
}

func TestComposeEventAck(t *testing.T) {
	c := newTestComposer()

	out, err := c.Compose(types.DialogueAction{SpokenText: "Hola"}, DialectEventAck)
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if out.ContentType != "application/json" {
		t.Errorf("wrong content type: %q", out.ContentType)
	}

	var ack Ack
	if err := json.Unmarshal(out.Body, &ack); err != nil {
		t.Fatalf("ack is not valid JSON: %v", err)
	}
	if ack.Status != "processed" {
		t.Errorf("wrong ack status: %q", ack.Status)
	}
	if strings.Contains(string(out.Body), "Hola") {
		t.Errorf("event ack must not carry spoken text: %s", out.Body)
	}
}

func TestComposeAckStatuses(t *testing.T) {
	c := newTestComposer()

	out, err := c.ComposeAck("error", "empty payload")
	if err != nil {
		t.Fatalf("ComposeAck failed: %v", err)
	}

	var ack Ack
	if err := json.Unmarshal(out.Body, &ack); err != nil {
		t.Fatalf("ack is not valid JSON: %v", err)
	}
	if ack.Status != "error" || ack.Message != "empty payload" {
		t.Errorf("wrong ack contents: %+v", ack)
	}
}
