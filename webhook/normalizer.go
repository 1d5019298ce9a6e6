// Package webhook reduces the heterogeneous inbound payload shapes of the
// telephony providers to a single canonical event model.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// ErrEmptyPayload is returned for a request with no body at all. It is a
// handled condition: the boundary acks it instead of failing the call.
var ErrEmptyPayload = errors.New("empty payload")

// MalformedPayloadError reports a body that was present but unparsable for
// its declared content type.
type MalformedPayloadError struct {
	ContentType string
	Err         error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.ContentType, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// jsonEventKinds maps every provider event name seen in the wild to the
// canonical kind. Unmapped names normalize to EventUnknown rather than
// failing; an unknown event must never abort the HTTP transaction.
var jsonEventKinds = map[string]types.EventKind{
	"call.initiated":       types.EventCallInitiated,
	"call-started":         types.EventCallInitiated,
	"call.answered":        types.EventCallAnswered,
	"call.hangup":          types.EventCallEnded,
	"call-ended":           types.EventCallEnded,
	"call.speech.gathered": types.EventSpeechRecognized,
	"speech-end":           types.EventSpeechRecognized,
	"call.dtmf.received":   types.EventDTMFDigits,
	"call.gather.ended":    types.EventDTMFDigits,
	"function-call":        types.EventFunctionInvocation,
}

// Normalize parses an inbound webhook body into a CallEvent. It only fails
// for an empty body or a body that contradicts its content type; every other
// shape produces an event, falling back to EventUnknown.
func Normalize(contentType string, body []byte, query url.Values) (types.CallEvent, error) {
	if len(body) == 0 {
		return types.CallEvent{}, ErrEmptyPayload
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/json"):
		return normalizeJSON(body)
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		return normalizeForm(body)
	default:
		// Plain text or anything unrecognized: keep the call alive.
		return types.CallEvent{
			Kind:   types.EventUnknown,
			Caller: query.Get("From"),
			Raw:    map[string]string{"body": string(body)},
		}, nil
	}
}

func normalizeJSON(body []byte) (types.CallEvent, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return types.CallEvent{}, &MalformedPayloadError{ContentType: "application/json", Err: err}
	}

	// Telnyx wraps everything under data, Vapi puts type at the top level.
	data, _ := payload["data"].(map[string]any)
	eventName := str(payload, "type")
	if eventName == "" && data != nil {
		eventName = str(data, "event_type")
	}
	if eventName == "" {
		eventName = str(payload, "event_type")
	}

	kind, ok := jsonEventKinds[eventName]
	if !ok {
		kind = types.EventUnknown
	}

	ev := types.CallEvent{
		Kind: kind,
		Raw:  map[string]string{},
	}

	ev.ProviderCallID = str(payload, "call_id")
	if ev.ProviderCallID == "" {
		ev.ProviderCallID = str(payload, "callId")
	}

	var inner map[string]any
	if data != nil {
		inner = data
		if p, ok := data["payload"].(map[string]any); ok {
			inner = p
		}
	}

	if inner != nil {
		if from := str(inner, "from"); from != "" {
			ev.Caller = from
		}
		if to := str(inner, "to"); to != "" {
			ev.Callee = to
		}
		if id := str(inner, "call_control_id"); id != "" {
			ev.Raw["call_control_id"] = id
		}
		if ev.ProviderCallID == "" {
			ev.ProviderCallID = str(inner, "call_session_id")
		}
	}

	switch kind {
	case types.EventSpeechRecognized:
		ev.SpeechText = speechText(payload, data, inner)
	case types.EventDTMFDigits:
		if inner != nil {
			ev.Digits = str(inner, "digits")
			if ev.Digits == "" {
				ev.Digits = str(inner, "digit")
			}
		}
	case types.EventFunctionInvocation:
		if data != nil {
			ev.FunctionName = str(data, "name")
			if args, ok := data["arguments"].(map[string]any); ok {
				ev.FunctionArgs = args
			}
		}
	}

	return ev, nil
}

// speechText digs the recognized text out of the shapes the providers use:
// data.payload.speech.text, data.payload.speech as a bare string, or a
// top-level/inner transcript field.
func speechText(payload, data, inner map[string]any) string {
	if inner != nil {
		switch speech := inner["speech"].(type) {
		case map[string]any:
			if text := str(speech, "text"); text != "" {
				return text
			}
		case string:
			if speech != "" {
				return speech
			}
		}
		if t := str(inner, "transcript"); t != "" {
			return t
		}
	}
	if data != nil {
		if t := str(data, "transcript"); t != "" {
			return t
		}
	}
	return str(payload, "transcript")
}

func normalizeForm(body []byte) (types.CallEvent, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return types.CallEvent{}, &MalformedPayloadError{ContentType: "application/x-www-form-urlencoded", Err: err}
	}

	ev := types.CallEvent{
		Caller: values.Get("From"),
		Callee: values.Get("To"),
		Raw:    map[string]string{},
	}

	ev.ProviderCallID = values.Get("CallSid")
	if ev.ProviderCallID == "" {
		ev.ProviderCallID = values.Get("CallId")
	}

	switch {
	case values.Get("Digits") != "":
		ev.Kind = types.EventDTMFDigits
		ev.Digits = values.Get("Digits")
	case values.Get("SpeechResult") != "":
		ev.Kind = types.EventSpeechRecognized
		ev.SpeechText = values.Get("SpeechResult")
	case values.Get("CallStatus") == "completed":
		ev.Kind = types.EventCallEnded
	default:
		// No digits and no other indicator: the initial greeting trigger.
		ev.Kind = types.EventCallInitiated
	}

	return ev, nil
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
