// Package texml turns dialogue actions into provider-addressable replies:
// a TeXML document for markup-driven providers or a JSON acknowledgment for
// event-driven ones. Caller- and AI-supplied text goes through the XML
// marshaller, so markup-significant characters are always escaped.
package texml

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// Dialect selects the outbound reply shape.
type Dialect int

const (
	// DialectMarkup answers with a TeXML document interpreted by the
	// provider (say, gather, hangup).
	DialectMarkup Dialect = iota
	// DialectEventAck answers with a JSON ack; speaking happens out of band
	// through the call-control API.
	DialectEventAck
)

// OutboundResponse is the composed HTTP reply body.
type OutboundResponse struct {
	ContentType string
	Body        []byte
}

// Voice configures the provider voice used in Say verbs.
type Voice struct {
	Name     string
	Language string
}

// Say is a spoken prompt.
type Say struct {
	XMLName  xml.Name `xml:"Say"`
	Voice    string   `xml:"voice,attr"`
	Language string   `xml:"language,attr"`
	Text     string   `xml:",chardata"`
}

// Gather collects the next caller input and posts it back to the webhook.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	Input     string   `xml:"input,attr"`
	Timeout   int      `xml:"timeout,attr"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr"`
	Say       *Say     `xml:"Say,omitempty"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// A document is rendered as an ordered verb sequence inside <Response>:
// prompt, optional gather, then the no-input closing and hangup. Ordering is
// what makes the no-input fall-through work, so verbs are encoded one by one
// instead of through a single envelope struct.

// Ack is the JSON acknowledgment for event-ack providers. It deliberately
// omits the spoken text; those providers speak through a separate call
// sequence.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Composer renders dialogue actions for a configured provider voice and
// callback URL.
type Composer struct {
	voice          Voice
	actionURL      string
	noInputWarning string
	noInputClosing string
}

// NewComposer builds a composer. actionURL is the webhook this same service
// serves; the gather posts back into it.
func NewComposer(voice Voice, actionURL, noInputWarning, noInputClosing string) *Composer {
	if voice.Name == "" {
		voice.Name = "alice"
	}
	if voice.Language == "" {
		voice.Language = "es-MX"
	}
	return &Composer{
		voice:          voice,
		actionURL:      actionURL,
		noInputWarning: noInputWarning,
		noInputClosing: noInputClosing,
	}
}

// Compose renders the action for the given dialect.
func (c *Composer) Compose(action types.DialogueAction, dialect Dialect) (OutboundResponse, error) {
	switch dialect {
	case DialectEventAck:
		return c.composeAck("processed", "event handled")
	default:
		return c.composeMarkup(action)
	}
}

// ComposeAck renders a bare acknowledgment, used for events that require no
// spoken reply (unknown kinds, handled payload errors).
func (c *Composer) ComposeAck(status, message string) (OutboundResponse, error) {
	return c.composeAck(status, message)
}

func (c *Composer) composeAck(status, message string) (OutboundResponse, error) {
	body, err := json.Marshal(Ack{Status: status, Message: message})
	if err != nil {
		return OutboundResponse{}, fmt.Errorf("encoding ack: %w", err)
	}
	return OutboundResponse{ContentType: "application/json", Body: body}, nil
}

func (c *Composer) composeMarkup(action types.DialogueAction) (OutboundResponse, error) {
	verbs := make([]any, 0, 4)

	if action.SpokenText != "" {
		verbs = append(verbs, c.say(action.SpokenText))
	}

	if action.Terminal || action.Input == types.InputNone {
		verbs = append(verbs, &Hangup{})
	} else {
		gather := &Gather{
			Input:   action.Input.String(),
			Timeout: action.TimeoutSeconds,
			Action:  c.actionURL,
			Method:  "POST",
		}
		if action.Input == types.InputDTMF {
			gather.NumDigits = action.NumDigits
		}
		if c.noInputWarning != "" {
			gather.Say = c.say(c.noInputWarning)
		}
		verbs = append(verbs, gather)

		// The gather fell through without input: close out and hang up.
		if c.noInputClosing != "" {
			verbs = append(verbs, c.say(c.noInputClosing))
		}
		verbs = append(verbs, &Hangup{})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<Response>\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("    ", "    ")
	for _, verb := range verbs {
		if err := enc.Encode(verb); err != nil {
			return OutboundResponse{}, fmt.Errorf("encoding texml: %w", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return OutboundResponse{}, fmt.Errorf("encoding texml: %w", err)
	}
	buf.WriteString("\n</Response>")

	return OutboundResponse{
		ContentType: "application/xml",
		Body:        buf.Bytes(),
	}, nil
}

func (c *Composer) say(text string) *Say {
	return &Say{
		Voice:    c.voice.Name,
		Language: c.voice.Language,
		Text:     text,
	}
}
