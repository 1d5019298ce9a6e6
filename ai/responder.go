// Package ai adapts an OpenAI-style chat completion API into the dialogue
// policy's Responder contract.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// DefaultTimeout bounds one completion round trip so a slow upstream cannot
// hold the caller's line silent.
const DefaultTimeout = 5 * time.Second

// AdapterError reports an AI backend failure (unreachable, slow or
// non-2xx). It is the only failure shape that crosses this package's
// boundary; the policy answers it with a fallback line.
type AdapterError struct {
	Status int
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("ai adapter: upstream status %d", e.Status)
	}
	return fmt.Sprintf("ai adapter: %v", e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// OpenAIResponder calls the chat completions endpoint with the office
// profile as system prompt and the bounded conversation history.
type OpenAIResponder struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	system  string
	client  *http.Client
	log     zerolog.Logger
}

// NewOpenAIResponder builds the responder. timeout <= 0 uses DefaultTimeout.
func NewOpenAIResponder(apiKey, model, baseURL string, timeout time.Duration, office config.Office, log zerolog.Logger) *OpenAIResponder {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAIResponder{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: timeout,
		system:  systemPrompt(office),
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func systemPrompt(office config.Office) string {
	var b strings.Builder
	b.WriteString("Eres una asistente virtual del consultorio médico. ")
	b.WriteString("Tu objetivo es ayudar a los pacientes a agendar citas y responder sus consultas de manera profesional y cálida. ")
	b.WriteString("Habla en español mexicano y responde en una o dos frases, como en una llamada telefónica.\n")
	b.WriteString("INFORMACIÓN DEL CONSULTORIO:\n")
	b.WriteString("- Horarios: " + office.Hours + "\n")
	b.WriteString("- Ubicación: " + office.Location + "\n")
	b.WriteString("- Preparación: " + office.Preparation + "\n")
	b.WriteString("- Emergencias: " + office.Emergencies + "\n")
	if len(office.Specialties) > 0 {
		b.WriteString("- Especialidades: " + strings.Join(office.Specialties, ", ") + "\n")
	}
	return b.String()
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Respond generates a reply for the new utterance given the bounded history.
// Timeouts and non-2xx results come back as *AdapterError; this method never
// panics past the policy boundary.
func (r *OpenAIResponder) Respond(ctx context.Context, history []types.Turn, utterance string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: r.system})
	for _, turn := range history {
		role := "assistant"
		if turn.Role == types.RoleCaller {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: turn.Text})
	}
	if utterance != "" {
		messages = append(messages, chatMessage{Role: "user", Content: utterance})
	}

	payload, err := json.Marshal(chatRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		return "", &AdapterError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &AdapterError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &AdapterError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", &AdapterError{Status: resp.StatusCode}
	}

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", &AdapterError{Err: err}
	}
	if len(body.Choices) == 0 {
		return "", &AdapterError{Err: fmt.Errorf("no choices in completion")}
	}

	text := strings.TrimSpace(body.Choices[0].Message.Content)
	if text == "" {
		return "", &AdapterError{Err: fmt.Errorf("empty completion")}
	}
	return text, nil
}
